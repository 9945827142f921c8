package main

import (
    "bufio"
    "context"
    "errors"
    "fmt"
    "io"
    "math/rand/v2"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "github.com/park285/critter-kakao-bot/internal/board"
    "github.com/park285/critter-kakao-bot/internal/duel"
    "github.com/park285/critter-kakao-bot/internal/obslog"
    "github.com/park285/critter-kakao-bot/internal/render"
)

type playFlags struct {
    kind     string
    timeout  time.Duration
    grace    time.Duration
    roundCap int
    seed     uint64
    pngDir   string
}

func newPlayCmd() *cobra.Command {
    var f playFlags
    cmd := &cobra.Command{
        Use:   "play",
        Short: "Run one duel; stdin lines are 'a 5', 'b 2 3' or 'a resign'",
        RunE: func(cmd *cobra.Command, args []string) error {
            if err := obslog.InitFromEnv(); err != nil {
                return err
            }
            return runPlay(cmd.Context(), f, cmd.InOrStdin(), cmd.OutOrStdout())
        },
    }
    cmd.Flags().StringVar(&f.kind, "kind", "tictactoe", "tictactoe | connect4 | pairs")
    cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "per-turn timeout")
    cmd.Flags().DurationVar(&f.grace, "grace", time.Second, "pair mismatch reveal time")
    cmd.Flags().IntVar(&f.roundCap, "round-cap", 30, "pair matching round cap")
    cmd.Flags().Uint64Var(&f.seed, "seed", 0, "card shuffle seed (0 = random)")
    cmd.Flags().StringVar(&f.pngDir, "png", "", "write a board PNG per view into this directory")
    return cmd
}

func runPlay(ctx context.Context, f playFlags, in io.Reader, out io.Writer) error {
    kind, ok := board.ParseKind(f.kind)
    if !ok {
        return fmt.Errorf("unknown kind %q", f.kind)
    }
    if ctx == nil {
        ctx = context.Background()
    }
    cfg := duel.Config{TurnTimeout: f.timeout, RevealGrace: f.grace, PairRoundCap: f.roundCap, QueueSize: 16}
    if kind == board.PairMatching {
        seed := f.seed
        if seed == 0 {
            seed = rand.Uint64()
        }
        cfg.Shuffle = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Shuffle
    }

    pres := &terminalPresenter{out: out, color: useColor(out)}
    var presenter duel.Presenter = pres
    if f.pngDir != "" {
        if err := os.MkdirAll(f.pngDir, 0o755); err != nil {
            return err
        }
        presenter = pngPresenter(pres, render.NewRenderer(), f.pngDir)
    }

    s, err := duel.NewSession(duel.Params{
        Kind:      kind,
        Channel:   "terminal",
        PartyA:    "a",
        PartyB:    "b",
        Config:    cfg,
        Presenter: presenter,
        Resolver: duel.NewResolver(duel.RewarderFunc(func(_ context.Context, r duel.Reward) error {
            fmt.Fprintf(out, "reward %s: %s\n", r.Party, r.Outcome)
            return nil
        }), obslog.L()),
        Logger: obslog.L(),
    })
    if err != nil {
        return err
    }

    go feed(ctx, s, in, out)
    res, err := s.Run(ctx)
    if err != nil {
        return err
    }
    fmt.Fprintf(out, "result: %s (%s) turns=%d board=%s\n", res.Status, res.Reason, res.Turns, res.Board)
    return nil
}

// feed reads "<party> <move...>" lines until the session ends or stdin closes.
func feed(ctx context.Context, s *duel.Session, in io.Reader, out io.Writer) {
    sc := bufio.NewScanner(in)
    for sc.Scan() {
        if s.Ended() {
            return
        }
        party, args, err := parseLine(sc.Text())
        if errors.Is(err, errBlank) {
            continue
        }
        if err != nil {
            fmt.Fprintln(out, "?", err)
            continue
        }
        if len(args) == 1 && (args[0] == "resign" || args[0] == "기권") {
            _ = s.Forfeit(party)
            continue
        }
        mv, err := duel.ParseMove(s.Kind(), args)
        if err != nil {
            fmt.Fprintln(out, "?", err)
            continue
        }
        if err := s.Submit(ctx, party, mv); err != nil {
            return
        }
    }
}

var errBlank = errors.New("blank line")

func parseLine(line string) (duel.Party, []string, error) {
    fields := strings.Fields(line)
    if len(fields) == 0 {
        return "", nil, errBlank
    }
    p := strings.ToLower(fields[0])
    if p != "a" && p != "b" {
        return "", nil, fmt.Errorf("line must start with a or b: %q", line)
    }
    if len(fields) < 2 {
        return "", nil, fmt.Errorf("missing move: %q", line)
    }
    return duel.Party(p), fields[1:], nil
}

func pngPresenter(next duel.Presenter, r *render.Renderer, dir string) duel.Presenter {
    n := 0
    return duel.PresenterFunc(func(ctx context.Context, v duel.View) error {
        if v.Event != duel.EventRejected {
            n++
            png, err := r.RenderPNG(ctx, v, render.Options{Header: v.Kind.String(), Status: string(v.Event)})
            if err != nil {
                obslog.L().Warn("duelsim_png_error", zap.Error(err))
            } else if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%03d-%s.png", n, v.Event)), png, 0o644); err != nil {
                return err
            }
        }
        return next.Present(ctx, v)
    })
}
