package main

import (
    "context"
    "fmt"
    "math/rand/v2"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/park285/critter-kakao-bot/internal/adapter/duelpresenter"
    "github.com/park285/critter-kakao-bot/internal/command"
    appcfg "github.com/park285/critter-kakao-bot/internal/config"
    "github.com/park285/critter-kakao-bot/internal/duel"
    "github.com/park285/critter-kakao-bot/internal/duelreg"
    "github.com/park285/critter-kakao-bot/internal/duelstore"
    "github.com/park285/critter-kakao-bot/internal/events"
    "github.com/park285/critter-kakao-bot/internal/invite"
    "github.com/park285/critter-kakao-bot/internal/irisfast"
    "github.com/park285/critter-kakao-bot/internal/msgcat"
    "github.com/park285/critter-kakao-bot/internal/obslog"
    "github.com/park285/critter-kakao-bot/internal/render"
)

// 시작 시 반드시 있어야 하는 메시지 키
var requiredMessages = []string{
    "help.title", "help.body", "unknown",
    "invite.created", "invite.declined", "invite.expired", "invite.none", "invite.usage",
    "duel.start", "duel.turn", "duel.pick_second", "duel.reveal", "duel.bad_move",
    "duel.rejected.not_your_turn", "duel.rejected.occupied", "duel.rejected.column_full",
    "duel.end.win", "duel.end.board_full", "duel.end.all_matched", "duel.end.round_cap",
    "duel.end.timeout", "duel.end.resign", "duel.end.abort", "duel.end.declined",
}

func main() {
    if err := obslog.InitFromEnv(); err != nil {
        fmt.Fprintln(os.Stderr, "logger init:", err)
        os.Exit(1)
    }
    log := obslog.L()
    defer func() { _ = log.Sync() }()

    if err := run(log); err != nil {
        log.Error("bot_exit", zap.Error(err))
        _ = log.Sync()
        os.Exit(1)
    }
}

func run(log *zap.Logger) error {
    cfg, err := appcfg.Load()
    if err != nil {
        return fmt.Errorf("config: %w", err)
    }
    cat, err := msgcat.New(cfg.MessagesDir)
    if err != nil {
        return fmt.Errorf("messages: %w", err)
    }
    if err := cat.Validate(requiredMessages...); err != nil {
        return fmt.Errorf("messages: %w", err)
    }

    client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(cfg.Headers))
    ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
    ws.SetHeaderProvider(cfg.Headers)
    egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryrun, client, ws, log)
    presenter := duelpresenter.New(egress, render.NewRenderer(), cat, cfg.BotPrefix, log)

    var (
        rewarder  duel.Rewarder
        stats     command.StatsSource
        recorders []duel.Recorder
    )
    if cfg.DatabaseURL != "" {
        repo, err := duelstore.NewRepository(cfg.DatabaseURL)
        if err != nil {
            return fmt.Errorf("duel store: %w", err)
        }
        defer repo.Close()
        rewarder, stats = repo, repo
        recorders = append(recorders, repo)
    } else {
        log.Warn("duel_store_disabled", zap.String("reason", "DATABASE_URL not set"))
    }

    var pub events.Publisher = &events.NoopPublisher{}
    if cfg.NATSURL != "" {
        p, err := events.NewNATSPublisher(cfg.NATSURL)
        if err != nil {
            return fmt.Errorf("nats: %w", err)
        }
        pub = p
    }
    defer pub.Close()
    recorders = append(recorders, events.NewRecorder(pub))

    var (
        registry duel.Registry  = duel.NewMemoryRegistry()
        present  duel.Presenter = presenter
    )
    if cfg.RedisURL != "" {
        host, _ := os.Hostname()
        store, err := duelreg.NewFromURL(cfg.RedisURL, cfg.RegistryTTL, host)
        if err != nil {
            return fmt.Errorf("registry: %w", err)
        }
        defer store.Close()
        registry, present = store, store.Presenter(presenter)
    }

    duelCfg := cfg.DuelConfig()
    duelCfg.Shuffle = rand.Shuffle
    games := duel.NewManager(
        duel.WithConfig(duelCfg),
        duel.WithRegistry(registry),
        duel.WithPresenter(present),
        duel.WithResolver(duel.NewResolver(rewarder, log, recorders...)),
        duel.WithLogger(log),
        duel.WithMaxActive(cfg.MaxConcurrentGames),
    )
    handler := command.NewHandler(command.Options{
        Prefix:        cfg.BotPrefix,
        AllowedRooms:  cfg.AllowedRooms,
        TurnTimeout:   cfg.TurnTimeout,
        InviteTimeout: cfg.InviteTimeout,
        HistoryLimit:  cfg.HistoryLimit,
    }, egress, presenter, cat, games, invite.NewManager(cfg.InviteTimeout), stats, log)

    ws.OnStateChange(func(state irisfast.WebSocketState) {
        log.Info("ws_state", zap.String("state", state.String()))
    })
    ws.OnMessage(func(msg *irisfast.Message) {
        if !handler.Accepts(msg) {
            return
        }
        go func() {
            ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
            defer cancel()
            if err := handler.Handle(ctx, msg); err != nil {
                log.Warn("command_error", zap.String("room", msg.Room), zap.Error(err))
            }
        }()
    })

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    if err := ws.Connect(ctx); err != nil {
        // 재연결 루프가 계속 시도한다
        log.Warn("ws_connect_error", zap.Error(err))
    }

    go func() {
        t := time.NewTicker(5 * time.Second)
        defer t.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-t.C:
                handler.SweepInvites(ctx)
            }
        }
    }()

    log.Info("bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("egress", cfg.EgressMode), zap.Int("max_games", cfg.MaxConcurrentGames))
    <-ctx.Done()
    log.Info("bot_stopping", zap.Int("active_duels", games.Active()))

    sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := games.Shutdown(sctx); err != nil {
        log.Warn("duel_shutdown_timeout", zap.Error(err))
    }
    return ws.Close(sctx)
}
