package duelpresenter

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/park285/critter-kakao-bot/internal/duel"
    "github.com/park285/critter-kakao-bot/internal/msgcat"
    "github.com/park285/critter-kakao-bot/internal/render"
)

// Sender is the outbound chat transport; irisfast.Egress satisfies it.
type Sender interface {
    SendText(ctx context.Context, room, message string) error
    SendImage(ctx context.Context, room string, png []byte) error
}

// ImageRenderer draws a board view.
type ImageRenderer interface {
    RenderPNG(ctx context.Context, v duel.View, opts render.Options) ([]byte, error)
}

// Presenter delivers duel views to the chat room the duel was started in.
// Rejected moves only get a text line; every other event also gets a board image.
type Presenter struct {
    out    Sender
    img    ImageRenderer
    cat    *msgcat.Catalog
    prefix string
    log    *zap.Logger
    now    func() time.Time

    names sync.Map // duel.Party -> display name

    mu    sync.Mutex
    extra map[string][]string // session id -> rooms besides the origin channel
}

func New(out Sender, img ImageRenderer, cat *msgcat.Catalog, prefix string, log *zap.Logger) *Presenter {
    if log == nil {
        log = zap.NewNop()
    }
    return &Presenter{out: out, img: img, cat: cat, prefix: prefix, log: log, now: time.Now, extra: make(map[string][]string)}
}

// AddRoom makes every later view of the session also go to room.
func (p *Presenter) AddRoom(sessionID, room string) {
    room = strings.TrimSpace(room)
    if room == "" {
        return
    }
    p.mu.Lock()
    defer p.mu.Unlock()
    for _, r := range p.extra[sessionID] {
        if r == room {
            return
        }
    }
    p.extra[sessionID] = append(p.extra[sessionID], room)
}

func (p *Presenter) DropRooms(sessionID string) {
    p.mu.Lock()
    defer p.mu.Unlock()
    delete(p.extra, sessionID)
}

// Rooms lists the delivery rooms of v, origin first.
func (p *Presenter) Rooms(v duel.View) []string {
    p.mu.Lock()
    defer p.mu.Unlock()
    rooms := []string{v.Channel}
    for _, r := range p.extra[v.SessionID] {
        if r != v.Channel {
            rooms = append(rooms, r)
        }
    }
    return rooms
}

// Remember stores the display name shown for p.
func (p *Presenter) Remember(party duel.Party, name string) {
    if name = strings.TrimSpace(name); name != "" {
        p.names.Store(party, name)
    }
}

// Name returns the remembered display name or the party id.
func (p *Presenter) Name(party duel.Party) string {
    if v, ok := p.names.Load(party); ok {
        return v.(string)
    }
    return string(party)
}

func (p *Presenter) Present(ctx context.Context, v duel.View) error {
    if p == nil || p.out == nil {
        return nil
    }
    if strings.TrimSpace(v.Channel) == "" {
        return errors.New("view has no channel")
    }
    rooms := p.Rooms(v)
    if v.Event == duel.EventEnd {
        p.DropRooms(v.SessionID)
    }
    return p.deliver(ctx, rooms, v)
}

// Show sends v to room only; used for on-demand status.
func (p *Presenter) Show(ctx context.Context, room string, v duel.View) error {
    if strings.TrimSpace(room) == "" {
        return errors.New("no room")
    }
    return p.deliver(ctx, []string{room}, v)
}

func (p *Presenter) deliver(ctx context.Context, rooms []string, v duel.View) error {
    text := p.Text(v)
    var png []byte
    if v.Event != duel.EventRejected && p.img != nil {
        var err error
        if png, err = p.img.RenderPNG(ctx, v, p.options(v)); err != nil {
            // 이미지가 실패해도 텍스트는 보낸다
            p.log.Warn("duel_render_error", zap.String("session_id", v.SessionID), zap.Error(err))
            png = nil
        }
    }
    var errs []error
    for _, room := range rooms {
        if err := p.out.SendText(ctx, room, text); err != nil {
            errs = append(errs, fmt.Errorf("%s: %w", room, err))
            continue
        }
        if len(png) > 0 {
            if err := p.out.SendImage(ctx, room, png); err != nil {
                errs = append(errs, fmt.Errorf("%s: %w", room, err))
            }
        }
    }
    return errors.Join(errs...)
}

func (p *Presenter) options(v duel.View) render.Options {
    header := fmt.Sprintf("%s  %s vs %s", p.kindName(v), p.Name(v.PartyA), p.Name(v.PartyB))
    status := ""
    switch {
    case v.Status.Terminal() && v.Result != nil && v.Result.Winner != "":
        status = p.Name(v.Result.Winner) + " WIN"
    case v.Status.Terminal():
        status = v.Status.String()
    default:
        status = p.Name(v.Active) + " to move"
    }
    score := ""
    if v.Kind.Shape().RunLength == 0 {
        score = fmt.Sprintf("%d : %d", v.Pairs[0], v.Pairs[1])
    }
    return render.Options{Header: header, Status: status, Score: score}
}

// Text renders the chat line for v.
func (p *Presenter) Text(v duel.View) string {
    switch v.Event {
    case duel.EventRejected:
        return p.rejected(v)
    case duel.EventReveal:
        return p.cat.RenderOr("duel.reveal", nil, "짝이 아닙니다.")
    case duel.EventEnd:
        return p.end(v)
    default:
        return p.turn(v)
    }
}

func (p *Presenter) turn(v duel.View) string {
    secs := p.secondsLeft(v.Deadline)
    data := map[string]any{
        "Active":  p.Name(v.Active),
        "Turn":    v.Turn + 1,
        "Seconds": secs,
        "Kind":    p.kindName(v),
        "A":       p.Name(v.PartyA),
        "B":       p.Name(v.PartyB),
        "Prefix":  p.prefix,
    }
    if v.Picked != nil {
        return p.cat.RenderOr("duel.pick_second", data, "두 번째 카드를 고르세요.")
    }
    line := p.cat.RenderOr("duel.turn", data, p.Name(v.Active)+" 차례")
    if v.Moves == 0 && v.LastMove == nil {
        start := p.cat.RenderOr("duel.start", data, "대결 시작")
        hint := p.cat.RenderOr("duel.hint."+v.Kind.String(), data, "")
        return strings.TrimRight(strings.Join([]string{start, hint, line}, "\n"), "\n")
    }
    return line
}

func (p *Presenter) rejected(v duel.View) string {
    data := map[string]any{"Actor": p.Name(v.Actor), "Active": p.Name(v.Active)}
    return p.cat.RenderOr("duel.rejected."+string(v.Notice), data, "둘 수 없는 수입니다.")
}

func (p *Presenter) end(v duel.View) string {
    res := v.Result
    if res == nil {
        return p.cat.RenderOr("duel.end."+string(v.Reason), map[string]any{}, "대결이 끝났습니다.")
    }
    if res.Declined {
        return p.cat.RenderOr("duel.end.declined", nil, "대결이 성립되지 않았습니다.")
    }
    winner := ""
    if res.Winner != "" {
        winner = p.Name(res.Winner)
    }
    forfeiter := ""
    if res.Forfeiter != "" {
        forfeiter = p.Name(res.Forfeiter)
    }
    data := map[string]any{
        "Winner":    winner,
        "Forfeiter": forfeiter,
        "Turns":     res.Turns,
        "A":         p.Name(res.PartyA),
        "B":         p.Name(res.PartyB),
        "PairsA":    res.Pairs[0],
        "PairsB":    res.Pairs[1],
    }
    return p.cat.RenderOr("duel.end."+string(res.Reason), data, "대결이 끝났습니다.")
}

func (p *Presenter) kindName(v duel.View) string {
    return p.cat.RenderOr("kind."+v.Kind.String(), nil, v.Kind.String())
}

func (p *Presenter) secondsLeft(deadline time.Time) int {
    if deadline.IsZero() {
        return 0
    }
    d := deadline.Sub(p.now())
    if d < 0 {
        return 0
    }
    return int((d + time.Second - 1) / time.Second)
}
