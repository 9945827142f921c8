package command

import (
    "context"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/park285/critter-kakao-bot/internal/board"
    "github.com/park285/critter-kakao-bot/internal/duel"
    "github.com/park285/critter-kakao-bot/internal/duelstore"
    "github.com/park285/critter-kakao-bot/internal/invite"
    "github.com/park285/critter-kakao-bot/internal/irisfast"
    "github.com/park285/critter-kakao-bot/internal/msgcat"
    "github.com/park285/critter-kakao-bot/internal/util"
)

// Replier sends plain text to a room.
type Replier interface {
    SendText(ctx context.Context, room, message string) error
}

// Display shows live duel views on demand, tracks extra delivery rooms and
// remembers display names for parties.
type Display interface {
    Show(ctx context.Context, room string, v duel.View) error
    AddRoom(sessionID, room string)
    DropRooms(sessionID string)
    Remember(p duel.Party, name string)
    Name(p duel.Party) string
}

// StatsSource is the read side of the history store.
type StatsSource interface {
    Stats(ctx context.Context, p duel.Party) ([]duelstore.Stats, error)
    Recent(ctx context.Context, p duel.Party, limit int) ([]duelstore.HistoryEntry, error)
}

type Options struct {
    Prefix        string
    AllowedRooms  []string
    TurnTimeout   time.Duration
    InviteTimeout time.Duration
    HistoryLimit  int
}

// Handler routes chat commands to invitations and live duels.
type Handler struct {
    opts    Options
    out     Replier
    display Display
    cat     *msgcat.Catalog
    games   *duel.Manager
    invites *invite.Manager
    stats   StatsSource
    log     *zap.Logger
}

func NewHandler(opts Options, out Replier, display Display, cat *msgcat.Catalog, games *duel.Manager, invites *invite.Manager, stats StatsSource, log *zap.Logger) *Handler {
    if log == nil {
        log = zap.NewNop()
    }
    if opts.HistoryLimit <= 0 {
        opts.HistoryLimit = 5
    }
    return &Handler{opts: opts, out: out, display: display, cat: cat, games: games, invites: invites, stats: stats, log: log}
}

// Accepts reports whether msg is a command for this bot from an allowed room.
func (h *Handler) Accepts(msg *irisfast.Message) bool {
    if msg == nil || strings.TrimSpace(msg.Msg) == "" {
        return false
    }
    if len(h.opts.AllowedRooms) > 0 && !roomAllowed(h.opts.AllowedRooms, msg.Room) {
        return false
    }
    return strings.HasPrefix(strings.TrimSpace(msg.Msg), h.opts.Prefix)
}

// Handle runs one command. Only delivery failures are returned; user mistakes get a reply.
func (h *Handler) Handle(ctx context.Context, msg *irisfast.Message) error {
    if !h.Accepts(msg) {
        return nil
    }
    raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Msg), h.opts.Prefix))
    fields := strings.Fields(raw)
    user := userIDFromMessage(msg)
    if len(fields) == 0 {
        return h.reply(ctx, msg.Room, h.helpText())
    }
    if user == "" {
        h.log.Warn("command_no_user", zap.String("room", msg.Room))
        return nil
    }
    party := duel.Party(user)
    h.display.Remember(party, msg.SenderName())

    cmd, args := strings.ToLower(fields[0]), fields[1:]
    switch cmd {
    case "도움", "도움말", "help":
        return h.reply(ctx, msg.Room, h.helpText())
    case "대결", "duel":
        return h.challenge(ctx, msg, party, args)
    case "수락", "accept":
        return h.accept(ctx, msg, party)
    case "거절", "decline":
        return h.decline(ctx, msg, party)
    case "취소", "cancel":
        return h.cancel(ctx, msg, party)
    case "둠", "착수", "move":
        return h.move(ctx, msg, party, args)
    case "기권", "resign":
        return h.resign(ctx, msg, party)
    case "현황", "status":
        return h.status(ctx, msg, party)
    case "전적", "기록", "stats":
        return h.record(ctx, msg, party)
    }
    // 진행 중인 대결이 있으면 "!5" 같은 숫자만으로도 수를 둘 수 있다
    if _, err := strconv.Atoi(strings.Split(fields[0], ",")[0]); err == nil {
        if _, ok := h.games.Lookup(party); ok {
            return h.move(ctx, msg, party, fields)
        }
    }
    return h.reply(ctx, msg.Room, h.text("unknown", nil, "Unknown command."))
}

func (h *Handler) challenge(ctx context.Context, msg *irisfast.Message, party duel.Party, args []string) error {
    if len(args) == 0 {
        return h.reply(ctx, msg.Room, h.text("invite.usage", nil, "usage"))
    }
    target := sanitizeUserArg(args[0])
    kind := board.ThreeInRow
    if len(args) > 1 {
        k, ok := board.ParseKind(args[1])
        if !ok {
            return h.reply(ctx, msg.Room, h.text("invite.usage", nil, "usage"))
        }
        kind = k
    }
    if target == "" {
        return h.reply(ctx, msg.Room, h.text("invite.usage", nil, "usage"))
    }
    if _, busy := h.games.Lookup(party); busy {
        return h.reply(ctx, msg.Room, h.text("duel.busy", nil, "busy"))
    }
    if _, busy := h.games.Lookup(duel.Party(target)); busy {
        return h.reply(ctx, msg.Room, h.text("duel.busy", nil, "busy"))
    }
    ch, err := h.invites.Challenge(invite.Params{
        Room:           msg.Room,
        ChallengerID:   string(party),
        ChallengerName: msg.SenderName(),
        TargetID:       target,
        TargetName:     "",
        Kind:           kind,
    })
    switch {
    case errors.Is(err, invite.ErrSelfChallenge):
        return h.reply(ctx, msg.Room, h.text("invite.self", nil, "self"))
    case errors.Is(err, invite.ErrAlreadyPending):
        return h.reply(ctx, msg.Room, h.text("invite.pending", map[string]any{"Target": target}, "pending"))
    case err != nil:
        return h.reply(ctx, msg.Room, h.text("invite.usage", nil, "usage"))
    }
    h.log.Info("invite_created", zap.String("code", ch.Code), zap.String("challenger", ch.ChallengerID), zap.String("target", ch.TargetID), zap.String("kind", kind.String()))
    return h.reply(ctx, msg.Room, h.text("invite.created", map[string]any{
        "Challenger": h.nameOf(ch.ChallengerID, ch.ChallengerName),
        "Target":     h.nameOf(ch.TargetID, ch.TargetName),
        "Kind":       h.kindName(kind),
        "Seconds":    int(h.opts.InviteTimeout / time.Second),
        "Prefix":     h.opts.Prefix,
    }, "challenge sent"))
}

func (h *Handler) accept(ctx context.Context, msg *irisfast.Message, party duel.Party) error {
    ch, err := h.invites.Accept(string(party), msg.Room)
    if err != nil {
        return h.reply(ctx, msg.Room, h.text("invite.none", nil, "no challenge"))
    }
    h.display.Remember(duel.Party(ch.ChallengerID), ch.ChallengerName)
    id := uuid.NewString()
    // 다른 방에서 수락했으면 첫 화면부터 그 방에도 보낸다
    if msg.Room != ch.OriginRoom {
        h.display.AddRoom(id, msg.Room)
    }
    _, err = h.games.Start(ctx, duel.StartRequest{
        ID:      id,
        Kind:    ch.Kind,
        Channel: ch.OriginRoom,
        PartyA:  duel.Party(ch.ChallengerID),
        PartyB:  party,
    })
    if err != nil {
        h.display.DropRooms(id)
    }
    switch {
    case errors.Is(err, duel.ErrPartyBusy):
        return h.reply(ctx, msg.Room, h.text("duel.busy", nil, "busy"))
    case errors.Is(err, duel.ErrTooManyGames):
        return h.reply(ctx, msg.Room, h.text("duel.full", nil, "full"))
    case err != nil:
        h.log.Error("duel_start_error", zap.String("code", ch.Code), zap.Error(err))
        return h.reply(ctx, msg.Room, h.text("duel.none", nil, "cannot start"))
    }
    // 시작 화면은 세션이 첫 턴에 직접 보낸다
    return nil
}

func (h *Handler) decline(ctx context.Context, msg *irisfast.Message, party duel.Party) error {
    ch, err := h.invites.Decline(string(party), msg.Room)
    if err != nil {
        return h.reply(ctx, msg.Room, h.text("invite.none", nil, "no challenge"))
    }
    return h.reply(ctx, msg.Room, h.text("invite.declined", map[string]any{
        "Target":     h.nameOf(ch.TargetID, msg.SenderName()),
        "Challenger": h.nameOf(ch.ChallengerID, ch.ChallengerName),
    }, "declined"))
}

func (h *Handler) cancel(ctx context.Context, msg *irisfast.Message, party duel.Party) error {
    ch, err := h.invites.Cancel(string(party))
    if err != nil {
        return h.reply(ctx, msg.Room, h.text("invite.none_sent", nil, "no challenge"))
    }
    return h.reply(ctx, msg.Room, h.text("invite.cancelled", map[string]any{"Challenger": h.nameOf(ch.ChallengerID, ch.ChallengerName)}, "cancelled"))
}

func (h *Handler) move(ctx context.Context, msg *irisfast.Message, party duel.Party, args []string) error {
    s, ok := h.games.Lookup(party)
    if !ok {
        return h.reply(ctx, msg.Room, h.text("duel.none", nil, "no duel"))
    }
    mv, err := duel.ParseMove(s.Kind(), args)
    if err != nil {
        hint := h.text("duel.hint."+s.Kind().String(), map[string]any{"Prefix": h.opts.Prefix}, "")
        return h.reply(ctx, msg.Room, h.text("duel.bad_move", map[string]any{"Hint": hint}, "bad move"))
    }
    if _, err := h.games.Submit(ctx, party, mv); err != nil {
        if errors.Is(err, duel.ErrUnknownSession) || errors.Is(err, duel.ErrSessionEnded) {
            return h.reply(ctx, msg.Room, h.text("duel.none", nil, "no duel"))
        }
        return err
    }
    return nil
}

func (h *Handler) resign(ctx context.Context, msg *irisfast.Message, party duel.Party) error {
    if _, err := h.games.Forfeit(party); err != nil {
        return h.reply(ctx, msg.Room, h.text("duel.none", nil, "no duel"))
    }
    return nil
}

func (h *Handler) status(ctx context.Context, msg *irisfast.Message, party duel.Party) error {
    v, err := h.games.View(party)
    if err != nil {
        return h.reply(ctx, msg.Room, h.text("duel.none", nil, "no duel"))
    }
    // 현황은 요청한 방에만 보낸다
    return h.display.Show(ctx, msg.Room, v)
}

func (h *Handler) record(ctx context.Context, msg *irisfast.Message, party duel.Party) error {
    header := h.text("stats.header", map[string]any{"Name": h.nameOf(string(party), msg.SenderName())}, "stats")
    if h.stats == nil {
        return h.reply(ctx, msg.Room, header+"\n"+h.text("stats.empty", nil, "no record"))
    }
    rows, err := h.stats.Stats(ctx, party)
    if err != nil {
        h.log.Warn("stats_query_error", zap.String("party", string(party)), zap.Error(err))
        return h.reply(ctx, msg.Room, h.text("stats.empty", nil, "no record"))
    }
    if len(rows) == 0 {
        return h.reply(ctx, msg.Room, header+"\n"+h.text("stats.empty", nil, "no record"))
    }
    lines := make([]string, 0, len(rows)+1)
    for _, s := range rows {
        lines = append(lines, h.text("stats.line", map[string]any{
            "Kind": h.kindName(s.Kind), "Played": s.Played, "Wins": s.Wins,
            "Losses": s.Losses, "Draws": s.Draws, "Forfeits": s.Forfeits,
        }, s.Kind.String()))
    }
    if recent, err := h.stats.Recent(ctx, party, h.opts.HistoryLimit); err == nil && len(recent) > 0 {
        items := make([]string, 0, len(recent))
        for _, e := range recent {
            items = append(items, outcomeMark(e.Outcome))
        }
        lines = append(lines, h.text("stats.recent", map[string]any{"Items": strings.Join(items, " ")}, ""))
    }
    return h.reply(ctx, msg.Room, util.SeeMore(header, strings.Join(lines, "\n")))
}

// SweepInvites announces challenges that expired without an answer.
func (h *Handler) SweepInvites(ctx context.Context) {
    for _, ch := range h.invites.Sweep() {
        text := h.text("invite.expired", map[string]any{"Target": h.nameOf(ch.TargetID, ch.TargetName)}, "expired")
        if err := h.out.SendText(ctx, ch.OriginRoom, text); err != nil {
            h.log.Warn("invite_expired_send_error", zap.String("code", ch.Code), zap.Error(err))
        }
    }
}

func (h *Handler) helpText() string {
    title := h.text("help.title", nil, "help")
    body := h.text("help.body", map[string]any{
        "Prefix":        h.opts.Prefix,
        "InviteSeconds": int(h.opts.InviteTimeout / time.Second),
        "TurnSeconds":   int(h.opts.TurnTimeout / time.Second),
    }, "")
    return util.SeeMore(title, body)
}

func (h *Handler) reply(ctx context.Context, room, text string) error {
    if err := h.out.SendText(ctx, room, text); err != nil {
        return fmt.Errorf("reply to %s: %w", room, err)
    }
    return nil
}

func (h *Handler) text(key string, data any, fallback string) string {
    if data == nil {
        data = map[string]any{"Prefix": h.opts.Prefix}
    }
    return h.cat.RenderOr(key, data, fallback)
}

func (h *Handler) kindName(k board.Kind) string {
    return h.cat.RenderOr("kind."+k.String(), nil, k.String())
}

func (h *Handler) nameOf(id, name string) string {
    if strings.TrimSpace(name) != "" && name != id {
        return name
    }
    return h.display.Name(duel.Party(id))
}

func outcomeMark(o duel.Outcome) string {
    switch o {
    case duel.OutcomeWon, duel.OutcomeForfeitedByOpponent:
        return "승"
    case duel.OutcomeLost, duel.OutcomeForfeitedBySelf:
        return "패"
    case duel.OutcomeDraw:
        return "무"
    default:
        return "-"
    }
}

func userIDFromMessage(msg *irisfast.Message) string {
    if msg.JSON != nil && strings.TrimSpace(msg.JSON.UserID) != "" {
        return strings.TrimSpace(msg.JSON.UserID)
    }
    if msg.Sender != nil {
        return strings.TrimSpace(*msg.Sender)
    }
    return ""
}

func sanitizeUserArg(s string) string {
    return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func roomAllowed(list []string, room string) bool {
    for _, r := range list {
        if r == room {
            return true
        }
    }
    return false
}
