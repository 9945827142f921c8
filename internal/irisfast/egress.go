package irisfast

import (
    "context"
    "encoding/base64"
    "errors"

    "go.uber.org/zap"
)

// Egress abstracts message/image sending over HTTP or WebSocket.
type Egress interface {
    SendText(ctx context.Context, room, message string) error
    SendImage(ctx context.Context, room string, png []byte) error
}

type transportMode string

const (
    transportHTTP transportMode = "http"
    transportWS   transportMode = "ws"
    transportAuto transportMode = "auto"
)

// NewEgress picks the outbound transport. auto prefers the WebSocket while it is
// connected and falls back to HTTP once per message.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
    if logger == nil {
        logger = zap.NewNop()
    }
    var out Egress
    switch transportMode(mode) {
    case transportWS:
        out = &wsEgress{ws: ws}
    case transportAuto:
        out = &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
    default:
        out = &httpEgress{c: c}
    }
    if dryrun {
        return &dryrunEgress{logger: logger}
    }
    return out
}

// httpEgress delegates to Client.
type httpEgress struct{ c *Client }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
    if h == nil || h.c == nil { return errors.New("http egress not available") }
    return h.c.SendText(ctx, room, message)
}
func (h *httpEgress) SendImage(ctx context.Context, room string, png []byte) error {
    if h == nil || h.c == nil { return errors.New("http egress not available") }
    return h.c.SendImage(ctx, room, png)
}

// wsEgress writes ReplyRequest frames over WebSocket.
type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) ready() bool { return w != nil && w.ws != nil && w.ws.Connected() }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
    if w == nil || w.ws == nil { return errors.New("ws egress not available") }
    return w.ws.WriteJSON(ctx, ReplyRequest{Type: replyText, Room: room, Data: message})
}
func (w *wsEgress) SendImage(ctx context.Context, room string, png []byte) error {
    if w == nil || w.ws == nil { return errors.New("ws egress not available") }
    if len(png) == 0 { return errors.New("empty image") }
    return w.ws.WriteJSON(ctx, ReplyRequest{Type: replyImage, Room: room, Data: base64.StdEncoding.EncodeToString(png)})
}

type autoEgress struct {
    ws     *wsEgress
    http   *httpEgress
    logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
    if a.ws.ready() {
        err := a.ws.SendText(ctx, room, message)
        if err == nil { return nil }
        a.logger.Warn("egress_fallback", zap.String("type", replyText), zap.String("room", room), zap.Error(err))
    }
    return a.http.SendText(ctx, room, message)
}
func (a *autoEgress) SendImage(ctx context.Context, room string, png []byte) error {
    if a.ws.ready() {
        err := a.ws.SendImage(ctx, room, png)
        if err == nil { return nil }
        a.logger.Warn("egress_fallback", zap.String("type", replyImage), zap.String("room", room), zap.Error(err))
    }
    return a.http.SendImage(ctx, room, png)
}

// dryrunEgress only logs; used when the bot runs against a live room without replying.
type dryrunEgress struct{ logger *zap.Logger }

func (d *dryrunEgress) SendText(_ context.Context, room, message string) error {
    d.logger.Info("egress_dryrun", zap.String("type", replyText), zap.String("room", room), zap.Int("len", len(message)))
    return nil
}
func (d *dryrunEgress) SendImage(_ context.Context, room string, png []byte) error {
    d.logger.Info("egress_dryrun", zap.String("type", replyImage), zap.String("room", room), zap.Int("bytes", len(png)))
    return nil
}
