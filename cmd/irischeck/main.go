package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "time"

    "github.com/caarlos0/env/v11"
    "go.uber.org/zap"

    "github.com/park285/critter-kakao-bot/internal/irisfast"
    "github.com/park285/critter-kakao-bot/internal/obslog"
)

type checkEnv struct {
    BaseURL   string `env:"IRIS_BASE_URL,required"`
    WSURL     string `env:"IRIS_WS_URL"`
    UserID    string `env:"X_USER_ID"`
    UserEmail string `env:"X_USER_EMAIL"`
    SessionID string `env:"X_SESSION_ID"`
}

func main() {
    room := flag.String("room", "", "send a test reply to this room")
    watch := flag.Duration("watch", 10*time.Second, "how long to print incoming WS messages")
    flag.Parse()

    if err := obslog.InitFromEnv(); err != nil {
        fmt.Fprintln(os.Stderr, "logger init:", err)
        os.Exit(1)
    }
    log := obslog.L()
    defer func() { _ = log.Sync() }()

    var ce checkEnv
    if err := env.Parse(&ce); err != nil {
        log.Fatal("config_error", zap.Error(err))
    }
    headers := func() map[string]string {
        return map[string]string{"X-User-Id": ce.UserID, "X-User-Email": ce.UserEmail, "X-Session-Id": ce.SessionID}
    }

    client := irisfast.NewClient(ce.BaseURL, irisfast.WithHeaderProvider(headers), irisfast.WithTimeout(8*time.Second))
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if cfg, err := client.GetConfig(ctx); err != nil {
        log.Error("config_check_failed", zap.Error(err))
    } else {
        log.Info("config_check_ok", zap.String("bot", cfg.BotName), zap.Int("port", cfg.Port), zap.Int("polling", cfg.PollingSpeed), zap.Int("rate", cfg.MessageRate), zap.String("endpoint", cfg.WebserverEndpoint))
    }
    if *room != "" {
        if err := client.SendText(ctx, *room, "irischeck "+time.Now().Format(time.RFC3339)); err != nil {
            log.Error("reply_check_failed", zap.String("room", *room), zap.Error(err))
        } else {
            log.Info("reply_check_ok", zap.String("room", *room))
        }
    }

    if ce.WSURL == "" {
        log.Info("ws_check_skipped", zap.String("reason", "IRIS_WS_URL not set"))
        return
    }
    ws := irisfast.NewWebSocket(ce.WSURL, 0, time.Second)
    ws.SetHeaderProvider(headers)
    ws.OnStateChange(func(state irisfast.WebSocketState) {
        log.Info("ws_state", zap.String("state", state.String()))
    })
    ws.OnMessage(func(msg *irisfast.Message) {
        log.Info("ws_message", zap.String("room", msg.Room), zap.String("from", msg.SenderName()), zap.String("text", msg.Msg))
    })
    cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer ccancel()
    if err := ws.Connect(cctx); err != nil {
        log.Error("ws_connect_failed", zap.Error(err))
        return
    }
    time.Sleep(*watch)
    _ = ws.Close(context.Background())
}
