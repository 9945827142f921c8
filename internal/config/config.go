package config

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/BurntSushi/toml"
    "github.com/caarlos0/env/v11"

    "github.com/park285/critter-kakao-bot/internal/duel"
)

type AppConfig struct {
    IrisBaseURL string `env:"IRIS_BASE_URL"`
    IrisWSURL   string `env:"IRIS_WS_URL"`
    BotPrefix   string `env:"BOT_PREFIX"`

    XUserID    string `env:"X_USER_ID"`
    XUserEmail string `env:"X_USER_EMAIL"`
    XSessionID string `env:"X_SESSION_ID"`

    EgressMode   string `env:"EGRESS_MODE" envDefault:"http"`
    EgressDryrun bool   `env:"EGRESS_DRYRUN"`

    RedisURL    string `env:"REDIS_URL"`
    DatabaseURL string `env:"DATABASE_URL"`
    NATSURL     string `env:"NATS_URL"`

    AllowedRooms       []string `env:"ALLOWED_ROOMS" envSeparator:","`
    MaxConcurrentGames int      `env:"MAX_CONCURRENT_GAMES" envDefault:"200"`

    TurnTimeout   time.Duration `env:"DUEL_TURN_TIMEOUT" envDefault:"60s"`
    InviteTimeout time.Duration `env:"DUEL_INVITE_TIMEOUT" envDefault:"60s"`
    RevealGrace   time.Duration `env:"PAIR_REVEAL_GRACE" envDefault:"2s"`
    PairRoundCap  int           `env:"PAIR_ROUND_CAP" envDefault:"30"`
    QueueSize     int           `env:"DUEL_QUEUE_SIZE" envDefault:"16"`
    RegistryTTL   time.Duration `env:"DUEL_REGISTRY_TTL" envDefault:"2h"`
    HistoryLimit  int           `env:"DUEL_HISTORY_LIMIT" envDefault:"5"`

    MessagesDir string `env:"MESSAGES_DIR"`
    TuningFile  string `env:"DUEL_TUNING_FILE"`
}

// tuning is the optional TOML file; keys that are present override the environment.
type tuning struct {
    Duel struct {
        TurnTimeout time.Duration `toml:"turn_timeout"`
        QueueSize   int           `toml:"queue_size"`
        MaxActive   int           `toml:"max_active"`
    } `toml:"duel"`
    Pairs struct {
        RevealGrace time.Duration `toml:"reveal_grace"`
        RoundCap    int           `toml:"round_cap"`
    } `toml:"pairs"`
    Invite struct {
        Timeout time.Duration `toml:"timeout"`
    } `toml:"invite"`
}

func Load() (*AppConfig, error) {
    return load(env.Options{})
}

func load(opts env.Options) (*AppConfig, error) {
    cfg := &AppConfig{}
    if err := env.ParseWithOptions(cfg, opts); err != nil {
        return nil, fmt.Errorf("parse env: %w", err)
    }
    cfg.normalize()

    if cfg.TuningFile != "" {
        if err := cfg.applyTuning(cfg.TuningFile); err != nil {
            return nil, err
        }
    }
    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *AppConfig) normalize() {
    c.IrisBaseURL = strings.TrimSpace(c.IrisBaseURL)
    c.IrisWSURL = strings.TrimSpace(c.IrisWSURL)
    c.BotPrefix = strings.TrimSpace(c.BotPrefix)
    c.EgressMode = strings.ToLower(strings.TrimSpace(c.EgressMode))
    rooms := c.AllowedRooms[:0]
    for _, r := range c.AllowedRooms {
        if s := strings.TrimSpace(r); s != "" {
            rooms = append(rooms, s)
        }
    }
    c.AllowedRooms = rooms
}

func (c *AppConfig) applyTuning(path string) error {
    var t tuning
    md, err := toml.DecodeFile(path, &t)
    if err != nil {
        return fmt.Errorf("read tuning file: %w", err)
    }
    if undec := md.Undecoded(); len(undec) > 0 {
        return fmt.Errorf("tuning file: unknown key %s", undec[0])
    }
    if md.IsDefined("duel", "turn_timeout") {
        c.TurnTimeout = t.Duel.TurnTimeout
    }
    if md.IsDefined("duel", "queue_size") {
        c.QueueSize = t.Duel.QueueSize
    }
    if md.IsDefined("duel", "max_active") {
        c.MaxConcurrentGames = t.Duel.MaxActive
    }
    if md.IsDefined("pairs", "reveal_grace") {
        c.RevealGrace = t.Pairs.RevealGrace
    }
    if md.IsDefined("pairs", "round_cap") {
        c.PairRoundCap = t.Pairs.RoundCap
    }
    if md.IsDefined("invite", "timeout") {
        c.InviteTimeout = t.Invite.Timeout
    }
    return nil
}

func (c *AppConfig) validate() error {
    var errs []error
    if c.IrisBaseURL == "" {
        errs = append(errs, errors.New("IRIS_BASE_URL is required"))
    }
    if c.IrisWSURL == "" {
        errs = append(errs, errors.New("IRIS_WS_URL is required"))
    }
    if c.BotPrefix == "" {
        errs = append(errs, errors.New("BOT_PREFIX is required"))
    }
    switch c.EgressMode {
    case "http", "ws", "auto":
    default:
        errs = append(errs, fmt.Errorf("EGRESS_MODE must be http, ws or auto: %q", c.EgressMode))
    }
    if c.TurnTimeout <= 0 || c.InviteTimeout <= 0 {
        errs = append(errs, errors.New("turn and invite timeouts must be positive"))
    }
    if c.RevealGrace < 0 {
        errs = append(errs, errors.New("reveal grace must not be negative"))
    }
    if c.PairRoundCap < 1 || c.QueueSize < 1 || c.MaxConcurrentGames < 1 {
        errs = append(errs, errors.New("round cap, queue size and max games must be at least 1"))
    }
    return errors.Join(errs...)
}

// DuelConfig is the engine tuning derived from the app config.
func (c *AppConfig) DuelConfig() duel.Config {
    return duel.Config{
        TurnTimeout:  c.TurnTimeout,
        RevealGrace:  c.RevealGrace,
        PairRoundCap: c.PairRoundCap,
        QueueSize:    c.QueueSize,
    }
}

// Headers are the X-User-* values Iris expects on every request and handshake.
func (c *AppConfig) Headers() map[string]string {
    h := map[string]string{}
    if c.XUserID != "" {
        h["X-User-Id"] = c.XUserID
    }
    if c.XUserEmail != "" {
        h["X-User-Email"] = c.XUserEmail
    }
    if c.XSessionID != "" {
        h["X-Session-Id"] = c.XSessionID
    }
    return h
}
