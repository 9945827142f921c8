package obslog

import (
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync/atomic"

    "github.com/caarlos0/env/v11"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// 전역 로거. 초기화 전에는 Nop.
var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L는 전역 로거를 반환.
func L() *zap.Logger { return global.Load() }

// Set replaces the global logger; nil restores Nop.
func Set(l *zap.Logger) {
    if l == nil {
        l = zap.NewNop()
    }
    global.Store(l)
}

// Config is read from LOG_* variables.
type Config struct {
    Level   string `env:"LOG_LEVEL" envDefault:"info"`
    Format  string `env:"LOG_FORMAT" envDefault:"legacy"`
    Console bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
    ToFile  bool   `env:"LOG_TO_FILE" envDefault:"false"`
    File    string `env:"LOG_FILE" envDefault:"logs/critter-bot.log"`
    Caller  bool   `env:"LOG_CALLER" envDefault:"false"`
}

// InitFromEnv는 환경설정으로 전역 zap 로거를 초기화.
func InitFromEnv() error {
    var cfg Config
    if err := env.Parse(&cfg); err != nil {
        return fmt.Errorf("parse log env: %w", err)
    }
    l, err := Build(cfg)
    if err != nil {
        return err
    }
    Set(l)
    return nil
}

// Build creates a logger with console and/or file cores. Error and above carry a stacktrace.
func Build(cfg Config) (*zap.Logger, error) {
    level := parseLevel(cfg.Level)
    format := strings.ToLower(strings.TrimSpace(cfg.Format))
    if format != "legacy" && format != "json" && format != "console" {
        format = "legacy"
    }

    var cores []zapcore.Core
    if cfg.Console {
        cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(os.Stdout), level))
    }
    if cfg.ToFile {
        path := strings.TrimSpace(cfg.File)
        if path == "" {
            return nil, fmt.Errorf("LOG_FILE is empty")
        }
        if dir := filepath.Dir(path); dir != "." {
            if err := os.MkdirAll(dir, 0o755); err != nil {
                return nil, fmt.Errorf("create log dir: %w", err)
            }
        }
        f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
        if err != nil {
            return nil, fmt.Errorf("open log file: %w", err)
        }
        cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(f), level))
    }
    if len(cores) == 0 {
        return zap.NewNop(), nil
    }

    opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
    if cfg.Caller || format == "legacy" {
        opts = append(opts, zap.AddCaller())
    }
    return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func encoderFor(format string) zapcore.Encoder {
    switch format {
    case "json":
        cfg := zap.NewProductionEncoderConfig()
        cfg.EncodeTime = zapcore.ISO8601TimeEncoder
        cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
        return zapcore.NewJSONEncoder(cfg)
    case "console":
        cfg := zap.NewProductionEncoderConfig()
        cfg.EncodeTime = zapcore.ISO8601TimeEncoder
        cfg.EncodeLevel = zapcore.CapitalLevelEncoder
        return zapcore.NewConsoleEncoder(cfg)
    default:
        cfg := zap.NewProductionEncoderConfig()
        cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
        cfg.EncodeLevel = zapcore.CapitalLevelEncoder
        cfg.ConsoleSeparator = " | "
        return zapcore.NewConsoleEncoder(cfg)
    }
}

func parseLevel(s string) zapcore.Level {
    var lvl zapcore.Level
    if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
        if strings.EqualFold(strings.TrimSpace(s), "warning") {
            return zapcore.WarnLevel
        }
        return zapcore.InfoLevel
    }
    return lvl
}
