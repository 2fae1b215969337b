// Package logger builds the zap loggers of the CLI and the HTTP server and the field
// constructors every component uses, so lines about one category, session or query join up.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared across packages.
const (
	KeyCategory  = "category"
	KeySessionID = "session_id"
	KeyQuery     = "query"
	KeyIP        = "ip"
	KeyRequestID = "request_id"
)

// Category tags a line with a warehouse category.
func Category(name string) zap.Field { return zap.String(KeyCategory, name) }

// SessionID tags a line with a warehouse session.
func SessionID(id string) zap.Field { return zap.String(KeySessionID, id) }

// Query tags a line with query text.
func Query(q string) zap.Field { return zap.String(KeyQuery, q) }

// IP tags a line with the address being enriched.
func IP(ip string) zap.Field { return zap.String(KeyIP, ip) }

// RequestID tags a line with the HTTP request id.
func RequestID(id string) zap.Field { return zap.String(KeyRequestID, id) }

// NewLogger creates a logger for env with an optional level (debug, info, warn, error).
//
//	prod                JSON to stderr
//	local, dev, docker  colored console with caller
//	cli, test           terse console on stderr, no timestamps; stdout stays free for results
func NewLogger(env, level string) (*zap.Logger, error) {
	cfg, err := preset(env)
	if err != nil {
		return nil, err
	}
	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.With(zap.String("env", env)), nil
}

func preset(env string) (zap.Config, error) {
	switch env {
	case "prod":
		return zap.NewProductionConfig(), nil
	case "local", "dev", "docker":
		return zap.NewDevelopmentConfig(), nil
	case "cli", "test":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		if env == "test" {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.TimeKey = ""
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return cfg, nil
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}
}
