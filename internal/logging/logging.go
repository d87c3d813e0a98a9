// Package logging configures slog and carries request-scoped loggers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/marquee/apiserver/config"
)

type ctxKey struct{}

// New returns a logger built from cfg and installs it as the slog default.
func New(cfg config.LogConfig, env string) *slog.Logger {
	logger := NewWithWriter(os.Stdout, cfg, env)
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter is New without touching the slog default.
func NewWithWriter(w io.Writer, cfg config.LogConfig, env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: env == "dev",
		Level:     ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "marquee", "env", env)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or slog.Default if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}
