// Package logx builds the binaries' loggers.
package logx

import (
	"context"
	"log/slog"

	"github.com/dikkadev/prettyslog"
)

// leveled gates an inner handler on a dynamic level.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{h.Handler.WithAttrs(attrs), h.level}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{h.Handler.WithGroup(name), h.level}
}

// New returns a pretty logger named name whose level follows level.
func New(name string, level *slog.LevelVar) *slog.Logger {
	inner := prettyslog.NewPrettyslogHandler(name,
		prettyslog.WithLevel(slog.LevelDebug),
	)
	return slog.New(leveled{Handler: inner, level: level})
}
