// Package capture provides screen capture sources.
package capture

import (
	"context"
	"log/slog"

	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// Source produces raw frames for a session. One Source serves every session;
// any per-capture state is kept per session id. Implementations return an
// error wrapping domain.ErrCaptureUnavailable when no frame can be taken
// right now.
type Source interface {
	Capture(ctx context.Context, sessionID string) (domain.RawFrame, error)
}

// Releaser is implemented by sources that keep per-session state; Release is
// called once a session is stopped.
type Releaser interface {
	Release(sessionID string)
}

// FuncSource adapts a function to Source.
type FuncSource func(ctx context.Context, sessionID string) (domain.RawFrame, error)

// Capture calls f.
func (f FuncSource) Capture(ctx context.Context, sessionID string) (domain.RawFrame, error) {
	return f(ctx, sessionID)
}

// Unavailable is a Source that never yields a frame.
var Unavailable Source = FuncSource(func(ctx context.Context, sessionID string) (domain.RawFrame, error) {
	return domain.RawFrame{}, domain.ErrCaptureUnavailable
})

// NewSource builds the source selected by configuration. A capture command
// takes precedence over a capture directory.
func NewSource(cfg *config.Config, logger *slog.Logger) (Source, error) {
	switch {
	case cfg.CaptureCommand != "":
		logger.Info("capture source configured", "kind", "command", "command", cfg.CaptureCommand)
		return NewCommandSource(cfg.CaptureCommand, cfg.CaptureTimeout), nil
	case cfg.CaptureDir != "":
		logger.Info("capture source configured", "kind", "dir", "dir", cfg.CaptureDir, "pattern", cfg.CaptureGlob)
		return NewDirSource(cfg.CaptureDir, cfg.CaptureGlob)
	default:
		logger.Warn("no capture source configured, every tick will be skipped")
		return Unavailable, nil
	}
}
