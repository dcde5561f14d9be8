package telemetry

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-rover/internal/log"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink logs through l, or the global logger when l is nil.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = log.With("component", "telemetry")
	}
	return &LogSink{logger: l}
}

// Emit logs one info record.
func (s *LogSink) Emit(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "vehicle state",
		"subject", e.Subject,
		"mode", e.Mode,
		"throttle", e.State.Throttle,
		"front_s", e.State.FrontSteer,
		"rear_s", e.State.RearSteer,
		"pan", e.State.Pan,
		"tilt", e.State.Tilt,
	)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error {
	return nil
}
