// Package logsink writes audit events as structured log records. It is the
// default sink and the fallback when the broker is unavailable.
package logsink

import (
	"context"
	"log/slog"

	audit "cinelog/pkg/platform/audit"
)

// Sink logs each event at a level derived from its severity.
type Sink struct {
	logger *slog.Logger
}

// New returns a Sink writing to logger.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger.With("component", "audit")}
}

func (s *Sink) Write(ctx context.Context, events []audit.Event) error {
	for _, e := range events {
		s.logger.Log(ctx, level(e.Severity), "audit event",
			"category", e.Category,
			"action", e.Action,
			"subject", e.Subject,
			"reason", e.Reason,
			"route", e.Route,
			"ip", e.IP,
			"request_id", e.RequestID,
			"timestamp", e.Timestamp,
		)
	}
	return nil
}

func level(s audit.Severity) slog.Level {
	switch s {
	case audit.SeverityCritical:
		return slog.LevelError
	case audit.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
