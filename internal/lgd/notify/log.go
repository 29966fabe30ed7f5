package notify

import (
	"context"
	"log/slog"

	"g2p/internal/lgd/models"
)

// Log writes changes to the structured log. It is the default target when no
// broker is configured and the fallback while the broker is unreachable.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) NotifyConfidenceChange(ctx context.Context, change models.ConfidenceChange) error {
	l.logger.InfoContext(ctx, "confidence change notification",
		"event", "confidence_change_notified",
		"log_type", "audit",
		"stable_id", change.StableID,
		"old_confidence", change.Old,
		"new_confidence", change.New,
		"actor", change.Actor,
		"link", change.Link,
	)
	return nil
}
