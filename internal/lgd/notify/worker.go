package notify

import (
	"context"
	"errors"
	"log/slog"

	"g2p/internal/lgd/metrics"
	"g2p/internal/lgd/models"
)

var ErrQueueFull = errors.New("notification queue full")

// Queue hands changes to a background Worker so a slow broker never holds up
// the request that committed the transition.
type Queue struct {
	ch chan models.ConfidenceChange
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan models.ConfidenceChange, size)}
}

// NotifyConfidenceChange enqueues without blocking.
func (q *Queue) NotifyConfidenceChange(_ context.Context, change models.ConfidenceChange) error {
	select {
	case q.ch <- change:
		return nil
	default:
		return ErrQueueFull
	}
}

// Worker drains a Queue into a target notifier.
type Worker struct {
	inbox   <-chan models.ConfidenceChange
	target  Notifier
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewWorker(q *Queue, target Notifier, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{inbox: q.ch, target: target, logger: logger, metrics: m}
}

// Run delivers until ctx is cancelled. Delivery failures are logged and
// counted; they never stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-w.inbox:
			if err := w.target.NotifyConfidenceChange(ctx, change); err != nil {
				w.metrics.IncrementNotificationFailure()
				w.logger.WarnContext(ctx, "confidence change delivery failed",
					"stable_id", change.StableID,
					"error", err,
				)
			}
		}
	}
}
