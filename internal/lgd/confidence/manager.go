// Package confidence moves records between confidence levels and keeps the
// append-only audit trail of every committed transition.
package confidence

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"g2p/internal/lgd/metrics"
	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
	"g2p/pkg/platform/sentinel"
	"g2p/pkg/requestcontext"
)

var tracer = otel.Tracer("g2p/lgd/confidence")

type Store interface {
	FindForUpdate(ctx context.Context, stableID string) (*models.Record, error)
	Update(ctx context.Context, rec *models.Record) error
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListByRecord(ctx context.Context, stableID string) ([]models.AuditEntry, error)
}

// Notifier receives committed transitions. Delivery is best effort.
type Notifier interface {
	NotifyConfidenceChange(ctx context.Context, change models.ConfidenceChange) error
}

// ChangeRequest asks for a record to move from the level the caller observed
// (From) to level To. The transition only applies if the record is still at
// From, so of two concurrent requests made against the same read only one
// commits.
type ChangeRequest struct {
	StableID      string
	From          string
	To            string
	Actor         string
	Justification string
}

type Manager struct {
	store    Store
	audit    AuditStore
	notifier Notifier
	locks    *recordLocks
	logger   *slog.Logger
	metrics  *metrics.Metrics
	linkBase string
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithLinkBase sets the public base URL used for record links in notifications.
func WithLinkBase(base string) Option {
	return func(m *Manager) {
		m.linkBase = strings.TrimRight(base, "/")
	}
}

func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.locks.timeout = d
	}
}

func New(store Store, audit AuditStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		audit:  audit,
		locks:  &recordLocks{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Change applies a confidence transition. The read, no-op check, record write
// and audit append happen as one unit under the record's lock; the notifier
// is only called once that unit committed.
func (m *Manager) Change(ctx context.Context, req ChangeRequest) (*models.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "confidence.Change", trace.WithAttributes(
		attribute.String("stable_id", req.StableID),
		attribute.String("to", req.To),
	))
	defer span.End()

	from, to, err := validate(req)
	if err != nil {
		return nil, err
	}

	var entry models.AuditEntry
	err = m.locks.withLock(ctx, req.StableID, func(ctx context.Context) error {
		return m.store.RunInTx(ctx, func(ctx context.Context) error {
			rec, err := m.store.FindForUpdate(ctx, req.StableID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "record not found")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
			}
			if rec.Confidence == to {
				return dErrors.New(dErrors.CodeNoOpTransition, "record is already at confidence "+string(to))
			}
			if from != rec.Confidence {
				return dErrors.New(dErrors.CodeConflict,
					"record confidence is "+string(rec.Confidence)+", not "+string(from))
			}

			now := requestcontext.Now(ctx).UTC()
			entry = models.AuditEntry{
				ID:            uuid.New(),
				StableID:      rec.StableID,
				From:          rec.Confidence,
				To:            to,
				Actor:         strings.TrimSpace(req.Actor),
				Justification: strings.TrimSpace(req.Justification),
				Timestamp:     now,
			}
			rec.Confidence = to
			rec.LastUpdated = now
			if err := m.store.Update(ctx, rec); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update record")
			}
			if err := m.audit.Append(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
			}
			return nil
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	m.metrics.IncrementTransition(string(entry.From), string(entry.To))
	m.logger.InfoContext(ctx, "confidence changed",
		"event", "confidence_changed",
		"log_type", "audit",
		"stable_id", entry.StableID,
		"from", entry.From,
		"to", entry.To,
		"actor", entry.Actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	m.notify(ctx, entry)
	return &entry, nil
}

// History lists the transitions of a record, newest first.
func (m *Manager) History(ctx context.Context, stableID string) ([]models.AuditEntry, error) {
	entries, err := m.audit.ListByRecord(ctx, stableID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list confidence history")
	}
	return entries, nil
}

func (m *Manager) notify(ctx context.Context, entry models.AuditEntry) {
	if m.notifier == nil {
		return
	}
	change := models.ConfidenceChange{
		StableID:  entry.StableID,
		Old:       entry.From,
		New:       entry.To,
		Actor:     entry.Actor,
		Timestamp: entry.Timestamp,
		Link:      m.linkBase + "/lgd/" + entry.StableID,
	}
	if err := m.notifier.NotifyConfidenceChange(ctx, change); err != nil {
		m.metrics.IncrementNotificationFailure()
		m.logger.WarnContext(ctx, "confidence change notification failed",
			"stable_id", entry.StableID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func validate(req ChangeRequest) (models.Confidence, models.Confidence, error) {
	var fields []dErrors.Field
	to, ok := models.ParseConfidence(req.To)
	if !ok {
		fields = append(fields, dErrors.Field{Path: "confidence", Reason: "must be one of refuted, limited, moderate, strong, definitive"})
	}
	from, ok := models.ParseConfidence(req.From)
	switch {
	case strings.TrimSpace(req.From) == "":
		fields = append(fields, dErrors.Field{Path: "from", Reason: "is required"})
	case !ok:
		fields = append(fields, dErrors.Field{Path: "from", Reason: "is not a confidence level"})
	}
	if strings.TrimSpace(req.Actor) == "" {
		fields = append(fields, dErrors.Field{Path: "actor", Reason: "is required"})
	}
	if strings.TrimSpace(req.Justification) == "" {
		fields = append(fields, dErrors.Field{Path: "justification", Reason: "is required"})
	}
	if len(fields) > 0 {
		return "", "", dErrors.WithFields(dErrors.CodeValidation, "invalid confidence transition", fields)
	}
	return from, to, nil
}
