// Package service orchestrates curation of LGMDE records: validation,
// assembly, persistence, confidence transitions, search and panel statistics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"g2p/internal/curation/schema"
	"g2p/internal/curation/xref"
	"g2p/internal/lgd/assembler"
	"g2p/internal/lgd/confidence"
	"g2p/internal/lgd/metrics"
	"g2p/internal/lgd/models"
	"g2p/internal/lgd/panel"
	"g2p/internal/lgd/search"
	"g2p/internal/reference"
	"g2p/pkg/attrs"
	dErrors "g2p/pkg/domain-errors"
	"g2p/pkg/platform/sentinel"
	dedupe "g2p/pkg/platform/strings"
	"g2p/pkg/requestcontext"
)

var tracer = otel.Tracer("g2p/lgd/service")

// Store persists records. Implementations return sentinel.ErrNotFound and
// sentinel.ErrConflict; the service translates them.
type Store interface {
	Create(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, stableID string) (*models.Record, error)
	FindForUpdate(ctx context.Context, stableID string) (*models.Record, error)
	FindByKey(ctx context.Context, key models.RecordKey) (*models.Record, error)
	Scan(ctx context.Context, fn func(*models.Record) error) error
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListByRecord(ctx context.Context, stableID string) ([]models.AuditEntry, error)
}

// Reference is the catalog the service resolves panels, loci and vocabularies against.
type Reference interface {
	assembler.Reference
	ListPanels(includeHidden bool) []reference.Panel
	Vocabularies() reference.Vocabulary
}

// Service is safe for concurrent use.
type Service struct {
	records    Store
	ref        Reference
	assembler  *assembler.Assembler
	confidence *confidence.Manager
	index      *search.Index
	panels     *panel.Aggregator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type config struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	notifier    confidence.Notifier
	linkBase    string
	pageSize    int
	lockTimeout time.Duration
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithNotifier sets where committed confidence changes are delivered.
func WithNotifier(n confidence.Notifier) Option {
	return func(c *config) {
		c.notifier = n
	}
}

// WithLinkBase sets the public base URL record links are built from.
func WithLinkBase(base string) Option {
	return func(c *config) {
		c.linkBase = base
	}
}

func WithPageSize(n int) Option {
	return func(c *config) {
		c.pageSize = n
	}
}

func WithLockTimeout(d time.Duration) Option {
	return func(c *config) {
		c.lockTimeout = d
	}
}

// New wires the record components around one store. The search index starts
// empty; call RebuildIndex before serving.
func New(records Store, audit AuditStore, allocator assembler.Allocator, ref Reference, opts ...Option) *Service {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	confOpts := []confidence.Option{
		confidence.WithLogger(cfg.logger),
		confidence.WithMetrics(cfg.metrics),
		confidence.WithNotifier(cfg.notifier),
		confidence.WithLinkBase(cfg.linkBase),
	}
	if cfg.lockTimeout > 0 {
		confOpts = append(confOpts, confidence.WithLockTimeout(cfg.lockTimeout))
	}

	return &Service{
		records:    records,
		ref:        ref,
		assembler:  assembler.New(allocator, ref),
		confidence: confidence.New(records, audit, confOpts...),
		index:      search.NewIndex(ref, search.WithMetrics(cfg.metrics), search.WithPageSize(cfg.pageSize)),
		panels:     panel.New(records, ref),
		logger:     cfg.logger,
		metrics:    cfg.metrics,
	}
}

// ReadinessReport lists what still keeps a submission from publication.
type ReadinessReport struct {
	Ready   bool            `json:"ready"`
	Missing []dErrors.Field `json:"missing"`
}

// CommentInput is a curator note added to an existing record.
type CommentInput struct {
	Text   string `json:"comment"`
	Public bool   `json:"is_public"`
}

// ConfidenceInput asks for a confidence transition on behalf of the caller.
// From is the level the caller last saw on the record.
type ConfidenceInput struct {
	From          string `json:"from"`
	To            string `json:"confidence"`
	Justification string `json:"justification"`
}

// Validate runs schema validation followed by the publication cross-reference
// check. Nothing is written.
func (s *Service) Validate(ctx context.Context, raw []byte) (*models.Submission, error) {
	_, span := tracer.Start(ctx, "service.Validate")
	defer span.End()

	sub, err := schema.Validate(raw, schema.WithPanels(s.knownPanel))
	if err != nil {
		s.metrics.IncrementValidationFailure("schema")
		return nil, fail(span, err)
	}
	if err := xref.Check(sub); err != nil {
		s.metrics.IncrementValidationFailure("reference")
		return nil, fail(span, err)
	}
	return sub, nil
}

// Readiness reports the publication gaps of a structurally valid submission.
func (s *Service) Readiness(ctx context.Context, raw []byte) (*ReadinessReport, error) {
	_, span := tracer.Start(ctx, "service.Readiness")
	defer span.End()

	sub, err := schema.Validate(raw)
	if err != nil {
		s.metrics.IncrementValidationFailure("schema")
		return nil, fail(span, err)
	}
	chromosome := ""
	if l, ok := s.ref.Locus(sub.Locus); ok {
		chromosome = l.Sequence
	}
	missing := schema.Readiness(sub, chromosome)
	if missing == nil {
		missing = []dErrors.Field{}
	}
	return &ReadinessReport{Ready: len(missing) == 0, Missing: missing}, nil
}

// Create validates a submission and stores it as a new, unreviewed record.
func (s *Service) Create(ctx context.Context, raw []byte) (*models.Record, error) {
	defer s.metrics.ObserveOperation("create", time.Now())
	ctx, span := tracer.Start(ctx, "service.Create")
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	sub, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.normalizeLists(sub); err != nil {
		return nil, fail(span, err)
	}

	probe := &models.Record{
		Locus:              s.assembler.ResolveLocus(sub.Locus),
		Genotype:           sub.AllelicRequirement,
		Disease:            *sub.Disease,
		MolecularMechanism: sub.MolecularMechanism,
	}
	if err := s.ensureUnique(ctx, probe.Key(), ""); err != nil {
		return nil, fail(span, err)
	}

	rec, err := s.assembler.Assemble(ctx, sub)
	if err != nil {
		s.metrics.IncrementAllocationFailure()
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("stable_id", rec.StableID))
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fail(span, translate(err, "failed to create record"))
	}

	s.index.Put(rec)
	s.metrics.IncrementWrite("create")
	s.logAudit(ctx, "record_created",
		"stable_id", rec.StableID,
		"gene", rec.Locus.Symbol,
		"user_id", requestcontext.UserID(ctx),
	)
	return rec, nil
}

// Update merges a partial submission into an existing record. Locus and
// confidence cannot change here; confidence moves through ChangeConfidence.
func (s *Service) Update(ctx context.Context, stableID string, raw []byte) (*models.Record, error) {
	defer s.metrics.ObserveOperation("update", time.Now())
	ctx, span := s.startRecordSpan(ctx, "service.Update", stableID)
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	doc, err := schema.Decode(raw)
	if err != nil {
		s.metrics.IncrementValidationFailure("schema")
		return nil, fail(span, err)
	}

	var updated *models.Record
	err = s.records.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.FindForUpdate(ctx, stableID)
		if err != nil {
			return translate(err, "failed to load record")
		}
		sub, err := s.validatePartial(doc, rec)
		if err != nil {
			return err
		}
		if sub.Has("locus") && !strings.EqualFold(strings.TrimSpace(sub.Locus), rec.Locus.Symbol) {
			return fieldError(dErrors.CodeValidation, "locus", "cannot be changed on an existing record")
		}
		if c, ok := models.ParseConfidence(sub.Confidence); ok && sub.Has("confidence") && c != rec.Confidence {
			return fieldError(dErrors.CodeValidation, "confidence", "must be changed through a confidence transition")
		}
		if err := s.normalizeLists(sub); err != nil {
			return err
		}

		merged := s.assembler.Merge(ctx, rec, sub)
		if err := xref.CheckRecord(merged); err != nil {
			s.metrics.IncrementValidationFailure("reference")
			return err
		}
		if merged.Key() != rec.Key() {
			if err := s.ensureUnique(ctx, merged.Key(), rec.StableID); err != nil {
				return err
			}
		}
		if err := s.records.Update(ctx, merged); err != nil {
			return translate(err, "failed to update record")
		}
		updated = merged
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.index.Put(updated)
	s.metrics.IncrementWrite("update")
	s.logAudit(ctx, "record_updated", "stable_id", stableID, "user_id", requestcontext.UserID(ctx))
	return updated, nil
}

// AddComment appends a public or private curator comment.
func (s *Service) AddComment(ctx context.Context, stableID string, in CommentInput) (*models.Record, error) {
	defer s.metrics.ObserveOperation("comment", time.Now())
	ctx, span := s.startRecordSpan(ctx, "service.AddComment", stableID)
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fail(span, fieldError(dErrors.CodeValidation, "comment", "is required"))
	}

	rec, err := s.mutate(ctx, stableID, func(rec *models.Record, now time.Time) error {
		rec.Comments = append(rec.Comments, models.Comment{
			Text:   text,
			Public: in.Public,
			Author: requestcontext.UserID(ctx),
			Date:   now,
		})
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	s.metrics.IncrementWrite("comment")
	s.logAudit(ctx, "record_comment_added",
		"stable_id", stableID,
		"public", in.Public,
		"user_id", requestcontext.UserID(ctx),
	)
	return rec, nil
}

// AddPublications links further publications, with the phenotypes, variant
// data and mechanism evidence they support, to an existing record.
func (s *Service) AddPublications(ctx context.Context, stableID string, raw []byte) (*models.Record, error) {
	defer s.metrics.ObserveOperation("publications", time.Now())
	ctx, span := s.startRecordSpan(ctx, "service.AddPublications", stableID)
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	doc, err := schema.Decode(raw)
	if err != nil {
		s.metrics.IncrementValidationFailure("schema")
		return nil, fail(span, err)
	}

	var updated *models.Record
	err = s.records.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.FindForUpdate(ctx, stableID)
		if err != nil {
			return translate(err, "failed to load record")
		}
		sub, err := s.validatePartial(doc, rec)
		if err != nil {
			return err
		}
		if len(sub.Publications) == 0 {
			return fieldError(dErrors.CodeValidation, "publications", "is required")
		}
		extended := s.assembler.Extend(ctx, rec, sub)
		if err := xref.CheckRecord(extended); err != nil {
			s.metrics.IncrementValidationFailure("reference")
			return err
		}
		if err := s.records.Update(ctx, extended); err != nil {
			return translate(err, "failed to update record")
		}
		updated = extended
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.index.Put(updated)
	s.metrics.IncrementWrite("publications")
	s.logAudit(ctx, "record_publications_added",
		"stable_id", stableID,
		"publications", len(updated.Publications),
		"user_id", requestcontext.UserID(ctx),
	)
	return updated, nil
}

// SetReviewed marks a record as reviewed (visible to the public) or back to under review.
func (s *Service) SetReviewed(ctx context.Context, stableID string, reviewed bool) (*models.Record, error) {
	defer s.metrics.ObserveOperation("review", time.Now())
	ctx, span := s.startRecordSpan(ctx, "service.SetReviewed", stableID)
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	rec, err := s.mutate(ctx, stableID, func(rec *models.Record, _ time.Time) error {
		rec.IsReviewed = 0
		if reviewed {
			rec.IsReviewed = 1
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	s.metrics.IncrementWrite("review")
	s.logAudit(ctx, "record_review_changed",
		"stable_id", stableID,
		"reviewed", reviewed,
		"user_id", requestcontext.UserID(ctx),
	)
	return rec, nil
}

// Get loads a record the caller may see. The public never sees unreviewed or
// refuted records, nor records whose panels are all hidden.
func (s *Service) Get(ctx context.Context, stableID string) (*models.Record, error) {
	ctx, span := s.startRecordSpan(ctx, "service.Get", stableID)
	defer span.End()

	rec, err := s.records.FindByID(ctx, stableID)
	if err != nil {
		return nil, fail(span, translate(err, "failed to load record"))
	}
	if !requestcontext.IsCurator(ctx) && !s.publiclyVisible(rec) {
		return nil, fail(span, dErrors.New(dErrors.CodeNotFound, "record not found"))
	}
	return rec, nil
}

// View projects a record into its response shape for the caller.
func (s *Service) View(ctx context.Context, rec *models.Record) *models.RecordView {
	return s.assembler.Project(rec, viewerFrom(ctx))
}

// ChangeConfidence moves a record to another confidence level on behalf of
// the authenticated curator.
func (s *Service) ChangeConfidence(ctx context.Context, stableID string, in ConfidenceInput) (*models.AuditEntry, error) {
	defer s.metrics.ObserveOperation("confidence", time.Now())
	ctx, span := s.startRecordSpan(ctx, "service.ChangeConfidence", stableID)
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	entry, err := s.confidence.Change(ctx, confidence.ChangeRequest{
		StableID:      stableID,
		From:          in.From,
		To:            in.To,
		Actor:         requestcontext.UserID(ctx),
		Justification: in.Justification,
	})
	if err != nil {
		return nil, fail(span, err)
	}

	if rec, err := s.records.FindByID(ctx, stableID); err == nil {
		s.index.Put(rec)
	} else {
		s.logger.WarnContext(ctx, "failed to reindex record after confidence change",
			"stable_id", stableID,
			"error", err,
		)
	}
	s.metrics.IncrementWrite("confidence")
	return entry, nil
}

// History lists the confidence transitions of a record, newest first.
func (s *Service) History(ctx context.Context, stableID string) ([]models.AuditEntry, error) {
	ctx, span := s.startRecordSpan(ctx, "service.History", stableID)
	defer span.End()

	if err := requireCurator(ctx); err != nil {
		return nil, fail(span, err)
	}
	if _, err := s.records.FindByID(ctx, stableID); err != nil {
		return nil, fail(span, translate(err, "failed to load record"))
	}
	entries, err := s.confidence.History(ctx, stableID)
	if err != nil {
		return nil, fail(span, err)
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

// Search runs a query, optionally restricted to a panel ("all" or "" for none).
func (s *Service) Search(ctx context.Context, text, searchType, panelName string, page int) (*search.PagedResult, error) {
	curator := requestcontext.IsCurator(ctx)
	q := search.Query{Text: text, Type: searchType, Page: page, Curator: curator}
	if name, all := panel.ResolveFilter(panelName); !all {
		p, ok := s.ref.Panel(name)
		if !ok || (!curator && !p.Visible) {
			return nil, dErrors.New(dErrors.CodeNotFound, "panel not found: "+name)
		}
		q.Panel = p.Name
	}
	return s.index.Search(ctx, q)
}

func (s *Service) Panels(ctx context.Context) ([]panel.Stats, error) {
	return s.panels.List(ctx, viewerFrom(ctx))
}

func (s *Service) Panel(ctx context.Context, name string) (*panel.Detail, error) {
	return s.panels.Get(ctx, name, viewerFrom(ctx))
}

func (s *Service) PanelSummary(ctx context.Context, name string) (*panel.Summary, error) {
	return s.panels.Summarize(ctx, name, viewerFrom(ctx))
}

func (s *Service) Vocabulary() reference.Vocabulary {
	return s.ref.Vocabularies()
}

// RebuildIndex reloads the search index from the store.
func (s *Service) RebuildIndex(ctx context.Context) error {
	start := time.Now()
	if err := s.index.Rebuild(ctx, s.records); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to rebuild search index")
	}
	s.logger.InfoContext(ctx, "search index rebuilt",
		"records", s.index.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// mutate applies fn to a locked copy of the record, bumps last_updated and
// stores the result.
func (s *Service) mutate(ctx context.Context, stableID string, fn func(rec *models.Record, now time.Time) error) (*models.Record, error) {
	var updated *models.Record
	err := s.records.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.FindForUpdate(ctx, stableID)
		if err != nil {
			return translate(err, "failed to load record")
		}
		now := requestcontext.Now(ctx).UTC()
		if err := fn(rec, now); err != nil {
			return err
		}
		rec.LastUpdated = now
		if err := s.records.Update(ctx, rec); err != nil {
			return translate(err, "failed to update record")
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.index.Put(updated)
	return updated, nil
}

// validatePartial validates a partial payload. The schema requires locus and
// disease, so the record's own values fill in when the payload omits them;
// filled-in keys are not marked present and a merge leaves them alone.
func (s *Service) validatePartial(doc map[string]any, rec *models.Record) (*models.Submission, error) {
	var injected []string
	if _, ok := doc["locus"]; !ok {
		doc["locus"] = rec.Locus.Symbol
		injected = append(injected, "locus")
	}
	if _, ok := doc["disease"]; !ok {
		doc["disease"] = map[string]any{"disease_name": rec.Disease.DiseaseName}
		injected = append(injected, "disease")
	}
	sub, err := schema.ValidateMap(doc, schema.WithPanels(s.knownPanel))
	if err != nil {
		s.metrics.IncrementValidationFailure("schema")
		return nil, err
	}
	for _, k := range injected {
		delete(sub.Present, k)
	}
	return sub, nil
}

func (s *Service) knownPanel(name string) bool {
	_, ok := s.ref.Panel(name)
	return ok
}

// normalizeLists resolves panel names to their catalog spelling and drops
// duplicate panels and modifiers. Unknown panels are a validation error.
func (s *Service) normalizeLists(sub *models.Submission) error {
	var fields []dErrors.Field
	panels := make([]string, 0, len(sub.Panels))
	for i, name := range sub.Panels {
		p, ok := s.ref.Panel(name)
		if !ok {
			fields = append(fields, dErrors.Field{
				Path:       fmt.Sprintf("panel[%d]", i),
				Reason:     "is not a known panel",
				Identifier: name,
			})
			continue
		}
		panels = append(panels, p.Name)
	}
	if len(fields) > 0 {
		s.metrics.IncrementValidationFailure("panel")
		return dErrors.WithFields(dErrors.CodeValidation, "submission failed schema validation", fields)
	}
	sub.Panels = dedupe.DedupeAndTrim(panels)
	sub.CrossCuttingModifier = dedupe.DedupeAndTrimLower(sub.CrossCuttingModifier)
	return nil
}

// ensureUnique rejects a key already held by a record other than self.
func (s *Service) ensureUnique(ctx context.Context, key models.RecordKey, self string) error {
	existing, err := s.records.FindByKey(ctx, key)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate records")
	case existing.StableID == self:
		return nil
	}
	return dErrors.New(dErrors.CodeConflict, "a record for this locus, genotype, disease and mechanism already exists: "+existing.StableID)
}

func (s *Service) publiclyVisible(rec *models.Record) bool {
	if !rec.Reviewed() || rec.Confidence == models.ConfidenceRefuted {
		return false
	}
	for _, p := range rec.Panels {
		if s.ref.PanelVisible(p) {
			return true
		}
	}
	return false
}

func (s *Service) startRecordSpan(ctx context.Context, name, stableID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("stable_id", stableID)))
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)

	trace.SpanFromContext(ctx).AddEvent(event, trace.WithAttributes(
		attribute.String("stable_id", attrs.ExtractString(attributes, "stable_id")),
		attribute.String("user_id", attrs.ExtractString(attributes, "user_id")),
	))
}

func viewerFrom(ctx context.Context) models.Viewer {
	return models.Viewer{UserID: requestcontext.UserID(ctx), Curator: requestcontext.IsCurator(ctx)}
}

func requireCurator(ctx context.Context) error {
	if !requestcontext.IsCurator(ctx) {
		return dErrors.New(dErrors.CodeUnauthorized, "curator authentication required")
	}
	return nil
}

// translate maps store sentinels to domain errors; domain errors pass through.
func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "record already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func fieldError(code dErrors.Code, path, reason string) error {
	return dErrors.WithFields(code, "submission failed schema validation", []dErrors.Field{{Path: path, Reason: reason}})
}

func fail(span trace.Span, err error) error {
	span.SetStatus(codes.Error, err.Error())
	return err
}
