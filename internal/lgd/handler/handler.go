// Package handler exposes the record service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"g2p/internal/lgd/models"
	"g2p/internal/lgd/panel"
	"g2p/internal/lgd/search"
	"g2p/internal/lgd/service"
	"g2p/internal/reference"
	dErrors "g2p/pkg/domain-errors"
	"g2p/pkg/platform/httputil"
	"g2p/pkg/platform/middleware/admin"
	"g2p/pkg/platform/middleware/auth"
	"g2p/pkg/requestcontext"
)

// maxBodyBytes bounds curation payloads.
const maxBodyBytes = 1 << 20

// Service defines the record operations the HTTP layer needs.
type Service interface {
	Validate(ctx context.Context, raw []byte) (*models.Submission, error)
	Readiness(ctx context.Context, raw []byte) (*service.ReadinessReport, error)
	Create(ctx context.Context, raw []byte) (*models.Record, error)
	Update(ctx context.Context, stableID string, raw []byte) (*models.Record, error)
	AddComment(ctx context.Context, stableID string, in service.CommentInput) (*models.Record, error)
	AddPublications(ctx context.Context, stableID string, raw []byte) (*models.Record, error)
	SetReviewed(ctx context.Context, stableID string, reviewed bool) (*models.Record, error)
	Get(ctx context.Context, stableID string) (*models.Record, error)
	View(ctx context.Context, rec *models.Record) *models.RecordView
	ChangeConfidence(ctx context.Context, stableID string, in service.ConfidenceInput) (*models.AuditEntry, error)
	History(ctx context.Context, stableID string) ([]models.AuditEntry, error)
	Search(ctx context.Context, text, searchType, panelName string, page int) (*search.PagedResult, error)
	Panels(ctx context.Context) ([]panel.Stats, error)
	Panel(ctx context.Context, name string) (*panel.Detail, error)
	PanelSummary(ctx context.Context, name string) (*panel.Summary, error)
	Vocabulary() reference.Vocabulary
	RebuildIndex(ctx context.Context) error
}

// Handler handles record, curation, search and panel endpoints.
type Handler struct {
	logger       *slog.Logger
	records      Service
	jwtValidator auth.JWTValidator
	adminToken   string
	timeout      time.Duration
}

// New creates a new record Handler. An empty adminToken disables /admin routes.
func New(records Service, logger *slog.Logger, jwtValidator auth.JWTValidator, adminToken string) *Handler {
	return &Handler{
		logger:       logger,
		records:      records,
		jwtValidator: jwtValidator,
		adminToken:   adminToken,
		timeout:      30 * time.Second,
	}
}

// Register registers the record routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(h.timeout))
		r.Use(auth.OptionalAuth(h.jwtValidator, h.logger))

		r.Get("/lgd/{id}", h.handleGet)
		r.Get("/search", h.handleSearch)
		r.Get("/panels", h.handleListPanels)
		r.Get("/panels/{name}", h.handleGetPanel)
		r.Get("/panels/{name}/summary", h.handlePanelSummary)
		r.Get("/vocabulary", h.handleVocabulary)
		r.Post("/curation/validate", h.handleValidate)
		r.Post("/curation/readiness", h.handleReadiness)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCurator(h.logger))
			r.Post("/lgd", h.handleCreate)
			r.Patch("/lgd/{id}", h.handleUpdate)
			r.Post("/lgd/{id}/confidence", h.handleChangeConfidence)
			r.Get("/lgd/{id}/confidence/history", h.handleHistory)
			r.Post("/lgd/{id}/comments", h.handleAddComment)
			r.Post("/lgd/{id}/publications", h.handleAddPublications)
			r.Post("/lgd/{id}/review", h.handleReview)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/admin/reindex", h.handleReindex)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.records.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.records.View(ctx, rec))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.records.Create(ctx, body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/lgd/"+rec.StableID)
	httputil.WriteJSON(w, http.StatusCreated, h.records.View(ctx, rec))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.records.Update(ctx, chi.URLParam(r, "id"), body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.records.View(ctx, rec))
}

func (h *Handler) handleChangeConfidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.ConfidenceInput
	if !h.decode(w, r, &in) {
		return
	}
	entry, err := h.records.ChangeConfidence(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.records.History(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.CommentInput
	if !h.decode(w, r, &in) {
		return
	}
	rec, err := h.records.AddComment(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.records.View(ctx, rec))
}

func (h *Handler) handleAddPublications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.records.AddPublications(ctx, chi.URLParam(r, "id"), body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.records.View(ctx, rec))
}

type reviewRequest struct {
	Reviewed *bool `json:"is_reviewed"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Reviewed == nil {
		h.writeError(ctx, w, dErrors.WithFields(dErrors.CodeValidation, "invalid review request",
			[]dErrors.Field{{Path: "is_reviewed", Reason: "is required"}}))
		return
	}
	rec, err := h.records.SetReviewed(ctx, chi.URLParam(r, "id"), *req.Reviewed)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.records.View(ctx, rec))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	sub, err := h.records.Validate(ctx, body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"valid": true, "submission": sub})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	report, err := h.records.Readiness(ctx, body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page := 0
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "page must be a positive integer"))
			return
		}
		page = n
	}
	res, err := h.records.Search(ctx, q.Get("query"), q.Get("type"), q.Get("panel"), page)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleListPanels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.records.Panels(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"count": len(stats), "results": stats})
}

func (h *Handler) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail, err := h.records.Panel(ctx, chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handlePanelSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.records.PanelSummary(ctx, chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.records.Vocabulary())
}

func (h *Handler) handleReindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.records.RebuildIndex(ctx); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readBody returns the raw request body, bounded by maxBodyBytes.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(r.Context(), w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
			return nil, false
		}
		h.writeError(r.Context(), w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return body, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		h.writeError(r.Context(), w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

// writeError logs server-side failures before writing the error envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if status := dErrors.ToHTTPStatus(dErrors.CodeOf(err)); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
