package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2p/internal/platform/metrics"
	"g2p/internal/ratelimit"
	"g2p/pkg/testutil"
)

type panicModule struct{}

func (panicModule) Register(r chi.Router) {
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.NewInMemoryStore(), logger, ratelimit.WithLimit(3, time.Minute))
	return NewRouter(RouterConfig{
		Logger:    logger,
		Metrics:   metrics.NewHTTP(reg),
		Gatherer:  reg,
		Checks:    checks,
		Modules:   []Registrar{panicModule{}},
		RateLimit: limiter.Handler,
	})
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	return testutil.DoRequest(h, testutil.NewRequest(http.MethodGet, path, "", ""))
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	rec := serve(newTestRouter(map[string]HealthCheck{"store": ok}), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(newTestRouter(map[string]HealthCheck{"store": ok, "redis": down}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRouterMiddlewareChain(t *testing.T) {
	h := newTestRouter(nil)

	rec := serve(h, "/ok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusInternalServerError, serve(h, "/boom").Code)
	testutil.AssertStatusAndError(t, serve(h, "/nowhere"), http.StatusNotFound, "not_found")

	rec = serve(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "g2p_http_requests_total")
}

func TestRateLimitAppliesToModulesOnly(t *testing.T) {
	h := newTestRouter(nil)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(h, "/ok").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "/ok").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/health").Code)
}
