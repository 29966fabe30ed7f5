package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2p/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
	})

	t.Run("mints an id when missing or oversized", func(t *testing.T) {
		for _, header := range []string{"", strings.Repeat("x", maxRequestIDLength+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
		}
	})
}

func TestTime(t *testing.T) {
	var first, second time.Time
	h := Time(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(2 * time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, first.Location())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	})))

	req := httptest.NewRequest(http.MethodPost, "/lgd", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "path=/lgd")
	assert.Contains(t, line, "client_ip=10.0.0.1")
	assert.Contains(t, line, "bytes=15")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded", headers: map[string]string{"X-Forwarded-For": "1.1.1.1"}, remote: "9.9.9.9:1", want: "1.1.1.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 2.2.2.2 "}, remote: "9.9.9.9:1", want: "2.2.2.2"},
		{name: "remote addr", remote: "3.3.3.3:4567", want: "3.3.3.3"},
		{name: "ipv6 remote", remote: "[::1]:4567", want: "[::1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
