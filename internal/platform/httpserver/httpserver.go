package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// Handlers cap curation payloads at 1 MiB.
	defaultReadHeaderTimeout = 5 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 2 * time.Minute
	// Bearer tokens are the largest header we expect.
	defaultMaxHeaderBytes = 64 << 10
)

type Option func(*http.Server)

// WithLogger routes net/http's own error log through slog.
func WithLogger(logger *slog.Logger) Option {
	return func(s *http.Server) {
		if logger != nil {
			s.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
		}
	}
}

// WithTimeouts overrides the read and write deadlines. Zero keeps the default.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *http.Server) {
		if read > 0 {
			s.ReadTimeout = read
		}
		if write > 0 {
			s.WriteTimeout = write
		}
	}
}

func WithMaxHeaderBytes(n int) Option {
	return func(s *http.Server) {
		if n > 0 {
			s.MaxHeaderBytes = n
		}
	}
}

// New builds the API server with deadlines sized for curation payloads.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
