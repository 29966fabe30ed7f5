package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	jwttoken "g2p/internal/jwt_token"
	"g2p/internal/lgd/handler"
	lgdmetrics "g2p/internal/lgd/metrics"
	"g2p/internal/lgd/service"
	"g2p/internal/platform/config"
	"g2p/internal/platform/httpserver"
	"g2p/internal/platform/logger"
	"g2p/internal/platform/metrics"
	"g2p/internal/ratelimit"
	httptransport "g2p/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lgdMetrics := lgdmetrics.New(reg)

	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	ref, err := loadReference(cfg.ReferencePath)
	if err != nil {
		return err
	}

	notifier, queue, err := buildNotifier(ctx, cfg, log, infra)
	if err != nil {
		return err
	}
	worker := notifierWorker(queue, notifier, log, lgdMetrics)

	svc := service.New(infra.records, infra.audit, infra.allocator, ref,
		service.WithLogger(log),
		service.WithMetrics(lgdMetrics),
		service.WithNotifier(queue),
		service.WithLinkBase(cfg.PublicBaseURL),
		service.WithPageSize(cfg.SearchPageSize),
	)
	if err := svc.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("build search index: %w", err)
	}

	limiter := ratelimit.New(infra.limits, log,
		ratelimit.WithLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:   log,
		Metrics:  metrics.NewHTTP(reg),
		Gatherer: reg,
		Checks:   infra.checks,
		Modules: []httptransport.Registrar{
			handler.New(svc, log, jwttoken.NewJWTServiceAdapter(tokens), cfg.Auth.AdminToken),
		},
		RateLimit: limiter.Handler,
	})
	srv := httpserver.New(cfg.Addr, router,
		httpserver.WithLogger(log),
		httpserver.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("starting g2p server", "addr", cfg.Addr, "env", cfg.Environment, "allocator", cfg.Allocator)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
