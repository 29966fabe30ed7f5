package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"g2p/internal/lgd/assembler"
	lgdmetrics "g2p/internal/lgd/metrics"
	"g2p/internal/lgd/models"
	"g2p/internal/lgd/notify"
	"g2p/internal/lgd/service"
	"g2p/internal/lgd/stableid"
	"g2p/internal/lgd/store"
	"g2p/internal/platform/config"
	"g2p/internal/platform/redis"
	"g2p/internal/ratelimit"
	"g2p/internal/reference"
	httptransport "g2p/internal/transport/http"
)

// infra holds the backing stores and the connections to release on exit.
type infra struct {
	records   service.Store
	audit     service.AuditStore
	allocator assembler.Allocator
	limits    ratelimit.Store
	checks    map[string]httptransport.HealthCheck
	closers   []func() error
}

func (i *infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		_ = i.closers[j]()
	}
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	out := &infra{checks: map[string]httptransport.HealthCheck{}}

	var db *sql.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, db.Close)
		out.checks["postgres"] = db.PingContext
		out.records = store.NewPostgres(db)
		out.audit = store.NewPostgresAudit(db)
		log.Info("record store ready", "backend", "postgres")
	} else {
		out.records = store.NewInMemoryStore()
		out.audit = store.NewInMemoryAuditStore()
		log.Warn("DATABASE_URL not set; records are kept in memory")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		out.Close()
		return nil, err
	}
	out.limits = ratelimit.NewInMemoryStore()
	if client != nil {
		out.closers = append(out.closers, client.Close)
		out.checks["redis"] = client.Health
		out.limits = ratelimit.NewRedisStore(client)
	}

	switch cfg.Allocator {
	case config.AllocatorRedis:
		out.allocator = stableid.NewRedis(client, "")
	case config.AllocatorPostgres:
		out.allocator = stableid.NewPostgres(db)
	default:
		last, err := highestStableID(ctx, out.records)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.allocator = stableid.NewMemory(last)
	}
	return out, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// highestStableID seeds the in-process allocator so a restart over a
// persistent store does not hand out IDs that already exist.
func highestStableID(ctx context.Context, records service.Store) (int64, error) {
	var last int64
	err := records.Scan(ctx, func(rec *models.Record) error {
		if n, ok := stableid.Parse(rec.StableID); ok && n > last {
			last = n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan stable ids: %w", err)
	}
	return last, nil
}

func loadReference(path string) (*reference.Catalog, error) {
	if path == "" {
		return reference.Default(), nil
	}
	return reference.Load(path)
}

// buildNotifier returns the delivery target and the queue the service writes to.
// Without brokers, changes are only logged.
func buildNotifier(ctx context.Context, cfg config.Server, log *slog.Logger, in *infra) (notify.Notifier, *notify.Queue, error) {
	queue := notify.NewQueue(cfg.Kafka.QueueSize)
	logNotifier := notify.NewLog(log)
	if len(cfg.Kafka.Brokers) == 0 {
		return logNotifier, queue, nil
	}

	client, err := notify.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
	if err != nil {
		return nil, nil, err
	}
	in.closers = append(in.closers, func() error { client.Close(); return nil })
	in.checks["kafka"] = func(ctx context.Context) error { return client.Ping(ctx) }

	if err := notify.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("could not ensure notification topic", "topic", cfg.Kafka.Topic, "error", err)
		}
	}
	return notify.NewKafka(client,
		notify.WithTopic(cfg.Kafka.Topic),
		notify.WithFallback(logNotifier),
		notify.WithKafkaLogger(log),
	), queue, nil
}

func notifierWorker(q *notify.Queue, target notify.Notifier, log *slog.Logger, m *lgdmetrics.Metrics) *notify.Worker {
	return notify.NewWorker(q, target, log, m)
}
