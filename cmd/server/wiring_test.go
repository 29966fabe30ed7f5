package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2p/internal/lgd/models"
	"g2p/internal/lgd/notify"
	"g2p/internal/lgd/store"
	"g2p/internal/platform/config"
	httptransport "g2p/internal/transport/http"
)

func TestHighestStableIDSeedsMemoryAllocator(t *testing.T) {
	ctx := context.Background()
	records := store.NewInMemoryStore()
	for _, id := range []string{"G2P00007", "G2P00012", "G2P00003"} {
		rec := &models.Record{StableID: id}
		rec.Disease.DiseaseName = "disease " + id
		require.NoError(t, records.Create(ctx, rec))
	}

	last, err := highestStableID(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, int64(12), last)
}

func TestBuildInfraDefaultsToMemory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	in, err := buildInfra(context.Background(), config.Server{Allocator: config.AllocatorMemory}, log)
	require.NoError(t, err)
	defer in.Close()

	id, err := in.allocator.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "G2P00001", id)
	assert.Empty(t, in.checks)
}

func TestBuildNotifierWithoutBrokersLogs(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Server{Kafka: config.KafkaConfig{QueueSize: 4}}
	target, queue, err := buildNotifier(context.Background(), cfg, log, &infra{checks: map[string]httptransport.HealthCheck{}})
	require.NoError(t, err)
	assert.NotNil(t, queue)
	assert.IsType(t, &notify.Log{}, target)
}
