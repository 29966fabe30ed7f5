package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, AllocatorMemory, cfg.Allocator)
	assert.Equal(t, 20, cfg.SearchPageSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "g2p.confidence-changes", cfg.Kafka.Topic)
	assert.False(t, cfg.RateLimit.Disabled)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("G2P_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("G2P_ID_ALLOCATOR", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_DIAL_TIMEOUT", "250ms")
	t.Setenv("G2P_SEARCH_PAGE_SIZE", "50")
	t.Setenv("G2P_RATELIMIT_DISABLED", "true")
	t.Setenv("G2P_WRITE_TIMEOUT", "90s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, AllocatorRedis, cfg.Allocator)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.DialTimeout)
	assert.Equal(t, 50, cfg.SearchPageSize)
	assert.True(t, cfg.RateLimit.Disabled)
	assert.Equal(t, 90*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.ReadTimeout)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown allocator", env: map[string]string{"G2P_ID_ALLOCATOR": "etcd"}},
		{name: "redis allocator without url", env: map[string]string{"G2P_ID_ALLOCATOR": "redis"}},
		{name: "postgres allocator without url", env: map[string]string{"G2P_ID_ALLOCATOR": "postgres"}},
		{name: "page size too large", env: map[string]string{"G2P_SEARCH_PAGE_SIZE": "1000"}},
		{name: "short signing key", env: map[string]string{"JWT_SIGNING_KEY": "short"}},
		{name: "prod with dev key", env: map[string]string{"G2P_ENV": "prod"}},
		{name: "zero rate limit", env: map[string]string{"G2P_RATELIMIT_REQUESTS": "0"}},
		{name: "bad base url", env: map[string]string{"G2P_PUBLIC_BASE_URL": "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
