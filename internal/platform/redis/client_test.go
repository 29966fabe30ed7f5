package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2p/internal/platform/config"
)

func testConfig(url string) config.RedisConfig {
	return config.RedisConfig{
		URL:          url,
		PoolSize:     2,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewConnectsAndReportsHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), testConfig("redis://"+mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.NoError(t, c.Health(context.Background()))
	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), testConfig("://nope"))
	assert.Error(t, err)
}
