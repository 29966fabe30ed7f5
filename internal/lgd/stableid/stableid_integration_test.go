//go:build integration

package stableid

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2p/pkg/testutil/containers"
)

func TestRedisAllocatorAcrossClients(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	// two allocators over one counter behave like two API instances
	allocators := []*Redis{NewRedis(rc.Client, ""), NewRedis(rc.Client, "")}
	const perAllocator = 50

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for _, a := range allocators {
		for i := 0; i < perAllocator; i++ {
			wg.Add(1)
			go func(a *Redis) {
				defer wg.Done()
				id, err := a.Next(ctx)
				assert.NoError(t, err)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}(a)
		}
	}
	wg.Wait()
	assert.Len(t, seen, 2*perAllocator)
}
