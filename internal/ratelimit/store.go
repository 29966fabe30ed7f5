// Package ratelimit throttles API clients with a sliding window per key.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// InMemoryStore keeps one sliding window per key. It is process-local; run
// the Redis store when several API instances share a limit.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	calls   int
	now     func() time.Time
}

// sweepEvery bounds how often idle keys are purged.
const sweepEvery = 1024

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[string][]time.Time), now: time.Now}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now, window)
	}

	stamps := trim(s.buckets[key], now.Add(-window))
	if len(stamps) >= limit {
		s.buckets[key] = stamps
		return &Result{Allowed: false, Limit: limit, ResetAt: stamps[0].Add(window)}, nil
	}
	stamps = append(stamps, now)
	s.buckets[key] = stamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// trim drops timestamps at or before cutoff; stamps are in arrival order.
func trim(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

func (s *InMemoryStore) sweep(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	for key, stamps := range s.buckets {
		if len(trim(stamps, cutoff)) == 0 {
			delete(s.buckets, key)
		}
	}
}

// RedisStore keeps each window in a sorted set scored by arrival time, so
// every instance sharing the Redis sees the same count.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, prefix: "g2p:ratelimit:"}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	rkey := s.prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, rkey, "-inf", cutoff)
		count = p.ZCard(ctx, rkey)
		oldest = p.ZRangeWithScores(ctx, rkey, 0, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read rate window: %w", err)
	}

	resetAt := now.Add(window)
	if z := oldest.Val(); len(z) > 0 {
		resetAt = time.UnixMicro(int64(z[0].Score)).Add(window)
	}
	n := int(count.Val())
	if n >= limit {
		return &Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
		p.PExpire(ctx, rkey, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record request: %w", err)
	}
	if n == 0 {
		resetAt = now.Add(window)
	}
	return &Result{Allowed: true, Limit: limit, Remaining: limit - n - 1, ResetAt: resetAt}, nil
}
