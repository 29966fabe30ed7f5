// Package stableid mints public record identifiers. Each allocator is backed by
// a counter that never hands out the same value twice; an identifier that was
// minted but not persisted is simply skipped.
package stableid

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"g2p/pkg/platform/sentinel"
)

const prefix = "G2P"

var pattern = regexp.MustCompile(`^G2P\d{5,}$`)

// Format renders a counter value as a stable ID, e.g. G2P00042.
func Format(n int64) string {
	return fmt.Sprintf("%s%05d", prefix, n)
}

// Parse returns the counter value behind a stable ID.
func Parse(s string) (int64, bool) {
	if !Valid(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s[len(prefix):], 10, 64)
	return n, err == nil
}

// Valid reports whether s looks like a stable ID.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Memory allocates from a process-local counter.
type Memory struct {
	last atomic.Int64
}

// NewMemory starts allocating after start.
func NewMemory(start int64) *Memory {
	m := &Memory{}
	m.last.Store(start)
	return m
}

func (m *Memory) Next(_ context.Context) (string, error) {
	return Format(m.last.Add(1)), nil
}

// DefaultRedisKey holds the shared counter.
const DefaultRedisKey = "g2p:stable_id:seq"

// Redis allocates with INCR, which is atomic across every API instance.
type Redis struct {
	client redis.Cmdable
	key    string
}

func NewRedis(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Next(ctx context.Context) (string, error) {
	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return "", fmt.Errorf("incr stable id counter: %w: %w", sentinel.ErrUnavailable, err)
	}
	return Format(n), nil
}

// Postgres allocates from a database sequence.
type Postgres struct {
	db       *sql.DB
	sequence string
}

// DefaultSequence is created by the record store migrations.
const DefaultSequence = "g2p_stable_id_seq"

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, sequence: DefaultSequence}
}

func (p *Postgres) Next(ctx context.Context) (string, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT nextval($1::regclass)`, p.sequence).Scan(&n); err != nil {
		return "", fmt.Errorf("nextval stable id: %w: %w", sentinel.ErrUnavailable, err)
	}
	return Format(n), nil
}
