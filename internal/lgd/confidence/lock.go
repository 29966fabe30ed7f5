package confidence

import (
	"context"
	"sync"
	"time"

	dErrors "g2p/pkg/domain-errors"
)

// numRecordShards spreads per-record locks over a fixed set of mutexes so
// transitions on different records rarely contend.
const numRecordShards = 128

// defaultLockTimeout bounds a transition when the caller set no deadline.
const defaultLockTimeout = 5 * time.Second

type recordLocks struct {
	shards  [numRecordShards]sync.Mutex
	timeout time.Duration
}

// withLock runs fn while holding the shard for stableID. Two transitions on the
// same record never interleave their read-check-write sequence.
func (l *recordLocks) withLock(ctx context.Context, stableID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := l.timeout
	if timeout == 0 {
		timeout = defaultLockTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashString(stableID) % numRecordShards
	l.shards[shard].Lock()
	defer l.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
