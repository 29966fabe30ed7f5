// Package store persists LGMDE records and their confidence audit trail.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"g2p/internal/lgd/models"
	"g2p/pkg/platform/sentinel"
)

// InMemoryStore keeps records as encoded documents so callers never share
// memory with the stored copy.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	keys    map[models.RecordKey]string

	// txMu serializes RunInTx callers. There is no rollback: writes issued
	// before fn fails stay applied.
	txMu sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string][]byte),
		keys:    make(map[models.RecordKey]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec *models.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key := rec.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.StableID]; ok {
		return fmt.Errorf("%w: stable id %s already exists", sentinel.ErrConflict, rec.StableID)
	}
	if owner, ok := s.keys[key]; ok {
		return fmt.Errorf("%w: record key held by %s", sentinel.ErrConflict, owner)
	}
	s.records[rec.StableID] = doc
	s.keys[key] = rec.StableID
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *models.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key := rec.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.StableID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, ok := s.keys[key]; ok && owner != rec.StableID {
		return fmt.Errorf("%w: record key held by %s", sentinel.ErrConflict, owner)
	}
	old, err := decode(current)
	if err != nil {
		return err
	}
	delete(s.keys, old.Key())
	s.records[rec.StableID] = doc
	s.keys[key] = rec.StableID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, stableID string) (*models.Record, error) {
	s.mu.RLock()
	doc, ok := s.records[stableID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return decode(doc)
}

// FindForUpdate is FindByID; row locking is the caller's sharded lock.
func (s *InMemoryStore) FindForUpdate(ctx context.Context, stableID string) (*models.Record, error) {
	return s.FindByID(ctx, stableID)
}

func (s *InMemoryStore) FindByKey(ctx context.Context, key models.RecordKey) (*models.Record, error) {
	s.mu.RLock()
	id, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// Scan calls fn for every record in stable ID order. It works on a snapshot,
// so fn may call back into the store.
func (s *InMemoryStore) Scan(ctx context.Context, fn func(*models.Record) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	docs := make(map[string][]byte, len(s.records))
	for id, doc := range s.records {
		ids = append(ids, id)
		docs[id] = doc
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := decode(docs[id])
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func decode(doc []byte) (*models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// InMemoryAuditStore is an append-only audit log.
type InMemoryAuditStore struct {
	mu      sync.RWMutex
	entries map[string][]models.AuditEntry
}

func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{entries: make(map[string][]models.AuditEntry)}
}

func (s *InMemoryAuditStore) Append(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.StableID] = append(s.entries[entry.StableID], entry)
	return nil
}

// ListByRecord returns the entries for a record, newest first.
func (s *InMemoryAuditStore) ListByRecord(_ context.Context, stableID string) ([]models.AuditEntry, error) {
	s.mu.RLock()
	src := s.entries[stableID]
	out := make([]models.AuditEntry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
