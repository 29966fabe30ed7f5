// Package search answers free-text record queries over an in-memory index
// kept current by the record service.
package search

import (
	"context"
	"strings"
	"sync"

	"g2p/internal/lgd/metrics"
	"g2p/internal/lgd/models"
)

// Scanner streams every stored record.
type Scanner interface {
	Scan(ctx context.Context, fn func(*models.Record) error) error
}

// Reference reports panel visibility.
type Reference interface {
	PanelVisible(name string) bool
}

// document is the searchable, precomputed form of one record. Documents are
// replaced on every Put and never mutated afterwards.
type document struct {
	summary  models.Summary
	reviewed bool

	symbol   string
	locusIDs []string
	synonyms []string

	disease         string
	diseaseSynonyms []string
	ontologyIDs     []string

	phenotypeIDs   map[string]bool
	phenotypeTerms []string
}

// Index is a thread-safe searchable view of all records.
type Index struct {
	mu       sync.RWMutex
	docs     map[string]*document
	ref      Reference
	metrics  *metrics.Metrics
	pageSize int
}

type Option func(*Index)

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Index) {
		i.metrics = m
	}
}

// WithPageSize overrides the default page size of 20.
func WithPageSize(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.pageSize = n
		}
	}
}

func NewIndex(ref Reference, opts ...Option) *Index {
	i := &Index{
		docs:     make(map[string]*document),
		ref:      ref,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Put indexes rec, replacing any previous version.
func (i *Index) Put(rec *models.Record) {
	doc := newDocument(rec)
	i.mu.Lock()
	i.docs[rec.StableID] = doc
	n := len(i.docs)
	i.mu.Unlock()
	i.metrics.SetIndexedRecords(n)
}

func (i *Index) Remove(stableID string) {
	i.mu.Lock()
	delete(i.docs, stableID)
	n := len(i.docs)
	i.mu.Unlock()
	i.metrics.SetIndexedRecords(n)
}

// Rebuild replaces the whole index with the records from src.
func (i *Index) Rebuild(ctx context.Context, src Scanner) error {
	docs := make(map[string]*document)
	err := src.Scan(ctx, func(rec *models.Record) error {
		docs[rec.StableID] = newDocument(rec)
		return nil
	})
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.docs = docs
	i.mu.Unlock()
	i.metrics.SetIndexedRecords(len(docs))
	return nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

func (i *Index) snapshot() []*document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]*document, 0, len(i.docs))
	for _, d := range i.docs {
		out = append(out, d)
	}
	return out
}

func newDocument(rec *models.Record) *document {
	d := &document{
		summary:      models.NewSummary(rec),
		reviewed:     rec.Reviewed(),
		symbol:       upper(rec.Locus.Symbol),
		disease:      lower(rec.Disease.DiseaseName),
		phenotypeIDs: make(map[string]bool),
	}
	for _, id := range rec.Locus.IDs {
		d.locusIDs = append(d.locusIDs, upper(id))
	}
	for _, syn := range rec.Locus.Synonyms {
		d.synonyms = append(d.synonyms, upper(syn))
	}
	for _, x := range rec.Disease.CrossReferences {
		if x.Identifier != "" {
			d.ontologyIDs = append(d.ontologyIDs, upper(x.Identifier))
		}
		for _, name := range []string{x.DiseaseName, x.OriginalDiseaseName} {
			if name != "" {
				d.diseaseSynonyms = append(d.diseaseSynonyms, lower(name))
			}
		}
	}
	for _, ph := range rec.Phenotypes {
		for _, t := range ph.HPOTerms {
			d.phenotypeIDs[upper(t.Accession)] = true
			if t.Term != "" {
				d.phenotypeTerms = append(d.phenotypeTerms, lower(t.Term))
			}
		}
	}
	return d
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
