// Package panel aggregates per-panel record statistics.
package panel

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"g2p/internal/lgd/models"
	"g2p/internal/reference"
	dErrors "g2p/pkg/domain-errors"
)

var tracer = otel.Tracer("g2p/lgd/panel")

// SummaryLimit is how many recently updated records a panel summary lists.
const SummaryLimit = 10

type Scanner interface {
	Scan(ctx context.Context, fn func(*models.Record) error) error
}

type Reference interface {
	Panel(name string) (reference.Panel, bool)
	ListPanels(includeHidden bool) []reference.Panel
}

// Stats counts the records of one panel. Confidence levels without records
// are left out of ByConfidence.
type Stats struct {
	Name         string         `json:"name"`
	Description  *string        `json:"description"`
	TotalRecords int            `json:"total_records"`
	TotalGenes   int            `json:"total_genes"`
	ByConfidence map[string]int `json:"by_confidence"`
}

// Detail adds the date of the panel's most recently updated reviewed record.
type Detail struct {
	Stats
	LastUpdated *string `json:"last_updated"`
}

type Summary struct {
	Name    string           `json:"panel_name"`
	Records []models.Summary `json:"records_summary"`
}

// ResolveFilter interprets a panel query parameter. "all" (any case) or an
// empty value means no filter.
func ResolveFilter(name string) (panel string, all bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "all") {
		return "", true
	}
	return name, false
}

type Aggregator struct {
	records Scanner
	ref     Reference
}

func New(records Scanner, ref Reference) *Aggregator {
	return &Aggregator{records: records, ref: ref}
}

type accumulator struct {
	stats       Stats
	genes       map[string]struct{}
	lastUpdated time.Time
}

// List returns the statistics of every panel the viewer may see, by name.
func (a *Aggregator) List(ctx context.Context, viewer models.Viewer) ([]Stats, error) {
	ctx, span := tracer.Start(ctx, "panel.List")
	defer span.End()

	panels := a.ref.ListPanels(viewer.Curator)
	acc, err := a.aggregate(ctx, viewer, panels)
	if err != nil {
		return nil, err
	}
	out := make([]Stats, 0, len(panels))
	for _, p := range panels {
		out = append(out, acc[p.Name].finish())
	}
	return out, nil
}

// Get returns one panel's statistics. Unknown panels, and hidden ones for
// the public, are not found.
func (a *Aggregator) Get(ctx context.Context, name string, viewer models.Viewer) (*Detail, error) {
	ctx, span := tracer.Start(ctx, "panel.Get", trace.WithAttributes(attribute.String("panel", name)))
	defer span.End()

	p, err := a.lookup(name, viewer)
	if err != nil {
		return nil, err
	}
	acc, err := a.aggregate(ctx, viewer, []reference.Panel{p})
	if err != nil {
		return nil, err
	}
	pa := acc[p.Name]
	return &Detail{Stats: pa.finish(), LastUpdated: models.FormatDate(pa.lastUpdated)}, nil
}

// Summarize lists the most recently updated records of a panel.
func (a *Aggregator) Summarize(ctx context.Context, name string, viewer models.Viewer) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "panel.Summarize", trace.WithAttributes(attribute.String("panel", name)))
	defer span.End()

	p, err := a.lookup(name, viewer)
	if err != nil {
		return nil, err
	}
	var recs []*models.Record
	err = a.records.Scan(ctx, func(rec *models.Record) error {
		if visible(rec, viewer) && rec.HasPanel(p.Name) {
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan records")
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].LastUpdated.Equal(recs[j].LastUpdated) {
			return recs[i].LastUpdated.After(recs[j].LastUpdated)
		}
		return recs[i].StableID > recs[j].StableID
	})
	if len(recs) > SummaryLimit {
		recs = recs[:SummaryLimit]
	}
	out := &Summary{Name: p.Name, Records: make([]models.Summary, 0, len(recs))}
	for _, rec := range recs {
		s := models.NewSummary(rec)
		if !viewer.Curator {
			s.Panel = a.visiblePanels(s.Panel)
		}
		out.Records = append(out.Records, s)
	}
	return out, nil
}

func (a *Aggregator) lookup(name string, viewer models.Viewer) (reference.Panel, error) {
	p, ok := a.ref.Panel(name)
	if !ok || (!p.Visible && !viewer.Curator) {
		return reference.Panel{}, dErrors.New(dErrors.CodeNotFound, "panel not found: "+name)
	}
	return p, nil
}

func (a *Aggregator) aggregate(ctx context.Context, viewer models.Viewer, panels []reference.Panel) (map[string]*accumulator, error) {
	acc := make(map[string]*accumulator, len(panels))
	byKey := make(map[string]*accumulator, len(panels))
	for _, p := range panels {
		pa := &accumulator{
			stats: Stats{
				Name:         p.Name,
				Description:  models.NullString(p.Description),
				ByConfidence: make(map[string]int),
			},
			genes: make(map[string]struct{}),
		}
		acc[p.Name] = pa
		byKey[strings.ToLower(p.Name)] = pa
	}

	err := a.records.Scan(ctx, func(rec *models.Record) error {
		if !visible(rec, viewer) {
			return nil
		}
		seen := make(map[string]bool, len(rec.Panels))
		for _, name := range rec.Panels {
			key := strings.ToLower(strings.TrimSpace(name))
			pa, ok := byKey[key]
			if !ok || seen[key] {
				continue
			}
			seen[key] = true
			pa.stats.TotalRecords++
			pa.genes[strings.ToUpper(rec.Locus.Symbol)] = struct{}{}
			if rec.Confidence != "" {
				pa.stats.ByConfidence[string(rec.Confidence)]++
			}
			if rec.Reviewed() && rec.LastUpdated.After(pa.lastUpdated) {
				pa.lastUpdated = rec.LastUpdated
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan records")
	}
	return acc, nil
}

func (a *Aggregator) visiblePanels(panels []string) []string {
	out := make([]string, 0, len(panels))
	for _, name := range panels {
		if p, ok := a.ref.Panel(name); ok && p.Visible {
			out = append(out, name)
		}
	}
	return out
}

func (pa *accumulator) finish() Stats {
	s := pa.stats
	s.TotalGenes = len(pa.genes)
	return s
}

func visible(rec *models.Record, viewer models.Viewer) bool {
	return viewer.Curator || rec.Reviewed()
}
