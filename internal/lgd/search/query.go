package search

import (
	"context"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
)

var tracer = otel.Tracer("g2p/lgd/search")

const DefaultPageSize = 20

// Search dimensions.
const (
	TypeGene      = "gene"
	TypeDisease   = "disease"
	TypePhenotype = "phenotype"
	TypeStableID  = "stable_id"
)

// Match specificity, highest wins when a record matches several ways.
const (
	matchSubstring = 1
	matchSynonym   = 2
	matchExact     = 3
	matchStableID  = 4
)

var hpoAccession = regexp.MustCompile(`^HP:\d{7}$`)

// Query is one search request. Panel must already be resolved: empty means
// no panel filter.
type Query struct {
	Text    string
	Type    string
	Panel   string
	Page    int
	Curator bool
}

// PagedResult is one page of record summaries. Next and Previous are
// query-string links, nil at either edge.
type PagedResult struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []models.Summary `json:"results"`
}

type hit struct {
	doc   *document
	score int
}

// NormalizeType maps a requested search type to its dimension. "" means all
// dimensions; g2p_id is accepted for stable_id.
func NormalizeType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "":
		return "", nil
	case TypeGene:
		return TypeGene, nil
	case TypeDisease:
		return TypeDisease, nil
	case TypePhenotype:
		return TypePhenotype, nil
	case TypeStableID, "g2p_id":
		return TypeStableID, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid search type: "+t)
	}
}

func (i *Index) Search(ctx context.Context, q Query) (*PagedResult, error) {
	start := time.Now()
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "query is required")
	}
	searchType, err := NormalizeType(q.Type)
	if err != nil {
		return nil, err
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "page must be a positive integer")
	}

	ctx, span := tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("type", searchType),
		attribute.Int("page", page),
	))
	defer span.End()

	docs := i.eligible(q)
	var hits []hit
	if searchType == "" {
		hits, err = i.searchAll(ctx, docs, text)
		i.metrics.ObserveSearch("all", start)
	} else {
		hits = match(searchType, docs, text)
		i.metrics.ObserveSearch(searchType, start)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		if hits[a].doc.summary.Gene != hits[b].doc.summary.Gene {
			return hits[a].doc.summary.Gene < hits[b].doc.summary.Gene
		}
		return hits[a].doc.summary.StableID < hits[b].doc.summary.StableID
	})
	return i.paginate(hits, q, searchType, page)
}

// eligible applies visibility and the panel filter before matching.
func (i *Index) eligible(q Query) []*document {
	all := i.snapshot()
	out := make([]*document, 0, len(all))
	for _, d := range all {
		if !q.Curator && !d.reviewed {
			continue
		}
		if q.Panel != "" && !containsFold(d.summary.Panel, q.Panel) {
			continue
		}
		if !q.Curator {
			visible := false
			for _, p := range d.summary.Panel {
				if i.ref.PanelVisible(p) {
					visible = true
					break
				}
			}
			if !visible {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// searchAll evaluates every dimension concurrently and keeps the best match
// per record.
func (i *Index) searchAll(ctx context.Context, docs []*document, text string) ([]hit, error) {
	types := []string{TypeStableID, TypeGene, TypeDisease, TypePhenotype}
	results := make([][]hit, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for n, t := range types {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[n] = match(t, docs, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "search cancelled")
	}

	best := make(map[string]hit)
	for _, hs := range results {
		for _, h := range hs {
			id := h.doc.summary.StableID
			if cur, ok := best[id]; !ok || h.score > cur.score {
				best[id] = h
			}
		}
	}
	out := make([]hit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	return out, nil
}

func match(searchType string, docs []*document, text string) []hit {
	var score func(*document) int
	switch searchType {
	case TypeStableID:
		id := upper(text)
		score = func(d *document) int {
			if d.summary.StableID == id {
				return matchStableID
			}
			return 0
		}
	case TypeGene:
		q := upper(text)
		score = func(d *document) int {
			switch {
			case d.symbol == q, slices.Contains(d.locusIDs, q):
				return matchExact
			case slices.Contains(d.synonyms, q):
				return matchSynonym
			}
			return 0
		}
	case TypeDisease:
		lq, uq := lower(text), upper(text)
		score = func(d *document) int {
			switch {
			case d.disease == lq, slices.Contains(d.ontologyIDs, uq), slices.Contains(d.diseaseSynonyms, lq):
				return matchSynonym
			case strings.Contains(d.disease, lq), anyContains(d.diseaseSynonyms, lq):
				return matchSubstring
			}
			return 0
		}
	case TypePhenotype:
		uq := upper(text)
		if hpoAccession.MatchString(uq) {
			score = func(d *document) int {
				if d.phenotypeIDs[uq] {
					return matchExact
				}
				return 0
			}
		} else {
			lq := lower(text)
			score = func(d *document) int {
				if anyContains(d.phenotypeTerms, lq) {
					return matchSubstring
				}
				return 0
			}
		}
	}

	var hits []hit
	for _, d := range docs {
		if s := score(d); s > 0 {
			hits = append(hits, hit{doc: d, score: s})
		}
	}
	return hits
}

func (i *Index) paginate(hits []hit, q Query, searchType string, page int) (*PagedResult, error) {
	count := len(hits)
	from := (page - 1) * i.pageSize
	if page > 1 && from >= count {
		return nil, dErrors.New(dErrors.CodeNotFound, "invalid page")
	}
	to := min(from+i.pageSize, count)

	res := &PagedResult{Count: count, Results: make([]models.Summary, 0, to-from)}
	for _, h := range hits[from:to] {
		s := h.doc.summary
		if q.Curator {
			s.Panel = slices.Clone(s.Panel)
		} else {
			s.Panel = i.visiblePanels(s.Panel)
		}
		res.Results = append(res.Results, s)
	}
	if to < count {
		res.Next = pageLink(q, searchType, page+1)
	}
	if page > 1 {
		res.Previous = pageLink(q, searchType, page-1)
	}
	return res, nil
}

func (i *Index) visiblePanels(panels []string) []string {
	out := make([]string, 0, len(panels))
	for _, p := range panels {
		if i.ref.PanelVisible(p) {
			out = append(out, p)
		}
	}
	return out
}

func pageLink(q Query, searchType string, page int) *string {
	v := url.Values{}
	v.Set("query", strings.TrimSpace(q.Text))
	if searchType != "" {
		v.Set("type", searchType)
	}
	if q.Panel != "" {
		v.Set("panel", q.Panel)
	}
	v.Set("page", strconv.Itoa(page))
	link := "?" + v.Encode()
	return &link
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

func anyContains(list []string, sub string) bool {
	for _, x := range list {
		if strings.Contains(x, sub) {
			return true
		}
	}
	return false
}
