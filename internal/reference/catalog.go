// Package reference holds the curated reference data records are resolved
// against: panels, loci and the controlled vocabularies.
package reference

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"g2p/internal/lgd/models"
)

//go:embed default.yaml
var defaultYAML []byte

type Panel struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Visible     bool   `yaml:"visible" json:"visible"`
}

type Locus struct {
	Symbol    string            `yaml:"symbol" json:"symbol"`
	Sequence  string            `yaml:"sequence" json:"sequence"`
	Reference string            `yaml:"reference" json:"reference"`
	IDs       map[string]string `yaml:"ids" json:"ids"`
	Synonyms  []string          `yaml:"synonyms" json:"synonyms"`
}

type Vocabulary struct {
	Genotypes             []string            `yaml:"genotypes" json:"genotypes"`
	Mechanisms            []string            `yaml:"mechanisms" json:"mechanisms"`
	MechanismSupport      []string            `yaml:"mechanism_support" json:"mechanism_support"`
	MechanismSynopsis     []string            `yaml:"mechanism_synopsis" json:"mechanism_synopsis"`
	EvidenceCategories    map[string][]string `yaml:"evidence_categories" json:"evidence_categories"`
	VariantConsequences   []string            `yaml:"variant_consequences" json:"variant_consequences"`
	VariantTypes          map[string]string   `yaml:"variant_types" json:"variant_types"`
	CrossCuttingModifiers []string            `yaml:"cross_cutting_modifiers" json:"cross_cutting_modifiers"`
	ConfidenceLevels      []string            `yaml:"-" json:"confidence"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	Panels     []Panel    `yaml:"panels"`
	Loci       []Locus    `yaml:"loci"`
	Vocabulary Vocabulary `yaml:"vocabulary"`

	panelIdx map[string]int
	locusIdx map[string]int
}

// Default returns the catalog bundled with the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded reference catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and indexes it.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse reference catalog: %w", err)
	}
	c.panelIdx = make(map[string]int, len(c.Panels))
	for i, p := range c.Panels {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return nil, fmt.Errorf("panel %d has no name", i)
		}
		if _, dup := c.panelIdx[key]; dup {
			return nil, fmt.Errorf("duplicate panel %q", p.Name)
		}
		c.panelIdx[key] = i
	}
	c.locusIdx = make(map[string]int, len(c.Loci))
	for i, l := range c.Loci {
		key := strings.ToUpper(strings.TrimSpace(l.Symbol))
		if key == "" {
			return nil, fmt.Errorf("locus %d has no symbol", i)
		}
		if _, dup := c.locusIdx[key]; dup {
			return nil, fmt.Errorf("duplicate locus %q", l.Symbol)
		}
		c.locusIdx[key] = i
	}
	c.Vocabulary.ConfidenceLevels = make([]string, 0, len(models.ConfidenceLevels))
	for _, l := range models.ConfidenceLevels {
		c.Vocabulary.ConfidenceLevels = append(c.Vocabulary.ConfidenceLevels, string(l))
	}
	return &c, nil
}

// Panel looks a panel up by name, case-insensitively.
func (c *Catalog) Panel(name string) (Panel, bool) {
	i, ok := c.panelIdx[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Panel{}, false
	}
	return c.Panels[i], true
}

// PanelVisible reports whether the public may see the panel. Unknown panels are hidden.
func (c *Catalog) PanelVisible(name string) bool {
	p, ok := c.Panel(name)
	return ok && p.Visible
}

// ListPanels returns panels sorted by name; hidden ones only when includeHidden is set.
func (c *Catalog) ListPanels(includeHidden bool) []Panel {
	out := make([]Panel, 0, len(c.Panels))
	for _, p := range c.Panels {
		if p.Visible || includeHidden {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Locus looks a locus up by its gene symbol.
func (c *Catalog) Locus(symbol string) (Locus, bool) {
	i, ok := c.locusIdx[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Locus{}, false
	}
	return c.Loci[i], true
}

// VariantTypeAccession resolves a variant type term to its Sequence Ontology accession.
func (c *Catalog) VariantTypeAccession(term string) string {
	return c.Vocabulary.VariantTypes[strings.ToLower(strings.TrimSpace(term))]
}

// Vocabularies returns the controlled vocabularies, confidence levels included.
func (c *Catalog) Vocabularies() Vocabulary {
	return c.Vocabulary
}
