package models

import (
	"strings"
	"time"
)

// Locus is the gene (or region) a record is about, resolved from the reference catalog.
type Locus struct {
	Symbol    string            `json:"gene_symbol"`
	Sequence  string            `json:"sequence,omitempty"`
	Reference string            `json:"reference,omitempty"`
	IDs       map[string]string `json:"ids,omitempty"`
	Synonyms  []string          `json:"synonyms,omitempty"`
}

// Comment is a curator note on a record. Private comments are curator-only.
type Comment struct {
	Text   string    `json:"text"`
	Public bool      `json:"public"`
	Author string    `json:"author,omitempty"`
	Date   time.Time `json:"date"`
}

// Record is a persisted Locus-Genotype-Mechanism-Disease-Evidence entry.
type Record struct {
	StableID             string               `json:"stable_id"`
	Locus                Locus                `json:"locus"`
	Genotype             string               `json:"genotype,omitempty"`
	VariantConsequences  []VariantConsequence `json:"variant_consequences,omitempty"`
	MolecularMechanism   *MolecularMechanism  `json:"molecular_mechanism,omitempty"`
	MechanismSynopsis    []MechanismSynopsis  `json:"mechanism_synopsis,omitempty"`
	MechanismEvidence    []MechanismEvidence  `json:"mechanism_evidence,omitempty"`
	Disease              Disease              `json:"disease"`
	Confidence           Confidence           `json:"confidence,omitempty"`
	Publications         []Publication        `json:"publications,omitempty"`
	Panels               []string             `json:"panels,omitempty"`
	CrossCuttingModifier []string             `json:"cross_cutting_modifier,omitempty"`
	VariantTypes         []VariantType        `json:"variant_types,omitempty"`
	VariantDescriptions  []VariantDescription `json:"variant_descriptions,omitempty"`
	Phenotypes           []Phenotype          `json:"phenotypes,omitempty"`
	Comments             []Comment            `json:"comments,omitempty"`
	LastUpdated          time.Time            `json:"last_updated"`
	// DateCreated is nil for records migrated without creation history.
	DateCreated *time.Time `json:"date_created,omitempty"`
	IsReviewed  int        `json:"is_reviewed"`
}

// Reviewed reports whether the record passed curator review.
func (r *Record) Reviewed() bool {
	return r.IsReviewed != 0
}

// MechanismName returns the mechanism label or "".
func (r *Record) MechanismName() string {
	if r.MolecularMechanism == nil {
		return ""
	}
	return r.MolecularMechanism.Name
}

// Key identifies the logical entry a record describes; two records must not share one.
func (r *Record) Key() RecordKey {
	return RecordKey{
		Locus:     strings.ToUpper(strings.TrimSpace(r.Locus.Symbol)),
		Genotype:  strings.ToLower(strings.TrimSpace(r.Genotype)),
		Disease:   strings.ToLower(strings.TrimSpace(r.Disease.DiseaseName)),
		Mechanism: strings.ToLower(strings.TrimSpace(r.MechanismName())),
	}
}

// HasPanel reports whether the record belongs to the named panel (case-insensitive).
func (r *Record) HasPanel(name string) bool {
	for _, p := range r.Panels {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// PMIDs returns the declared publication identifiers in source order.
func (r *Record) PMIDs() []PMID {
	out := make([]PMID, 0, len(r.Publications))
	for _, p := range r.Publications {
		out = append(out, p.PMID)
	}
	return out
}

// RecordKey is the uniqueness tuple (locus, genotype, disease, mechanism).
type RecordKey struct {
	Locus     string
	Genotype  string
	Disease   string
	Mechanism string
}

// Viewer describes who is reading; curators see unreviewed records and private comments.
type Viewer struct {
	UserID  string
	Curator bool
}

// Public is an anonymous viewer.
var Public = Viewer{}
