package models

import "time"

// DateLayout is the wire format for every date field.
const DateLayout = "2006-01-02"

// FormatDate renders t as YYYY-MM-DD, or nil for the zero time.
func FormatDate(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(DateLayout)
	return &s
}

// RecordView is the public shape of a record. Every key is always emitted:
// absent optional data renders as null or an empty list.
type RecordView struct {
	Locus                LocusView                `json:"locus"`
	StableID             string                   `json:"stable_id"`
	Genotype             *string                  `json:"genotype"`
	VariantConsequence   []VariantConsequenceView `json:"variant_consequence"`
	MolecularMechanism   *MechanismView           `json:"molecular_mechanism"`
	Disease              DiseaseView              `json:"disease"`
	Confidence           *string                  `json:"confidence"`
	Publications         []PublicationView        `json:"publications"`
	Panels               []PanelView              `json:"panels"`
	CrossCuttingModifier []TermView               `json:"cross_cutting_modifier"`
	VariantType          []VariantTypeView        `json:"variant_type"`
	VariantDescription   []VariantDescriptionView `json:"variant_description"`
	Phenotypes           []PhenotypeView          `json:"phenotypes"`
	PhenotypeSummary     []PhenotypeSummaryView   `json:"phenotype_summary"`
	LastUpdated          *string                  `json:"last_updated"`
	DateCreated          *string                  `json:"date_created"`
	Comments             []CommentView            `json:"comments"`
	IsReviewed           int                      `json:"is_reviewed"`
}

type LocusView struct {
	GeneSymbol string            `json:"gene_symbol"`
	Sequence   *string           `json:"sequence"`
	Reference  *string           `json:"reference"`
	IDs        map[string]string `json:"ids"`
	Synonyms   []string          `json:"synonyms"`
}

type VariantConsequenceView struct {
	VariantConsequence string  `json:"variant_consequence"`
	Support            *string `json:"support"`
}

// MechanismView groups mechanism evidence as pmid -> evidence category -> values.
type MechanismView struct {
	Mechanism *string                        `json:"mechanism"`
	Support   *string                        `json:"mechanism_support"`
	Synopsis  []SynopsisView                 `json:"synopsis"`
	Evidence  map[string]map[string][]string `json:"evidence"`
}

type SynopsisView struct {
	Synopsis string  `json:"synopsis"`
	Support  *string `json:"synopsis_support"`
}

type DiseaseView struct {
	Name          string             `json:"name"`
	OntologyTerms []OntologyTermView `json:"ontology_terms"`
	Synonyms      []string           `json:"synonyms"`
}

type OntologyTermView struct {
	Accession   string  `json:"accession"`
	Term        *string `json:"term"`
	Description *string `json:"description"`
	Source      *string `json:"source"`
}

type PublicationView struct {
	PMID     int64                    `json:"pmid"`
	Title    *string                  `json:"title"`
	Authors  *string                  `json:"authors"`
	Year     *int64                   `json:"year"`
	Comments []PublicationCommentView `json:"comments"`
	Families []FamilyView             `json:"families"`
}

type PublicationCommentView struct {
	Comment string `json:"comment"`
}

type FamilyView struct {
	NumberOfFamilies    *int64  `json:"number_of_families"`
	AffectedIndividuals *int64  `json:"affected_individuals"`
	Ancestry            *string `json:"ancestry"`
	Consanguinity       *string `json:"consanguinity"`
}

type PanelView struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type TermView struct {
	Term string `json:"term"`
}

type VariantTypeView struct {
	Term               string   `json:"term"`
	Accession          *string  `json:"accession"`
	Inherited          bool     `json:"inherited"`
	DeNovo             bool     `json:"de_novo"`
	UnknownInheritance bool     `json:"unknown_inheritance"`
	NMDEscape          bool     `json:"nmd_escape"`
	Publications       []int64  `json:"publications"`
	Comments           []string `json:"comments"`
}

type VariantDescriptionView struct {
	Description  string  `json:"description"`
	Publications []int64 `json:"publications"`
}

type PhenotypeView struct {
	Term         *string `json:"term"`
	Accession    string  `json:"accession"`
	Publications []int64 `json:"publications"`
}

type PhenotypeSummaryView struct {
	Summary     string `json:"summary"`
	Publication *int64 `json:"publication"`
}

type CommentView struct {
	Text string  `json:"text"`
	Date *string `json:"date"`
}

// Summary is the flat projection used by search results and panel summaries.
type Summary struct {
	StableID   string   `json:"stable_id"`
	Gene       string   `json:"gene"`
	Genotype   *string  `json:"genotype"`
	Disease    string   `json:"disease"`
	Mechanism  *string  `json:"mechanism"`
	Panel      []string `json:"panel"`
	Confidence *string  `json:"confidence"`
}

// NewSummary projects a record into its flat summary.
func NewSummary(r *Record) Summary {
	panels := make([]string, len(r.Panels))
	copy(panels, r.Panels)
	return Summary{
		StableID:   r.StableID,
		Gene:       r.Locus.Symbol,
		Genotype:   NullString(r.Genotype),
		Disease:    r.Disease.DiseaseName,
		Mechanism:  NullString(r.MechanismName()),
		Panel:      panels,
		Confidence: NullString(string(r.Confidence)),
	}
}

// NullString returns nil for "" so the field renders as JSON null.
func NullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
