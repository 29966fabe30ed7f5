package models

// PMID is a PubMed identifier, normalized to its numeric form.
type PMID int64

// Submission is a normalized curation payload. It only exists while a curator
// action is processed and is either consumed into a Record or discarded.
type Submission struct {
	SessionName          string               `json:"session_name,omitempty"`
	Locus                string               `json:"locus"`
	Publications         []Publication        `json:"publications,omitempty"`
	Phenotypes           []Phenotype          `json:"phenotypes,omitempty"`
	VariantTypes         []VariantType        `json:"variant_types,omitempty"`
	VariantDescriptions  []VariantDescription `json:"variant_descriptions,omitempty"`
	VariantConsequences  []VariantConsequence `json:"variant_consequences,omitempty"`
	MolecularMechanism   *MolecularMechanism  `json:"molecular_mechanism,omitempty"`
	MechanismSynopsis    []MechanismSynopsis  `json:"mechanism_synopsis,omitempty"`
	MechanismEvidence    []MechanismEvidence  `json:"mechanism_evidence,omitempty"`
	Disease              *Disease             `json:"disease,omitempty"`
	Panels               []string             `json:"panel,omitempty"`
	AllelicRequirement   string               `json:"allelic_requirement,omitempty"`
	CrossCuttingModifier []string             `json:"cross_cutting_modifier,omitempty"`
	Confidence           string               `json:"confidence,omitempty"`
	PublicComment        string               `json:"public_comment,omitempty"`
	PrivateComment       string               `json:"private_comment,omitempty"`

	// Present holds the top-level keys the curator actually sent, so a merge
	// can tell an omitted field from an explicitly emptied one.
	Present map[string]bool `json:"-"`
}

// Has reports whether the top-level field was part of the payload.
func (s *Submission) Has(field string) bool {
	return s.Present[field]
}

type Publication struct {
	PMID                PMID   `json:"pmid"`
	Source              string `json:"source,omitempty"`
	Families            *int64 `json:"families,omitempty"`
	AffectedIndividuals *int64 `json:"affectedIndividuals,omitempty"`
	Ancestries          string `json:"ancestries,omitempty"`
	Consanguineous      string `json:"consanguineous,omitempty"`
	Comment             string `json:"comment,omitempty"`
	Year                *int64 `json:"year,omitempty"`
	Title               string `json:"title,omitempty"`
	Authors             string `json:"authors,omitempty"`
}

type HPOTerm struct {
	Accession   string `json:"accession"`
	Term        string `json:"term,omitempty"`
	Description string `json:"description,omitempty"`
}

type Phenotype struct {
	PMID     *PMID     `json:"pmid,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	HPOTerms []HPOTerm `json:"hpo_terms"`
}

type VariantType struct {
	PrimaryType        string `json:"primary_type"`
	SecondaryType      string `json:"secondary_type,omitempty"`
	Accession          string `json:"accession,omitempty"`
	NMDEscape          bool   `json:"nmd_escape"`
	DeNovo             bool   `json:"de_novo"`
	Inherited          bool   `json:"inherited"`
	UnknownInheritance bool   `json:"unknown_inheritance"`
	SupportingPapers   []PMID `json:"supporting_papers"`
	Comment            string `json:"comment,omitempty"`
}

// Term is the most specific variant type label.
func (v VariantType) Term() string {
	if v.SecondaryType != "" {
		return v.SecondaryType
	}
	return v.PrimaryType
}

type VariantDescription struct {
	Publication *PMID  `json:"publication,omitempty"`
	Description string `json:"description"`
}

type VariantConsequence struct {
	VariantConsequence string `json:"variant_consequence"`
	Support            string `json:"support,omitempty"`
}

type MolecularMechanism struct {
	Name    string `json:"name"`
	Support string `json:"support,omitempty"`
}

type MechanismSynopsis struct {
	Name    string `json:"name"`
	Support string `json:"support,omitempty"`
}

type EvidenceType struct {
	PrimaryType   string   `json:"primary_type"`
	SecondaryType []string `json:"secondary_type"`
}

type MechanismEvidence struct {
	PMID          PMID           `json:"pmid"`
	Description   string         `json:"description,omitempty"`
	EvidenceTypes []EvidenceType `json:"evidence_types"`
}

type CrossReference struct {
	OriginalDiseaseName string `json:"original_disease_name,omitempty"`
	DiseaseName         string `json:"disease_name,omitempty"`
	Identifier          string `json:"identifier,omitempty"`
	Source              string `json:"source,omitempty"`
}

type Disease struct {
	DiseaseName     string           `json:"disease_name"`
	CrossReferences []CrossReference `json:"cross_references,omitempty"`
}
