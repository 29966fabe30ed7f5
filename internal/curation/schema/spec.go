package schema

import "g2p/internal/lgd/models"

// Kind is the JSON shape a field must have.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "a string"
	case KindInteger:
		return "an integer"
	case KindBool:
		return "a boolean"
	case KindObject:
		return "an object"
	case KindArray:
		return "a list"
	}
	return "unknown"
}

// Field declares one node of the submission shape.
type Field struct {
	Name     string
	Aliases  []string
	Kind     Kind
	Required bool
	// NonEmpty rejects blank strings and empty lists.
	NonEmpty bool
	Positive bool
	// OneOf restricts a string to a closed vocabulary (compared case-insensitively).
	OneOf []string
	// PanelName checks a string against the panel lookup given by WithPanels.
	PanelName bool

	Elem   *Field
	Fields []Field

	// AcceptSingle wraps a lone value into a one-element list (legacy shape).
	AcceptSingle bool
	// FromString names the object key a bare string fills, e.g. "HP:0001250".
	FromString string
	// ObjectKey lets a string field arrive wrapped in an object under this key.
	ObjectKey string
}

func str(name string) Field { return Field{Name: name, Kind: KindString} }
func integer(name string) Field { return Field{Name: name, Kind: KindInteger} }
func pmidRef(name string) Field {
	return Field{Name: name, Kind: KindInteger, Positive: true}
}
func flag(name string) Field { return Field{Name: name, Kind: KindBool} }

func confidenceNames() []string {
	out := make([]string, 0, len(models.ConfidenceLevels))
	for _, c := range models.ConfidenceLevels {
		out = append(out, string(c))
	}
	return out
}

var publicationSpec = Field{Kind: KindObject, Fields: []Field{
	{Name: "pmid", Kind: KindInteger, Required: true, Positive: true},
	str("source"),
	integer("families"),
	integer("affectedIndividuals"),
	str("ancestries"),
	str("consanguineous"),
	{Name: "comment", Kind: KindString, ObjectKey: "comment"},
	integer("year"),
	str("title"),
	str("authors"),
}}

var hpoTermSpec = Field{Kind: KindObject, FromString: "accession", Fields: []Field{
	{Name: "accession", Kind: KindString, Required: true, NonEmpty: true},
	str("term"),
	str("description"),
}}

var phenotypeSpec = Field{Kind: KindObject, Fields: []Field{
	pmidRef("pmid"),
	str("summary"),
	{Name: "hpo_terms", Kind: KindArray, Required: true, NonEmpty: true, Elem: &hpoTermSpec},
}}

var variantTypeSpec = Field{Kind: KindObject, Fields: []Field{
	{Name: "primary_type", Kind: KindString, Required: true, NonEmpty: true},
	str("secondary_type"),
	flag("nmd_escape"),
	flag("de_novo"),
	flag("inherited"),
	flag("unknown_inheritance"),
	{Name: "supporting_papers", Kind: KindArray, Required: true, AcceptSingle: true,
		Elem: &Field{Kind: KindInteger, Positive: true}},
	str("comment"),
}}

var variantDescriptionSpec = Field{Kind: KindObject, Fields: []Field{
	pmidRef("publication"),
	{Name: "description", Kind: KindString, Required: true, NonEmpty: true},
}}

var variantConsequenceSpec = Field{Kind: KindObject, Fields: []Field{
	{Name: "variant_consequence", Kind: KindString, Required: true, NonEmpty: true},
	str("support"),
}}

var mechanismSpec = Field{Kind: KindObject, Fields: []Field{
	str("name"),
	str("support"),
}}

var evidenceTypeSpec = Field{Kind: KindObject, Fields: []Field{
	{Name: "primary_type", Kind: KindString, Required: true, NonEmpty: true},
	{Name: "secondary_type", Kind: KindArray, Required: true, AcceptSingle: true,
		Elem: &Field{Kind: KindString, NonEmpty: true}},
}}

var mechanismEvidenceSpec = Field{Kind: KindObject, Fields: []Field{
	{Name: "pmid", Kind: KindInteger, Required: true, Positive: true},
	str("description"),
	{Name: "evidence_types", Kind: KindArray, Required: true, Elem: &evidenceTypeSpec},
}}

var diseaseSpec = Field{Name: "disease", Kind: KindObject, Required: true, Fields: []Field{
	{Name: "disease_name", Kind: KindString, Required: true, NonEmpty: true},
	{Name: "cross_references", Kind: KindArray, Elem: &Field{Kind: KindObject, Fields: []Field{
		str("original_disease_name"),
		str("disease_name"),
		str("identifier"),
		str("source"),
	}}},
}}

// submissionSpec is the canonical curation submission shape. Unknown keys are
// ignored at every level.
var submissionSpec = Field{Kind: KindObject, Fields: []Field{
	str("session_name"),
	{Name: "locus", Kind: KindString, Required: true, NonEmpty: true},
	{Name: "publications", Kind: KindArray, Elem: &publicationSpec},
	{Name: "phenotypes", Kind: KindArray, Elem: &phenotypeSpec},
	{Name: "variant_types", Kind: KindArray, Elem: &variantTypeSpec},
	{Name: "variant_descriptions", Kind: KindArray, Elem: &variantDescriptionSpec},
	{Name: "variant_consequences", Kind: KindArray, Elem: &variantConsequenceSpec},
	withName("molecular_mechanism", mechanismSpec),
	{Name: "mechanism_synopsis", Kind: KindArray, AcceptSingle: true, Elem: &mechanismSpec},
	{Name: "mechanism_evidence", Kind: KindArray, Elem: &mechanismEvidenceSpec},
	diseaseSpec,
	{Name: "panel", Aliases: []string{"panels"}, Kind: KindArray, AcceptSingle: true,
		Elem: &Field{Kind: KindString, NonEmpty: true, PanelName: true}},
	str("allelic_requirement"),
	{Name: "cross_cutting_modifier", Kind: KindArray, AcceptSingle: true,
		Elem: &Field{Kind: KindString, NonEmpty: true}},
	{Name: "confidence", Kind: KindString, OneOf: confidenceNames()},
	str("public_comment"),
	str("private_comment"),
}}

func withName(name string, f Field) Field {
	f.Name = name
	return f
}
