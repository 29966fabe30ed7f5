// Package assembler maps validated submissions into records and records into
// their public response shape.
package assembler

import (
	"context"
	"strings"
	"time"

	"g2p/internal/lgd/models"
	"g2p/internal/reference"
	dErrors "g2p/pkg/domain-errors"
	"g2p/pkg/requestcontext"
)

// Allocator mints stable IDs. It is the single serialization point for
// concurrent creations.
type Allocator interface {
	Next(ctx context.Context) (string, error)
}

// Reference resolves catalog details for loci, panels and variant types.
type Reference interface {
	Locus(symbol string) (reference.Locus, bool)
	Panel(name string) (reference.Panel, bool)
	PanelVisible(name string) bool
	VariantTypeAccession(term string) string
}

type Assembler struct {
	allocator Allocator
	ref       Reference
}

func New(allocator Allocator, ref Reference) *Assembler {
	return &Assembler{allocator: allocator, ref: ref}
}

// Assemble builds a new record from a normalized submission. It asks the
// allocator for exactly one stable ID and never retries: on failure nothing
// has been created and the caller gets an allocation failure.
func (a *Assembler) Assemble(ctx context.Context, sub *models.Submission) (*models.Record, error) {
	id, err := a.allocator.Next(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAllocationFailure, "stable id allocation failed")
	}

	now := requestcontext.Now(ctx).UTC()
	created := now
	rec := &models.Record{
		StableID:    id,
		DateCreated: &created,
		LastUpdated: now,
		IsReviewed:  0,
	}
	a.apply(ctx, rec, sub, func(string) bool { return true })
	if c, ok := models.ParseConfidence(sub.Confidence); ok {
		rec.Confidence = c
	}
	return rec, nil
}

// Merge replaces only the top-level substructures present in sub and bumps
// last_updated. Stable ID, creation date, confidence and review state are
// never touched here.
func (a *Assembler) Merge(ctx context.Context, rec *models.Record, sub *models.Submission) *models.Record {
	out := *rec
	a.apply(ctx, &out, sub, sub.Has)
	out.LastUpdated = requestcontext.Now(ctx).UTC()
	return &out
}

// ResolveLocus fills catalog details for a gene symbol.
func (a *Assembler) ResolveLocus(symbol string) models.Locus {
	symbol = strings.TrimSpace(symbol)
	l, ok := a.ref.Locus(symbol)
	if !ok {
		return models.Locus{Symbol: symbol}
	}
	ids := make(map[string]string, len(l.IDs))
	for k, v := range l.IDs {
		ids[k] = v
	}
	return models.Locus{
		Symbol:    l.Symbol,
		Sequence:  l.Sequence,
		Reference: l.Reference,
		IDs:       ids,
		Synonyms:  append([]string(nil), l.Synonyms...),
	}
}

func (a *Assembler) apply(ctx context.Context, rec *models.Record, sub *models.Submission, present func(string) bool) {
	if present("locus") {
		rec.Locus = a.ResolveLocus(sub.Locus)
	}
	if present("allelic_requirement") {
		rec.Genotype = sub.AllelicRequirement
	}
	if present("disease") && sub.Disease != nil {
		rec.Disease = models.Disease{
			DiseaseName:     strings.TrimSpace(sub.Disease.DiseaseName),
			CrossReferences: append([]models.CrossReference(nil), sub.Disease.CrossReferences...),
		}
	}
	if present("publications") {
		rec.Publications = append([]models.Publication(nil), sub.Publications...)
	}
	if present("phenotypes") {
		rec.Phenotypes = clonePhenotypes(sub.Phenotypes)
	}
	if present("variant_types") {
		rec.VariantTypes = a.variantTypes(sub.VariantTypes)
	}
	if present("variant_descriptions") {
		rec.VariantDescriptions = append([]models.VariantDescription(nil), sub.VariantDescriptions...)
	}
	if present("variant_consequences") {
		rec.VariantConsequences = append([]models.VariantConsequence(nil), sub.VariantConsequences...)
	}
	if present("molecular_mechanism") && sub.MolecularMechanism != nil {
		m := *sub.MolecularMechanism
		// A blank name keeps the current mechanism and only updates its support.
		if strings.TrimSpace(m.Name) == "" && rec.MolecularMechanism != nil {
			m.Name = rec.MolecularMechanism.Name
		}
		rec.MolecularMechanism = &m
	}
	if present("mechanism_synopsis") {
		rec.MechanismSynopsis = append([]models.MechanismSynopsis(nil), sub.MechanismSynopsis...)
	}
	if present("mechanism_evidence") {
		rec.MechanismEvidence = cloneEvidence(sub.MechanismEvidence)
	}
	if present("panel") {
		rec.Panels = append([]string(nil), sub.Panels...)
	}
	if present("cross_cutting_modifier") {
		rec.CrossCuttingModifier = append([]string(nil), sub.CrossCuttingModifier...)
	}

	// Comments accumulate rather than replace.
	author := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx).UTC()
	comments := append([]models.Comment(nil), rec.Comments...)
	if present("public_comment") && sub.PublicComment != "" {
		comments = append(comments, newComment(sub.PublicComment, true, author, now))
	}
	if present("private_comment") && sub.PrivateComment != "" {
		comments = append(comments, newComment(sub.PrivateComment, false, author, now))
	}
	rec.Comments = comments
}

// Extend appends the publications of sub, with the phenotypes, variant data
// and mechanism evidence that came with them, to a copy of rec.
func (a *Assembler) Extend(ctx context.Context, rec *models.Record, sub *models.Submission) *models.Record {
	out := *rec
	out.Publications = append(append([]models.Publication(nil), rec.Publications...), sub.Publications...)
	out.Phenotypes = append(clonePhenotypes(rec.Phenotypes), clonePhenotypes(sub.Phenotypes)...)
	out.VariantTypes = append(append([]models.VariantType(nil), rec.VariantTypes...), a.variantTypes(sub.VariantTypes)...)
	out.VariantDescriptions = append(append([]models.VariantDescription(nil), rec.VariantDescriptions...), sub.VariantDescriptions...)
	out.MechanismEvidence = append(cloneEvidence(rec.MechanismEvidence), cloneEvidence(sub.MechanismEvidence)...)
	out.LastUpdated = requestcontext.Now(ctx).UTC()
	return &out
}

func (a *Assembler) variantTypes(in []models.VariantType) []models.VariantType {
	out := make([]models.VariantType, 0, len(in))
	for _, vt := range in {
		vt.SupportingPapers = append([]models.PMID(nil), vt.SupportingPapers...)
		if vt.Accession == "" {
			vt.Accession = a.ref.VariantTypeAccession(vt.Term())
		}
		out = append(out, vt)
	}
	return out
}

func newComment(text string, public bool, author string, at time.Time) models.Comment {
	return models.Comment{Text: strings.TrimSpace(text), Public: public, Author: author, Date: at}
}

func clonePhenotypes(in []models.Phenotype) []models.Phenotype {
	out := make([]models.Phenotype, 0, len(in))
	for _, p := range in {
		p.HPOTerms = append([]models.HPOTerm(nil), p.HPOTerms...)
		out = append(out, p)
	}
	return out
}

func cloneEvidence(in []models.MechanismEvidence) []models.MechanismEvidence {
	out := make([]models.MechanismEvidence, 0, len(in))
	for _, ev := range in {
		types := make([]models.EvidenceType, 0, len(ev.EvidenceTypes))
		for _, et := range ev.EvidenceTypes {
			et.SecondaryType = append([]string(nil), et.SecondaryType...)
			types = append(types, et)
		}
		ev.EvidenceTypes = types
		out = append(out, ev)
	}
	return out
}
