package assembler

import (
	"strconv"
	"strings"

	"g2p/internal/lgd/models"
)

// Project renders a record in its public response shape. Every optional field
// is present in the output, as null or an empty list when the record has no
// data for it. Private comments and hidden panels are only shown to curators.
func (a *Assembler) Project(rec *models.Record, viewer models.Viewer) *models.RecordView {
	v := &models.RecordView{
		Locus:                projectLocus(rec.Locus),
		StableID:             rec.StableID,
		Genotype:             models.NullString(rec.Genotype),
		VariantConsequence:   make([]models.VariantConsequenceView, 0, len(rec.VariantConsequences)),
		MolecularMechanism:   projectMechanism(rec),
		Disease:              projectDisease(rec.Disease),
		Confidence:           models.NullString(string(rec.Confidence)),
		Publications:         make([]models.PublicationView, 0, len(rec.Publications)),
		Panels:               make([]models.PanelView, 0, len(rec.Panels)),
		CrossCuttingModifier: make([]models.TermView, 0, len(rec.CrossCuttingModifier)),
		VariantType:          projectVariantTypes(rec.VariantTypes),
		VariantDescription:   projectVariantDescriptions(rec.VariantDescriptions),
		Phenotypes:           projectPhenotypes(rec.Phenotypes),
		PhenotypeSummary:     make([]models.PhenotypeSummaryView, 0),
		LastUpdated:          models.FormatDate(rec.LastUpdated),
		Comments:             make([]models.CommentView, 0, len(rec.Comments)),
		IsReviewed:           rec.IsReviewed,
	}
	if rec.DateCreated != nil {
		v.DateCreated = models.FormatDate(*rec.DateCreated)
	}

	for _, vc := range rec.VariantConsequences {
		v.VariantConsequence = append(v.VariantConsequence, models.VariantConsequenceView{
			VariantConsequence: vc.VariantConsequence,
			Support:            models.NullString(vc.Support),
		})
	}
	for _, p := range rec.Publications {
		v.Publications = append(v.Publications, projectPublication(p))
	}
	for _, name := range rec.Panels {
		if !viewer.Curator && !a.ref.PanelVisible(name) {
			continue
		}
		pv := models.PanelView{Name: name}
		if p, ok := a.ref.Panel(name); ok {
			pv.Name = p.Name
			pv.Description = models.NullString(p.Description)
		}
		v.Panels = append(v.Panels, pv)
	}
	for _, term := range rec.CrossCuttingModifier {
		v.CrossCuttingModifier = append(v.CrossCuttingModifier, models.TermView{Term: term})
	}
	for _, ph := range rec.Phenotypes {
		if ph.Summary == "" {
			continue
		}
		v.PhenotypeSummary = append(v.PhenotypeSummary, models.PhenotypeSummaryView{
			Summary:     ph.Summary,
			Publication: pmidPtr(ph.PMID),
		})
	}
	for _, c := range rec.Comments {
		if !c.Public && !viewer.Curator {
			continue
		}
		v.Comments = append(v.Comments, models.CommentView{Text: c.Text, Date: models.FormatDate(c.Date)})
	}
	return v
}

func projectLocus(l models.Locus) models.LocusView {
	ids := make(map[string]string, len(l.IDs))
	for k, v := range l.IDs {
		ids[k] = v
	}
	synonyms := make([]string, 0, len(l.Synonyms))
	synonyms = append(synonyms, l.Synonyms...)
	return models.LocusView{
		GeneSymbol: l.Symbol,
		Sequence:   models.NullString(l.Sequence),
		Reference:  models.NullString(l.Reference),
		IDs:        ids,
		Synonyms:   synonyms,
	}
}

// projectMechanism groups evidence as pmid -> category -> values, keeping the
// order in which values were curated.
func projectMechanism(rec *models.Record) *models.MechanismView {
	if rec.MolecularMechanism == nil && len(rec.MechanismSynopsis) == 0 && len(rec.MechanismEvidence) == 0 {
		return nil
	}
	mv := &models.MechanismView{
		Synopsis: make([]models.SynopsisView, 0, len(rec.MechanismSynopsis)),
		Evidence: make(map[string]map[string][]string),
	}
	if rec.MolecularMechanism != nil {
		mv.Mechanism = models.NullString(rec.MolecularMechanism.Name)
		mv.Support = models.NullString(rec.MolecularMechanism.Support)
	}
	for _, s := range rec.MechanismSynopsis {
		mv.Synopsis = append(mv.Synopsis, models.SynopsisView{Synopsis: s.Name, Support: models.NullString(s.Support)})
	}
	for _, ev := range rec.MechanismEvidence {
		key := strconv.FormatInt(int64(ev.PMID), 10)
		byCategory, ok := mv.Evidence[key]
		if !ok {
			byCategory = make(map[string][]string)
			mv.Evidence[key] = byCategory
		}
		for _, et := range ev.EvidenceTypes {
			category := strings.ReplaceAll(strings.TrimSpace(et.PrimaryType), " ", "_")
			if _, ok := byCategory[category]; !ok {
				byCategory[category] = make([]string, 0, len(et.SecondaryType))
			}
			byCategory[category] = append(byCategory[category], et.SecondaryType...)
		}
	}
	return mv
}

func projectDisease(d models.Disease) models.DiseaseView {
	dv := models.DiseaseView{
		Name:          d.DiseaseName,
		OntologyTerms: make([]models.OntologyTermView, 0, len(d.CrossReferences)),
		Synonyms:      make([]string, 0),
	}
	seen := map[string]bool{strings.ToLower(d.DiseaseName): true}
	for _, x := range d.CrossReferences {
		if x.Identifier != "" {
			term := x.DiseaseName
			if term == "" {
				term = x.OriginalDiseaseName
			}
			dv.OntologyTerms = append(dv.OntologyTerms, models.OntologyTermView{
				Accession: x.Identifier,
				Term:      models.NullString(term),
				Source:    models.NullString(x.Source),
			})
		}
		if name := x.OriginalDiseaseName; name != "" && !seen[strings.ToLower(name)] {
			seen[strings.ToLower(name)] = true
			dv.Synonyms = append(dv.Synonyms, name)
		}
	}
	return dv
}

func projectPublication(p models.Publication) models.PublicationView {
	pv := models.PublicationView{
		PMID:     int64(p.PMID),
		Title:    models.NullString(p.Title),
		Authors:  models.NullString(p.Authors),
		Year:     p.Year,
		Comments: make([]models.PublicationCommentView, 0, 1),
		Families: make([]models.FamilyView, 0, 1),
	}
	if p.Comment != "" {
		pv.Comments = append(pv.Comments, models.PublicationCommentView{Comment: p.Comment})
	}
	if p.Families != nil || p.AffectedIndividuals != nil || p.Ancestries != "" || p.Consanguineous != "" {
		pv.Families = append(pv.Families, models.FamilyView{
			NumberOfFamilies:    p.Families,
			AffectedIndividuals: p.AffectedIndividuals,
			Ancestry:            models.NullString(p.Ancestries),
			Consanguinity:       models.NullString(p.Consanguineous),
		})
	}
	return pv
}

// projectVariantTypes merges entries describing the same variant type and
// collects their supporting publications.
func projectVariantTypes(in []models.VariantType) []models.VariantTypeView {
	out := make([]models.VariantTypeView, 0, len(in))
	index := make(map[string]int, len(in))
	for _, vt := range in {
		key := vt.Accession
		if key == "" {
			key = "term:" + vt.Term()
		}
		i, ok := index[key]
		if !ok {
			out = append(out, models.VariantTypeView{
				Term:               vt.Term(),
				Accession:          models.NullString(vt.Accession),
				Inherited:          vt.Inherited,
				DeNovo:             vt.DeNovo,
				UnknownInheritance: vt.UnknownInheritance,
				NMDEscape:          vt.NMDEscape,
				Publications:       make([]int64, 0, len(vt.SupportingPapers)),
				Comments:           make([]string, 0),
			})
			i = len(out) - 1
			index[key] = i
		}
		for _, id := range vt.SupportingPapers {
			out[i].Publications = appendUnique(out[i].Publications, int64(id))
		}
		if vt.Comment != "" {
			out[i].Comments = append(out[i].Comments, vt.Comment)
		}
	}
	return out
}

func projectVariantDescriptions(in []models.VariantDescription) []models.VariantDescriptionView {
	out := make([]models.VariantDescriptionView, 0, len(in))
	index := make(map[string]int, len(in))
	for _, vd := range in {
		i, ok := index[vd.Description]
		if !ok {
			out = append(out, models.VariantDescriptionView{Description: vd.Description, Publications: make([]int64, 0, 1)})
			i = len(out) - 1
			index[vd.Description] = i
		}
		if vd.Publication != nil {
			out[i].Publications = appendUnique(out[i].Publications, int64(*vd.Publication))
		}
	}
	return out
}

// projectPhenotypes groups HPO terms by accession across all phenotype entries.
func projectPhenotypes(in []models.Phenotype) []models.PhenotypeView {
	out := make([]models.PhenotypeView, 0)
	index := make(map[string]int)
	for _, ph := range in {
		for _, term := range ph.HPOTerms {
			i, ok := index[term.Accession]
			if !ok {
				out = append(out, models.PhenotypeView{
					Term:         models.NullString(term.Term),
					Accession:    term.Accession,
					Publications: make([]int64, 0, 1),
				})
				i = len(out) - 1
				index[term.Accession] = i
			}
			if out[i].Term == nil && term.Term != "" {
				out[i].Term = models.NullString(term.Term)
			}
			if ph.PMID != nil {
				out[i].Publications = appendUnique(out[i].Publications, int64(*ph.PMID))
			}
		}
	}
	return out
}

func appendUnique(list []int64, v int64) []int64 {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func pmidPtr(p *models.PMID) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}
