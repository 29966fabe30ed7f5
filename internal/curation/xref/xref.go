// Package xref checks that every publication reference inside a submission or
// record resolves to a publication declared in the same payload.
package xref

import (
	"fmt"
	"strconv"

	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
)

const reasonDangling = "references a publication that is not in publications"

// Entities groups the parts of a payload that carry publication references.
type Entities struct {
	Publications        []models.Publication
	Phenotypes          []models.Phenotype
	VariantTypes        []models.VariantType
	VariantDescriptions []models.VariantDescription
	MolecularMechanism  *models.MolecularMechanism
	MechanismEvidence   []models.MechanismEvidence
}

// Check validates a schema-valid submission.
func Check(sub *models.Submission) error {
	return CheckEntities(Entities{
		Publications:        sub.Publications,
		Phenotypes:          sub.Phenotypes,
		VariantTypes:        sub.VariantTypes,
		VariantDescriptions: sub.VariantDescriptions,
		MolecularMechanism:  sub.MolecularMechanism,
		MechanismEvidence:   sub.MechanismEvidence,
	})
}

// CheckRecord validates a record after a merge or publication change.
func CheckRecord(rec *models.Record) error {
	return CheckEntities(Entities{
		Publications:        rec.Publications,
		Phenotypes:          rec.Phenotypes,
		VariantTypes:        rec.VariantTypes,
		VariantDescriptions: rec.VariantDescriptions,
		MolecularMechanism:  rec.MolecularMechanism,
		MechanismEvidence:   rec.MechanismEvidence,
	})
}

// CheckEntities reports every dangling reference at once.
func CheckEntities(e Entities) error {
	var errs []dErrors.Field
	declared := make(map[models.PMID]struct{}, len(e.Publications))
	for i, p := range e.Publications {
		if _, dup := declared[p.PMID]; dup {
			errs = append(errs, dErrors.Field{
				Path:       fmt.Sprintf("publications[%d].pmid", i),
				Reason:     "is declared more than once",
				Identifier: pmidString(p.PMID),
			})
			continue
		}
		declared[p.PMID] = struct{}{}
	}

	ref := func(path string, id models.PMID) {
		if _, ok := declared[id]; !ok {
			errs = append(errs, dErrors.Field{Path: path, Reason: reasonDangling, Identifier: pmidString(id)})
		}
	}

	for i, ph := range e.Phenotypes {
		if ph.PMID != nil {
			ref(fmt.Sprintf("phenotypes[%d].pmid", i), *ph.PMID)
		}
	}
	for i, vt := range e.VariantTypes {
		for j, id := range vt.SupportingPapers {
			ref(fmt.Sprintf("variant_types[%d].supporting_papers[%d]", i, j), id)
		}
	}
	for i, ev := range e.MechanismEvidence {
		ref(fmt.Sprintf("mechanism_evidence[%d].pmid", i), ev.PMID)
	}
	for i, vd := range e.VariantDescriptions {
		if vd.Publication != nil {
			ref(fmt.Sprintf("variant_descriptions[%d].publication", i), *vd.Publication)
		}
	}

	if len(e.MechanismEvidence) > 0 && (e.MolecularMechanism == nil || e.MolecularMechanism.Name == "") {
		errs = append(errs, dErrors.Field{
			Path:   "mechanism_evidence",
			Reason: "cites no molecular_mechanism",
		})
	}

	if len(errs) > 0 {
		return dErrors.WithFields(dErrors.CodeReferenceIntegrity, "submission has dangling references", errs)
	}
	return nil
}

func pmidString(id models.PMID) string {
	return strconv.FormatInt(int64(id), 10)
}
