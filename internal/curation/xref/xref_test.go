package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
)

func pmid(n int64) *models.PMID {
	p := models.PMID(n)
	return &p
}

func TestCheck(t *testing.T) {
	t.Run("all references resolve", func(t *testing.T) {
		sub := &models.Submission{
			Publications:        []models.Publication{{PMID: 1}, {PMID: 2}},
			Phenotypes:          []models.Phenotype{{PMID: pmid(1), HPOTerms: []models.HPOTerm{{Accession: "HP:0001250"}}}},
			VariantTypes:        []models.VariantType{{PrimaryType: "missense_variant", SupportingPapers: []models.PMID{1, 2}}},
			VariantDescriptions: []models.VariantDescription{{Publication: pmid(2), Description: "NM_000546.6:c.743G>A"}},
			MolecularMechanism:  &models.MolecularMechanism{Name: "loss of function", Support: "evidence"},
			MechanismEvidence:   []models.MechanismEvidence{{PMID: 2}},
		}
		assert.NoError(t, Check(sub))
	})

	t.Run("no publications and no references", func(t *testing.T) {
		sub := &models.Submission{
			MolecularMechanism: &models.MolecularMechanism{Name: "gain of function", Support: "inferred"},
		}
		assert.NoError(t, Check(sub))
	})

	t.Run("names each dangling identifier", func(t *testing.T) {
		sub := &models.Submission{
			Publications:        []models.Publication{{PMID: 1}},
			Phenotypes:          []models.Phenotype{{PMID: pmid(7)}},
			VariantTypes:        []models.VariantType{{SupportingPapers: []models.PMID{1, 8}}},
			VariantDescriptions: []models.VariantDescription{{Publication: pmid(9)}},
			MolecularMechanism:  &models.MolecularMechanism{Name: "loss of function"},
			MechanismEvidence:   []models.MechanismEvidence{{PMID: 10}},
		}
		err := Check(sub)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeReferenceIntegrity))

		got := map[string]string{}
		for _, f := range dErrors.FieldsOf(err) {
			got[f.Path] = f.Identifier
		}
		assert.Equal(t, map[string]string{
			"phenotypes[0].pmid":                    "7",
			"variant_types[0].supporting_papers[1]": "8",
			"variant_descriptions[0].publication":   "9",
			"mechanism_evidence[0].pmid":            "10",
		}, got)
	})

	t.Run("duplicate publication", func(t *testing.T) {
		sub := &models.Submission{Publications: []models.Publication{{PMID: 3}, {PMID: 3}}}
		err := Check(sub)
		require.Error(t, err)
		fields := dErrors.FieldsOf(err)
		require.Len(t, fields, 1)
		assert.Equal(t, "publications[1].pmid", fields[0].Path)
	})

	t.Run("evidence without a mechanism", func(t *testing.T) {
		sub := &models.Submission{
			Publications:      []models.Publication{{PMID: 1}},
			MechanismEvidence: []models.MechanismEvidence{{PMID: 1}},
		}
		err := Check(sub)
		require.Error(t, err)
		assert.Equal(t, "mechanism_evidence", dErrors.FieldsOf(err)[0].Path)
	})
}

func TestCheckRecord(t *testing.T) {
	rec := &models.Record{
		Publications: []models.Publication{{PMID: 1}},
		VariantTypes: []models.VariantType{{SupportingPapers: []models.PMID{2}}},
	}
	err := CheckRecord(rec)
	require.Error(t, err)
	assert.Equal(t, "2", dErrors.FieldsOf(err)[0].Identifier)
}
