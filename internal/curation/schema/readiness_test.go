package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"g2p/internal/lgd/models"
)

func completeSubmission() *models.Submission {
	return &models.Submission{
		Locus:               "TP53",
		Disease:             &models.Disease{DiseaseName: "TP53-related cancer"},
		Confidence:          "strong",
		Publications:        []models.Publication{{PMID: 1}},
		Panels:              []string{"Cancer"},
		AllelicRequirement:  "monoallelic_autosomal",
		MolecularMechanism:  &models.MolecularMechanism{Name: "loss of function", Support: "inferred"},
		VariantConsequences: []models.VariantConsequence{{VariantConsequence: "absent_gene_product"}},
	}
}

func TestReadiness(t *testing.T) {
	t.Run("complete submission has no gaps", func(t *testing.T) {
		assert.Empty(t, Readiness(completeSubmission(), "17"))
	})

	t.Run("lists every missing mandatory field", func(t *testing.T) {
		sub := &models.Submission{Locus: "TP53", Disease: &models.Disease{DiseaseName: "x"}}
		var paths []string
		for _, gap := range Readiness(sub, "") {
			paths = append(paths, gap.Path)
		}
		assert.Equal(t, []string{
			"confidence", "publications", "panel", "allelic_requirement",
			"molecular_mechanism", "variant_consequences",
		}, paths)
	})

	t.Run("evidence support without evidence", func(t *testing.T) {
		sub := completeSubmission()
		sub.MolecularMechanism.Support = "evidence"
		gaps := Readiness(sub, "")
		if assert.Len(t, gaps, 1) {
			assert.Equal(t, "mechanism_evidence", gaps[0].Path)
		}
	})
}

func TestCheckAllelicRequirement(t *testing.T) {
	tests := []struct {
		genotype   string
		chromosome string
		ok         bool
	}{
		{"monoallelic_autosomal", "17", true},
		{"biallelic_autosomal", "X", false},
		{"mitochondrial", "MT", true},
		{"mitochondrial", "1", false},
		{"monoallelic_X_hemizygous", "X", true},
		{"monoallelic_X_hemizygous", "7", false},
		{"monoallelic_PAR", "Y", true},
		{"biallelic_PAR", "3", false},
		{"monoallelic_autosomal", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.genotype+"/"+tt.chromosome, func(t *testing.T) {
			reason := checkAllelicRequirement(tt.genotype, tt.chromosome)
			assert.Equal(t, tt.ok, reason == "", reason)
		})
	}
}
