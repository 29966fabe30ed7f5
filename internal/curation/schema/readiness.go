package schema

import (
	"strconv"
	"strings"

	"g2p/internal/lgd/models"
	dErrors "g2p/pkg/domain-errors"
)

const reasonMissingForPublish = "is required before the record can be published"

// Readiness lists what still blocks publication of a structurally valid
// submission. It is advisory: creation never depends on it. chromosome is the
// locus sequence from the reference catalog, or "" when the locus is unknown.
func Readiness(sub *models.Submission, chromosome string) []dErrors.Field {
	var gaps []dErrors.Field
	missing := func(path string) {
		gaps = append(gaps, dErrors.Field{Path: path, Reason: reasonMissingForPublish})
	}

	if sub.Disease == nil || strings.TrimSpace(sub.Disease.DiseaseName) == "" {
		missing("disease")
	}
	if sub.Confidence == "" {
		missing("confidence")
	}
	if len(sub.Publications) == 0 {
		missing("publications")
	}
	if len(sub.Panels) == 0 {
		missing("panel")
	}
	if sub.AllelicRequirement == "" {
		missing("allelic_requirement")
	}
	if sub.MolecularMechanism == nil || sub.MolecularMechanism.Name == "" {
		missing("molecular_mechanism")
	}
	if len(sub.VariantConsequences) == 0 {
		missing("variant_consequences")
	}
	if sub.MolecularMechanism != nil && strings.EqualFold(sub.MolecularMechanism.Support, "evidence") &&
		len(sub.MechanismEvidence) == 0 {
		gaps = append(gaps, dErrors.Field{
			Path:   "mechanism_evidence",
			Reason: "mechanism support is evidence but no evidence was provided",
		})
	}
	if reason := checkAllelicRequirement(sub.AllelicRequirement, chromosome); reason != "" {
		gaps = append(gaps, dErrors.Field{Path: "allelic_requirement", Reason: reason})
	}
	return gaps
}

// checkAllelicRequirement verifies the genotype is possible on the locus chromosome.
func checkAllelicRequirement(genotype, chromosome string) string {
	if genotype == "" || chromosome == "" {
		return ""
	}
	g := strings.ToLower(genotype)
	chr := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(chromosome), "chr"))

	switch {
	case strings.Contains(g, "autosomal"):
		if n, err := strconv.Atoi(chr); err != nil || n < 1 || n > 22 {
			return "autosomal genotype on non-autosomal chromosome " + chr
		}
	case strings.Contains(g, "mitochondrial"):
		if chr != "MT" {
			return "mitochondrial genotype on chromosome " + chr
		}
	case strings.Contains(g, "_par"):
		if chr != "X" && chr != "Y" {
			return "pseudoautosomal genotype on chromosome " + chr
		}
	case strings.Contains(g, "_x"):
		if chr != "X" {
			return "X-linked genotype on chromosome " + chr
		}
	}
	return ""
}
