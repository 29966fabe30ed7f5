// Package strings normalizes curator supplied string lists.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops blanks and exact repeats,
// keeping first-seen order.
//
//	DedupeAndTrim([]string{" Skeletal ", "DD", "Skeletal", ""})
//	// []string{"Skeletal", "DD"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower also lowercases, so repeats differing only in case collapse.
//
//	DedupeAndTrimLower([]string{"Typically Mosaic", "typically mosaic "})
//	// []string{"typically mosaic"}
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := norm(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
