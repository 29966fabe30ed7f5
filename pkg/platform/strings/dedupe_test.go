package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  DD ", "Eye  "}, expected: []string{"DD", "Eye"}},
		{name: "keeps first-seen order", input: []string{"Skin", "DD", "Skin", "Eye", "DD"}, expected: []string{"Skin", "DD", "Eye"}},
		{name: "case is significant", input: []string{"Cardiac", "cardiac"}, expected: []string{"Cardiac", "cardiac"}},
		{name: "drops blanks", input: []string{"", "   ", "Cancer"}, expected: []string{"Cancer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "collapses case variants", input: []string{"Typically Mosaic", " typically mosaic", "RESTRICTED MUTATION SET"},
			expected: []string{"typically mosaic", "restricted mutation set"}},
		{name: "only blanks", input: []string{" ", ""}, expected: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
