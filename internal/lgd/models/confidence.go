package models

import "strings"

// Confidence is the curator-assigned evidence strength of a record.
type Confidence string

const (
	ConfidenceRefuted    Confidence = "refuted"
	ConfidenceLimited    Confidence = "limited"
	ConfidenceModerate   Confidence = "moderate"
	ConfidenceStrong     Confidence = "strong"
	ConfidenceDefinitive Confidence = "definitive"
)

// ConfidenceLevels lists every level from weakest to strongest.
var ConfidenceLevels = []Confidence{
	ConfidenceRefuted,
	ConfidenceLimited,
	ConfidenceModerate,
	ConfidenceStrong,
	ConfidenceDefinitive,
}

// ParseConfidence normalizes a level name. ok is false for unknown values.
func ParseConfidence(s string) (Confidence, bool) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsValid()
}

func (c Confidence) IsValid() bool {
	return c.Rank() >= 0
}

// Rank orders levels; -1 for unknown values.
func (c Confidence) Rank() int {
	for i, l := range ConfidenceLevels {
		if l == c {
			return i
		}
	}
	return -1
}

func (c Confidence) String() string {
	return string(c)
}
