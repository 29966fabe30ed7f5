package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"g2p/internal/lgd/models"
)

func TestExtractString(t *testing.T) {
	list := []any{"stable_id", "G2P00001", "to", models.ConfidenceStrong, 42, "ignored", "count", 3, "dangling"}

	tests := []struct {
		key  string
		want string
	}{
		{key: "stable_id", want: "G2P00001"},
		{key: "to", want: "strong"},
		{key: "count", want: ""},
		{key: "dangling", want: ""},
		{key: "missing", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractString(list, tt.key))
		})
	}
}
