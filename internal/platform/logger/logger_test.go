package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProdLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "prod").Info("started", "addr", ":8080")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "started", line["msg"])
	assert.Equal(t, ":8080", line["addr"])
}

func TestDevLogsDebugText(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "dev").Debug("probe")
	assert.Contains(t, buf.String(), "msg=probe")

	buf.Reset()
	NewWithWriter(&buf, "test").Debug("probe")
	assert.Empty(t, buf.String())
}
