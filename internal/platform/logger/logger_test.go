package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/platform/config"
)

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "json"})

	log.Info("hidden")
	log.Warn("shown", "range_id", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "folio", line["service"])
	assert.EqualValues(t, 3, line["range_id"])
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "text"})

	log.Debug("allocated", "number", 7)
	assert.Contains(t, buf.String(), "msg=allocated")
	assert.Contains(t, buf.String(), "number=7")
}
