package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapterWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.InfoLevel)

	log.Info("Optimizer", "diameter fixed", map[string]interface{}{"diameter": 4})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Optimizer", entry["component"])
	assert.Equal(t, "diameter fixed", entry["message"])
	assert.Equal(t, float64(4), entry["diameter"])
}

func TestZerologAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.WarnLevel)

	log.Debug("Batch", "skipped", nil)
	log.Info("Batch", "skipped", nil)
	assert.Zero(t, buf.Len())

	log.Error("Batch", errors.New("boom"), map[string]interface{}{"file": "a.tif"})
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "a.tif")
}
