package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Service: "physio-api", Output: &buf})

	l.WithFields(map[string]interface{}{"worker_id": "w-1"}).Error(errors.New("boom"), "publish failed", "event_type", "therapy.created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "physio-api", entry["service"])
	assert.Equal(t, "w-1", entry["worker_id"])
	assert.Equal(t, "therapy.created", entry["event_type"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
