package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.With(String("dir", "/src")).Info("synced", Int("added", 2))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "synced", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "/src", entry["dir"])
	assert.EqualValues(t, 2, entry["added"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Format: "console", Output: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestNopLogger(t *testing.T) {
	log := NopLogger()
	log.With(String("k", "v")).Error("ignored")
	assert.NoError(t, log.Sync())
}

func TestNew_EmptyFieldsUseDefaults(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Output: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")

	def := DefaultConfig()
	assert.Equal(t, "info", def.Level)
	assert.Equal(t, "console", def.Format)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "INFO")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console encoder expected")
}
