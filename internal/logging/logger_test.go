package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Out: &buf})
	require.NoError(t, err)

	buf.Reset()
	log := l.Component("engine")
	log.Info().Int("segments", 3).Msg("Utterance started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "lipsync", entry["app"])
	assert.Equal(t, "Utterance started", entry["message"])
	assert.EqualValues(t, 3, entry["segments"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Out: &buf})
	require.NoError(t, err)

	z := l.Zerolog()
	z.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	z.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Level: "info"})
	require.NoError(t, err)

	z := l.Zerolog()
	z.Info().Msg("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
