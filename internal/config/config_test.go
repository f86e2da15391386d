package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "exponential", cfg.Engine.Easing)
	assert.Equal(t, 144, cfg.Avatar.FrameRate)
	assert.Equal(t, "/ws", cfg.Bridge.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lipsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
table:
  path: ./letters.yaml
  watch: true
engine:
  easing: linear
avatar:
  frame_rate: 60
bridge:
  enabled: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./letters.yaml", cfg.Table.Path)
	assert.True(t, cfg.Table.Watch)
	assert.Equal(t, "linear", cfg.Engine.Easing)
	assert.Equal(t, 60, cfg.Avatar.FrameRate)
	assert.False(t, cfg.Bridge.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, "hannah", cfg.Avatar.ID)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lipsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("avatar:\n  frame_rate: 60\n"), 0o644))

	t.Setenv("LIPSYNC_AVATAR_FRAME_RATE", "90")
	t.Setenv("LIPSYNC_ENGINE_EASING", "linear")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Avatar.FrameRate)
	assert.Equal(t, "linear", cfg.Engine.Easing)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lipsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("avatar:\n  frame_rate: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Bridge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bridge.Path = "ws"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Bridge.FrameRate = 0
	assert.Error(t, cfg.Validate())

	cfg.Bridge.Enabled = false
	assert.NoError(t, cfg.Validate())
}
