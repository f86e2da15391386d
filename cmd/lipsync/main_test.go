package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexlipsync/internal/config"
	"github.com/normanking/cortexlipsync/internal/logging"
	"github.com/normanking/cortexlipsync/internal/segment"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSegmentCommand(t *testing.T) {
	out, err := execute(t, "segment", "HI###0.5")
	require.NoError(t, err)

	assert.Contains(t, out, "H")
	assert.Contains(t, out, "NONE")
	assert.Contains(t, out, "total 500.00 ms, 3 segments")
}

func TestSegmentCommand_BadPayload(t *testing.T) {
	_, err := execute(t, "segment", "HELLO WORLD###0.5")
	assert.ErrorIs(t, err, segment.ErrInput)
}

func TestTableCommand_Default(t *testing.T) {
	out, err := execute(t, "table")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasSuffix(lines[0], "symbols"))
	assert.Contains(t, lines, "NONE")
	assert.Contains(t, lines, "TH")
}

func TestTableCommand_FileVerbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
allBlendShapes: [jawOpen, mouthClose]
data:
  - letters: [A]
    shapeData:
      - {name: jawOpen, weight: 40}
`), 0o644))

	out, err := execute(t, "table", "-v", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 blend shapes, 2 symbols")
	assert.Contains(t, out, "A: jawOpen=40")
}

func testHost(t *testing.T) *host {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Bridge.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Avatar.FrameRate = 200

	logger, err := logging.New(logging.Config{Out: io.Discard})
	require.NoError(t, err)

	h, err := newHost(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(h.close)
	return h
}

func TestHost_PlaysUtteranceToCompletion(t *testing.T) {
	h := testHost(t)
	assert.Nil(t, h.httpServer())

	require.NoError(t, h.avatar.Speak("MA###0.05"))
	require.True(t, h.avatar.IsSpeaking())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, h.run(ctx))

	assert.False(t, h.avatar.IsSpeaking())
	for name, v := range h.sink.Snapshot() {
		assert.InDelta(t, 0, v, 1e-3, name)
	}
}

func TestNewHost_BadEasing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.Easing = "bouncy"

	logger, err := logging.New(logging.Config{Out: io.Discard})
	require.NoError(t, err)

	_, err = newHost(cfg, logger)
	assert.Error(t, err)
}
