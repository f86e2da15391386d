package weights

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	w, err := NewWatcher(path, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	updated := strings.Replace(sampleJSON, `"letters": ["O"]`, `"letters": ["O", "U"]`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case table := <-w.Reloads():
		_, err := table.Get("U")
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_IgnoresBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	w, err := NewWatcher(path, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"allBlendShapes": [`), 0o644))

	select {
	case table := <-w.Reloads():
		t.Fatalf("unexpected reload of broken table: %v", table.Symbols())
	case <-time.After(300 * time.Millisecond):
	}
}
