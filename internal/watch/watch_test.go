package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs a Watcher over dir and returns the channel its batches
// are sent to.
func startWatcher(t *testing.T, dir string) <-chan []string {
	t.Helper()
	w, err := New(Config{
		Roots:    []string{dir},
		Debounce: 100 * time.Millisecond,
		Filter:   func(path string) bool { return strings.HasSuffix(path, ".js") },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, paths []string) error {
			batches <- paths
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		w.Close()
	})
	return batches
}

func nextBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
		return nil
	}
}

func TestWatcher_DebouncesIntoOneBatch(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir)

	a, b := filepath.Join(dir, "a.js"), filepath.Join(dir, "b.js")
	require.NoError(t, os.WriteFile(b, []byte("const b = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("const a = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("const a = 2\n"), 0o644))

	assert.Equal(t, []string{a, b}, nextBatch(t, batches))
}

func TestWatcher_FiltersAndRemovals(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.js")
	require.NoError(t, os.WriteFile(keep, []byte("x\n"), 0o644))
	batches := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs\n"), 0o644))
	require.NoError(t, os.Remove(keep))

	assert.Equal(t, []string{keep}, nextBatch(t, batches))
}

func TestWatcher_NewDirectories(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir)

	sub := filepath.Join(dir, "pkg", "inner")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	file := filepath.Join(sub, "c.js")
	require.NoError(t, os.WriteFile(file, []byte("c\n"), 0o644))

	assert.Contains(t, nextBatch(t, batches), file)
}

func TestWatcher_SkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	batches := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "hook.js"), []byte("x\n"), 0o644))
	visible := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(visible, []byte("x\n"), 0o644))

	assert.Equal(t, []string{visible}, nextBatch(t, batches))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Roots: []string{filepath.Join(t.TempDir(), "missing")}})
	require.Error(t, err)
}

func TestWatcher_RelativeRootReportsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	batches := startWatcher(t, ".")

	require.NoError(t, os.WriteFile("rel.js", []byte("x\n"), 0o644))

	assert.Equal(t, []string{filepath.Join(dir, "rel.js")}, nextBatch(t, batches))
}
