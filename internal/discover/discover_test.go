package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byExt(path string) (string, bool) {
	switch filepath.Ext(path) {
	case ".js":
		return "javascript", true
	case ".py":
		return "python", true
	}
	return "", false
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func paths(root string, files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			rel = f.Path
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestWalk_LexicalOrderAndFilters(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"b.js":                  "",
		"a.py":                  "",
		"notes.txt":             "",
		"src/z.js":              "",
		"src/m/x.py":            "",
		"node_modules/lib/i.js": "",
		".hidden/h.js":          "",
		"__pycache__/c.py":      "",
		"vendor/v.py":           "",
	})
	w, err := New(byExt)
	require.NoError(t, err)

	files, err := w.Walk(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.js", "src/m/x.py", "src/z.js"}, paths(root, files))
	assert.Equal(t, "python", files[0].Language)
	assert.True(t, filepath.IsAbs(files[0].Path))
}

func TestWalk_Gitignore(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		".gitignore":     "build/\n*.gen.js\n",
		"app.js":         "",
		"app.gen.js":     "",
		"build/out.js":   "",
		"pkg/.gitignore": "local.py\n",
		"pkg/local.py":   "",
		"pkg/kept.py":    "",
		"other/local.py": "",
	})

	w, err := New(byExt)
	require.NoError(t, err)
	files, err := w.Walk(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js", "other/local.py", "pkg/kept.py"}, paths(root, files))

	w, err = New(byExt, WithGitignore(false))
	require.NoError(t, err)
	files, err = w.Walk(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.gen.js", "app.js", "build/out.js", "other/local.py", "pkg/kept.py", "pkg/local.py"}, paths(root, files))
}

func TestWalk_Excludes(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"keep.js":          "",
		"gen/a.js":         "",
		"deep/x/test_a.py": "",
		"deep/x/b.py":      "",
	})
	w, err := New(byExt, WithExcludes("gen", "**/test_*.py"))
	require.NoError(t, err)

	files, err := w.Walk(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{"deep/x/b.py", "keep.js"}, paths(root, files))
}

func TestWalk_FileRootsAndDedupe(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.js":     "",
		"sub/b.js": "",
	})
	w, err := New(byExt)
	require.NoError(t, err)

	roots := []string{
		filepath.Join(root, "sub", "b.js"),
		root,
		filepath.Join(root, "sub") + string(filepath.Separator) + ".",
	}
	files, err := w.Walk(context.Background(), roots)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/b.js", "a.js"}, paths(root, files))
}

func TestWalk_Errors(t *testing.T) {
	t.Parallel()

	w, err := New(byExt)
	require.NoError(t, err)
	_, err = w.Walk(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "stat root")

	_, err = New(byExt, WithExcludes("[unterminated"))
	assert.ErrorContains(t, err, "invalid exclude")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Walk(ctx, []string{writeTree(t, map[string]string{"a.js": ""})})
	assert.ErrorIs(t, err, context.Canceled)
}
