package stackgraphs

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/stackgraphs/internal/testrepo"
)

// newTestIndexer creates an Indexer backed by a temp DB. Logs go to a
// buffer so failures can print them.
func newTestIndexer(t *testing.T, opts ...Option) *Indexer {
	t.Helper()
	var logs bytes.Buffer
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))}, opts...)
	ix, err := NewIndexer(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ix.Close()
		if t.Failed() {
			t.Logf("indexer log:\n%s", logs.String())
		}
	})
	return ix
}

// fixture is a virtual-file repo written to disk.
type fixture struct {
	repo *testrepo.Repo
	dir  string
}

func writeFixture(t *testing.T, s string) *fixture {
	t.Helper()
	repo := testrepo.MustParse(t, s)
	return &fixture{repo: repo, dir: repo.WriteTemp(t)}
}

func (f *fixture) pos(name string) Position {
	return f.repo.Pos(f.dir, name)
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.dir, filepath.FromSlash(rel))
}

// names maps positions back to fixture marker names. Unknown positions
// are rendered as path:line:col.
func (f *fixture) names(got []Position) []string {
	byPos := make(map[Position]string)
	for _, n := range f.repo.Names() {
		byPos[f.pos(n)] = n
	}
	out := make([]string, 0, len(got))
	for _, p := range got {
		if n, ok := byPos[p]; ok {
			out = append(out, n)
		} else {
			out = append(out, p.String())
		}
	}
	return out
}

// definitions resolves the named marker through q.
func (f *fixture) definitions(t *testing.T, q *Querier, at string) []string {
	t.Helper()
	got, err := q.Definitions(context.Background(), f.pos(at))
	require.NoError(t, err)
	return f.names(got)
}
