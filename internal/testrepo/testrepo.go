// Package testrepo builds test fixtures from a single annotated string.
//
// Files are introduced by a separator line ";---path---". A line holding
// only spaces and a marker "^{name}" records the column of the caret on
// the line above it as a named position, and is removed from the file:
//
//	;---main.py---
//	from module import thing
//	                   ^{import}
//	;---module.py---
//	thing = 1
//	^{def}
package testrepo

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
	"github.com/jward/stackgraphs/internal/stitch"
)

var (
	separatorRe = regexp.MustCompile(`\n;---([a-zA-Z0-9_./-]+)---\n`)
	markerRe    = regexp.MustCompile(`( *)\^\{([a-zA-Z0-9_]+)\}(?:\n|$)`)
)

// File is one fixture file with its markers removed.
type File struct {
	Path    string
	Content string
}

// Repo is a parsed fixture. Positions use the fixture-relative paths.
type Repo struct {
	Files     []File
	Positions map[string]graph.Position
}

// Parse splits s into files and positions. The first separator must be
// preceded by a newline.
func Parse(s string) (*Repo, error) {
	matches := separatorRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("testrepo: no file separators")
	}
	repo := &Repo{Positions: make(map[string]graph.Position)}
	seen := make(map[string]bool, len(matches))
	for i, m := range matches {
		end := len(s)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		p := s[m[2]:m[3]]
		if seen[p] {
			return nil, fmt.Errorf("testrepo: duplicate file %q", p)
		}
		seen[p] = true
		content, err := extractPositions(p, s[m[1]:end], repo.Positions)
		if err != nil {
			return nil, err
		}
		repo.Files = append(repo.Files, File{Path: p, Content: content})
	}
	return repo, nil
}

// MustParse is Parse for tests.
func MustParse(t testing.TB, s string) *Repo {
	t.Helper()
	r, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// extractPositions removes markers from content one at a time so each
// line number counts only the real lines above it.
func extractPositions(file, content string, into map[string]graph.Position) (string, error) {
	for {
		m := markerRe.FindStringSubmatchIndex(content)
		if m == nil {
			return content, nil
		}
		name := content[m[4]:m[5]]
		if _, dup := into[name]; dup {
			return "", fmt.Errorf("testrepo: duplicate position %q", name)
		}
		if m[0] > 0 && content[m[0]-1] != '\n' {
			return "", fmt.Errorf("testrepo: marker %q must be on its own line", name)
		}
		line := strings.Count(content[:m[0]], "\n") - 1
		if line < 0 {
			return "", fmt.Errorf("testrepo: marker %q has no line above it", name)
		}
		into[name] = graph.Position{Path: file, Line: line, Column: m[3] - m[2]}
		content = content[:m[0]] + content[m[1]:]
	}
}

// Pos returns the named position with its path joined to root.
func (r *Repo) Pos(root, name string) graph.Position {
	p, ok := r.Positions[name]
	if !ok {
		panic(fmt.Sprintf("testrepo: no position %q", name))
	}
	p.Path = join(root, p.Path)
	return p
}

// Names returns the position names, sorted.
func (r *Repo) Names() []string {
	names := make([]string, 0, len(r.Positions))
	for n := range r.Positions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Write creates the files under dir.
func (r *Repo) Write(dir string) error {
	for _, f := range r.Files {
		full := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("testrepo: %w", err)
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("testrepo: %w", err)
		}
	}
	return nil
}

// WriteTemp writes the files to a fresh temporary directory and returns it.
func (r *Repo) WriteTemp(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	if err := r.Write(dir); err != nil {
		t.Fatal(err)
	}
	return dir
}

// Build builds every file, with paths joined to root, and loads the results
// into a Memory. Files without a rule set are skipped.
func (r *Repo) Build(ctx context.Context, root string, rules func(path string) (builder.RuleSet, bool)) (*stitch.Memory, error) {
	m := stitch.NewMemory()
	for _, f := range r.Files {
		p := join(root, f.Path)
		rs, ok := rules(p)
		if !ok {
			continue
		}
		res, err := builder.Build(ctx, builder.Source{Path: p, Content: []byte(f.Content)}, rs, builder.DefaultLimits())
		if err != nil {
			return nil, err
		}
		m.Add(res.Graph, res.Paths)
	}
	return m, nil
}

// Definitions resolves the reference at pos against m. A position with no
// reference yields nil.
func Definitions(ctx context.Context, m *stitch.Memory, pos graph.Position) ([]graph.Position, error) {
	ref, ok := m.ReferenceAt(pos)
	if !ok {
		return nil, nil
	}
	results, _, err := stitch.Resolve(ctx, m, ref, stitch.DefaultOptions())
	if err != nil {
		return nil, err
	}
	out := make([]graph.Position, 0, len(results))
	for _, res := range results {
		out = append(out, res.Position())
	}
	return out, nil
}

func join(root, p string) string {
	if root == "" {
		return p
	}
	return path.Join(filepath.ToSlash(root), p)
}
