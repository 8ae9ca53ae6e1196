// Package python holds the stack graph rules for Python.
//
// A module answers to every dotted suffix of its path, so "pkg/mod.py"
// under any root is importable as "mod", "pkg.mod" and so on up to the
// full absolute path. Relative imports resolve to the full path. This
// keeps the rules independent of where the package roots are.
package python

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

const (
	version      = "python/1"
	modulePrefix = "%py:"
	memberSymbol = "."
)

// Rules is the builder.RuleSet for Python.
type Rules struct{}

// New returns the Python rules.
func New() *Rules { return &Rules{} }

func (*Rules) Language() string          { return "python" }
func (*Rules) Version() string           { return version }
func (*Rules) Grammar() *sitter.Language { return python.GetLanguage() }

func (*Rules) Construct(ctx context.Context, t *builder.Tree, g *graph.FileGraph) error {
	b := &fileBuilder{t: t, g: g}
	b.module = g.AddScope(false)
	for _, key := range moduleKeys(t.Path) {
		pop := g.AddPop(modulePrefix + key)
		g.AddEdge(graph.RootID, pop, 0)
		g.AddEdge(pop, b.module, 0)
	}
	top := env{defs: b.module, refs: b.module, lookup: b.module}
	for _, c := range builder.NamedChildren(t.Root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.visit(c, top)
	}
	return nil
}

// pathParts splits a .py path into its module components.
func pathParts(file string) []string {
	p := strings.TrimSuffix(path.Clean(filepath.ToSlash(file)), ".py")
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	if n := len(parts); n > 0 && parts[n-1] == "__init__" {
		parts = parts[:n-1]
	}
	return parts
}

// moduleKeys returns every dotted suffix of the module path, shortest
// first.
func moduleKeys(file string) []string {
	parts := pathParts(file)
	keys := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		keys = append(keys, strings.Join(parts[i:], "."))
	}
	return keys
}

// relativeModule resolves a relative import ("." repeated dots times,
// followed by name) against file.
func relativeModule(file string, dots int, name string) string {
	parts := pathParts(path.Dir(filepath.ToSlash(file)) + "/x.py")
	parts = parts[:len(parts)-1]
	for i := 1; i < dots && len(parts) > 0; i++ {
		parts = parts[:len(parts)-1]
	}
	if name != "" {
		parts = append(parts, strings.Split(name, ".")...)
	}
	return strings.Join(parts, ".")
}
