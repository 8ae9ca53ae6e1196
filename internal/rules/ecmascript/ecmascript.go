// Package ecmascript holds the stack graph rules for JavaScript, TypeScript
// and TSX. The three dialects share one construction and differ in grammar
// and in the TypeScript-only declarations they recognise.
package ecmascript

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

const version = "ecmascript/1"

const (
	modulePrefix  = "%mod:"
	packagePrefix = "%pkg:"
	memberSymbol  = "."
	defaultSymbol = "default"
)

// Extensions that are stripped when computing module keys, so that
// "./module", "./module.js" and "./module.ts" name the same module.
var moduleExtensions = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".mts": true, ".cts": true,
}

// Rules is a builder.RuleSet for one ECMAScript dialect.
type Rules struct {
	language string
	grammar  func() *sitter.Language
	typed    bool
}

// JavaScript returns the rules for .js, .jsx, .mjs and .cjs files.
func JavaScript() *Rules {
	return &Rules{language: "javascript", grammar: javascript.GetLanguage}
}

// TypeScript returns the rules for .ts files.
func TypeScript() *Rules {
	return &Rules{language: "typescript", grammar: typescript.GetLanguage, typed: true}
}

// TSX returns the rules for .tsx files. They record the language as
// typescript.
func TSX() *Rules {
	return &Rules{language: "typescript", grammar: tsx.GetLanguage, typed: true}
}

func (r *Rules) Language() string          { return r.language }
func (r *Rules) Version() string           { return version }
func (r *Rules) Grammar() *sitter.Language { return r.grammar() }

// Construct builds the module graph of one file.
func (r *Rules) Construct(ctx context.Context, t *builder.Tree, g *graph.FileGraph) error {
	b := &fileBuilder{t: t, g: g, typed: r.typed}
	b.module = g.AddScope(false)
	b.exports = g.AddScope(false)
	for _, key := range ownModuleKeys(t.Path) {
		pop := g.AddPop(modulePrefix + key)
		g.AddEdge(graph.RootID, pop, 0)
		g.AddEdge(pop, b.exports, 0)
	}
	top := env{block: b.module, fn: b.module}
	for _, c := range builder.NamedChildren(t.Root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.visit(c, top)
	}
	return nil
}

// moduleKey normalises a path into the key a module is imported by.
func moduleKey(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	if ext := path.Ext(p); moduleExtensions[ext] {
		p = strings.TrimSuffix(p, ext)
	}
	return p
}

// ownModuleKeys returns the keys a file answers to. index files also
// answer to their directory.
func ownModuleKeys(file string) []string {
	key := moduleKey(file)
	keys := []string{key}
	if path.Base(key) == "index" {
		keys = append(keys, path.Dir(key))
	}
	return keys
}

// moduleSymbol returns the symbol an import specifier resolves through.
// Relative and absolute specifiers are resolved against the importing
// file; bare specifiers name packages.
func moduleSymbol(from, spec string) string {
	if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		target := spec
		if !path.IsAbs(spec) {
			target = path.Join(path.Dir(filepath.ToSlash(from)), spec)
		}
		return modulePrefix + moduleKey(target)
	}
	return packagePrefix + spec
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
