// Package builder turns one parsed source file into a stack graph fragment
// and the partial paths that the resolver stitches at query time.
package builder

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/stackgraphs/internal/graph"
)

// RuleSet constructs the graph of a single file for one language. A rule
// set must be deterministic and must not look at any other file.
type RuleSet interface {
	// Language is the canonical language name recorded on file records.
	Language() string
	// Version changes whenever the rules change in a way that affects the
	// graphs they produce.
	Version() string
	// Grammar is the tree-sitter grammar used to parse the file.
	Grammar() *sitter.Language
	// Construct adds nodes and edges for t to g.
	Construct(ctx context.Context, t *Tree, g *graph.FileGraph) error
}

// Source is one file to build.
type Source struct {
	Path     string
	Language string
	Content  []byte
}

// Limits bound partial path enumeration.
type Limits struct {
	MaxPathLength    int // nodes per path
	MaxPathsPerStart int
	MaxStack         int // local symbols pending on one path
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxPathLength: 256, MaxPathsPerStart: 4096, MaxStack: 32}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxPathLength <= 0 {
		l.MaxPathLength = d.MaxPathLength
	}
	if l.MaxPathsPerStart <= 0 {
		l.MaxPathsPerStart = d.MaxPathsPerStart
	}
	if l.MaxStack <= 0 {
		l.MaxStack = d.MaxStack
	}
	return l
}

// Stats describes a build.
type Stats struct {
	Nodes     int
	Edges     int
	Paths     int
	Truncated int // start nodes whose enumeration hit a limit
}

// Result is the output of a successful build.
type Result struct {
	Graph *graph.FileGraph
	Paths []graph.PartialPath
	Stats Stats
}

// Build parses src with the rule set's grammar, runs the rules and
// enumerates partial paths. Syntax errors are returned as *ParseError and
// rule failures as *RuleError.
func Build(ctx context.Context, src Source, rs RuleSet, limits Limits) (*Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(rs.Grammar())

	tree, err := parser.ParseCtx(ctx, nil, src.Content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ParseError{Path: src.Path, Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := firstError(root); bad != nil {
		return nil, newParseError(src.Path, src.Content, bad)
	}

	lang := src.Language
	if lang == "" {
		lang = rs.Language()
	}
	g := graph.NewFileGraph(src.Path, lang)
	t := &Tree{Path: src.Path, Source: src.Content, Root: root, Grammar: rs.Grammar()}
	if err := construct(ctx, rs, t, g); err != nil {
		var re *RuleError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &RuleError{Path: src.Path, Err: err}
	}
	if err := g.Validate(len(src.Content)); err != nil {
		return nil, &RuleError{Path: src.Path, Rule: "validate", Err: err}
	}

	paths, truncated := EnumeratePaths(g, limits)
	return &Result{
		Graph: g,
		Paths: paths,
		Stats: Stats{
			Nodes:     len(g.Nodes),
			Edges:     len(g.Edges),
			Paths:     len(paths),
			Truncated: truncated,
		},
	}, nil
}

// construct runs the rule set, turning a panic in rule code into an error
// attached to the file.
func construct(ctx context.Context, rs RuleSet, t *Tree, g *graph.FileGraph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuleError{Path: t.Path, Rule: rs.Language(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return rs.Construct(ctx, t, g)
}
