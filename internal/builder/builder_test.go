package builder

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stackgraphs/internal/graph"
)

// identRules binds every declarator name in a single module scope and
// references every other identifier against it.
type identRules struct {
	fail    error
	panics  bool
	badSpan bool
}

func (identRules) Language() string          { return "javascript" }
func (identRules) Version() string           { return "test/1" }
func (identRules) Grammar() *sitter.Language { return javascript.GetLanguage() }

func (r identRules) Construct(_ context.Context, t *Tree, g *graph.FileGraph) error {
	if r.fail != nil {
		return r.fail
	}
	if r.panics {
		var n *sitter.Node
		_ = n.Type()
	}
	scope := g.AddScope(false)
	if r.badSpan {
		g.AddReference("x", graph.Span{StartByte: 0, EndByte: uint32(len(t.Source) + 10)})
		return nil
	}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "variable_declarator" {
			name := n.ChildByFieldName("name")
			def := g.AddDefinition(t.Text(name), SpanOf(name))
			g.AddEdge(scope, def, 0)
			if v := n.ChildByFieldName("value"); v != nil {
				walk(v)
			}
			return
		}
		if n.Type() == "identifier" {
			ref := g.AddReference(t.Text(n), SpanOf(n))
			g.AddEdge(ref, scope, 0)
		}
		for _, c := range NamedChildren(n) {
			walk(c)
		}
	}
	walk(t.Root)
	return nil
}

func TestBuild_ProducesGraphAndPaths(t *testing.T) {
	t.Parallel()

	src := Source{Path: "/p/a.js", Content: []byte("const a = 1;\nconst b = a;\n")}
	res, err := Build(context.Background(), src, identRules{}, Limits{})
	require.NoError(t, err)

	assert.Equal(t, "javascript", res.Graph.Language)
	assert.Equal(t, 4, res.Stats.Nodes) // scope, a, b, ref a
	require.Len(t, res.Paths, 1)
	p := res.Paths[0]
	ref, _ := res.Graph.Node(p.Start)
	def, _ := res.Graph.Node(p.End)
	assert.Equal(t, graph.KindReference, ref.Kind)
	assert.Equal(t, graph.Position{Path: "/p/a.js", Line: 1, Column: 10}, ref.Span.Position("/p/a.js"))
	assert.Equal(t, graph.Position{Path: "/p/a.js", Line: 0, Column: 6}, def.Span.Position("/p/a.js"))
}

func TestBuild_ParseError(t *testing.T) {
	t.Parallel()

	src := Source{Path: "bad.js", Content: []byte("const = ;\n")}
	_, err := Build(context.Background(), src, identRules{}, Limits{})
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
	assert.Equal(t, "bad.js", pe.Path)
	assert.Equal(t, 0, pe.Line)
	assert.NotEmpty(t, pe.Message)
	assert.Contains(t, err.Error(), "parse error in bad.js")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 40))
	// "é" is two bytes; a cut at 4 would split the second one.
	got := truncate("aéé", 4)
	assert.Equal(t, "aé...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "...", truncate("€", 2))
}

func TestBuild_RuleErrors(t *testing.T) {
	t.Parallel()

	src := Source{Path: "ok.js", Content: []byte("let x = 1;\n")}

	t.Run("returned", func(t *testing.T) {
		cause := errors.New("no such capture")
		_, err := Build(context.Background(), src, identRules{fail: cause}, Limits{})
		var re *RuleError
		require.True(t, errors.As(err, &re))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("panic", func(t *testing.T) {
		_, err := Build(context.Background(), src, identRules{panics: true}, Limits{})
		var re *RuleError
		require.True(t, errors.As(err, &re))
		assert.Contains(t, err.Error(), "panic")
	})

	t.Run("invalid graph", func(t *testing.T) {
		_, err := Build(context.Background(), src, identRules{badSpan: true}, Limits{})
		var re *RuleError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "validate", re.Rule)
	})
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	src := Source{Path: "d.js", Content: []byte("var a = 1, b = a;\nvar c = b + a;\n")}
	first, err := Build(context.Background(), src, identRules{}, Limits{})
	require.NoError(t, err)
	second, err := Build(context.Background(), src, identRules{}, Limits{})
	require.NoError(t, err)

	assert.Equal(t, first.Graph.Nodes, second.Graph.Nodes)
	assert.Equal(t, first.Graph.Edges, second.Graph.Edges)
	assert.Equal(t, first.Paths, second.Paths)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(identRules{}, ".js", ".JSX")

	rs, ok := r.ForFile("/x/App.JSX")
	require.True(t, ok)
	assert.Equal(t, "javascript", rs.Language())

	_, ok = r.ForFile("README.md")
	assert.False(t, ok)

	assert.Equal(t, []string{"javascript"}, r.Languages())
	assert.Equal(t, []string{".js", ".jsx"}, r.Extensions())

	_, ok = r.ForLanguage("javascript")
	assert.True(t, ok)

	assert.Empty(t, r.Restrict("python").Extensions())
	assert.Same(t, r, r.Restrict())
}
