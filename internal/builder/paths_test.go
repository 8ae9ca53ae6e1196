package builder

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stackgraphs/internal/graph"
)

func sp(line, col int) graph.Span {
	return graph.Span{
		Start:     graph.Point{Line: line, Column: col},
		End:       graph.Point{Line: line, Column: col + 1},
		StartByte: uint32(line*10 + col),
		EndByte:   uint32(line*10 + col + 1),
	}
}

func pathsFrom(paths []graph.PartialPath, start graph.NodeID) []graph.PartialPath {
	var out []graph.PartialPath
	for _, p := range paths {
		if p.Start == start {
			out = append(out, p)
		}
	}
	return out
}

func TestEnumeratePaths_LocalBinding(t *testing.T) {
	t.Parallel()

	g := graph.NewFileGraph("a.js", "javascript")
	scope := g.AddScope(false)
	ref := g.AddReference("x", sp(1, 0))
	def := g.AddDefinition("x", sp(0, 4))
	other := g.AddDefinition("y", sp(0, 8))
	g.AddEdge(ref, scope, 0)
	g.AddEdge(scope, def, 0)
	g.AddEdge(scope, other, 0)

	paths, truncated := EnumeratePaths(g, Limits{})
	assert.Zero(t, truncated)

	fromRef := pathsFrom(paths, ref)
	require.Len(t, fromRef, 1, "the mismatched pop of y is pruned")
	p := fromRef[0]
	assert.Equal(t, def, p.End)
	assert.Empty(t, p.Pre)
	assert.Empty(t, p.Post)
	assert.Equal(t, []graph.NodeID{ref, scope, def}, p.Nodes)
}

func TestEnumeratePaths_RootExportsAndImports(t *testing.T) {
	t.Parallel()

	g := graph.NewFileGraph("m.js", "javascript")
	exports := g.AddScope(false)
	mod := g.AddPop("%mod")
	foo := g.AddDefinition("foo", sp(0, 13))
	g.AddEdge(graph.RootID, mod, 0)
	g.AddEdge(mod, exports, 0)
	g.AddEdge(exports, foo, 0)

	imp := g.AddDefinition("bar", sp(1, 9))
	pushName := g.AddPush("baz")
	pushMod := g.AddPush("%other")
	g.AddEdge(imp, pushName, 0)
	g.AddEdge(pushName, pushMod, 1)
	g.AddEdge(pushMod, graph.RootID, 0)

	paths, _ := EnumeratePaths(g, Limits{})

	fromRoot := pathsFrom(paths, graph.RootID)
	require.Len(t, fromRoot, 1)
	assert.Equal(t, []graph.PreSymbol{{Symbol: "%mod"}, {Symbol: "foo"}}, fromRoot[0].Pre)
	assert.Equal(t, "%mod", fromRoot[0].LeadingSymbol())
	assert.Equal(t, foo, fromRoot[0].End)

	fromImport := pathsFrom(paths, imp)
	require.Len(t, fromImport, 1)
	p := fromImport[0]
	assert.Equal(t, graph.RootID, p.End)
	assert.Empty(t, p.Pre, "the start node's own pop belongs to the path that ends there")
	assert.Equal(t, []graph.PostSymbol{{Symbol: "baz"}, {Symbol: "%other"}}, p.Post)
	assert.Equal(t, 1, p.Precedence)
}

func TestEnumeratePaths_ScopedSymbols(t *testing.T) {
	t.Parallel()

	g := graph.NewFileGraph("s.js", "javascript")
	members := g.AddScope(false)
	ref := g.AddReference("m", sp(0, 0))
	push := g.AddPushScoped("()", members)
	pop := g.AddPopScoped("()")
	jump := g.AddJumpTo()
	g.AddEdge(ref, push, 0)
	g.AddEdge(push, pop, 0)
	g.AddEdge(pop, jump, 0)

	// A second entry pops a scoped symbol it did not push.
	entry := g.AddScope(true)
	pop2 := g.AddPopScoped("()")
	jump2 := g.AddJumpTo()
	g.AddEdge(entry, pop2, 0)
	g.AddEdge(pop2, jump2, 0)

	paths, _ := EnumeratePaths(g, Limits{})

	local := pathsFrom(paths, ref)
	require.Len(t, local, 1)
	assert.Equal(t, jump, local[0].End)
	assert.Equal(t, []graph.ScopeHandle{{Node: members}}, local[0].Scopes)
	assert.Equal(t, []graph.PostSymbol{{Symbol: "m"}}, local[0].Post)

	open := pathsFrom(paths, entry)
	require.Len(t, open, 1)
	assert.Equal(t, []graph.PreSymbol{{Symbol: "()", Scoped: true}}, open[0].Pre)
	assert.Equal(t, []graph.ScopeHandle{{Var: 1}}, open[0].Scopes)

	// members is exported by the scoped push and starts its own (empty) walk.
	n, _ := g.Node(members)
	assert.True(t, n.Exported)
}

func TestEnumeratePaths_CycleTerminates(t *testing.T) {
	t.Parallel()

	g := graph.NewFileGraph("c.py", "python")
	a := g.AddScope(false)
	b := g.AddScope(false)
	ref := g.AddReference("x", sp(0, 0))
	def := g.AddDefinition("x", sp(1, 0))
	g.AddEdge(ref, a, 0)
	g.AddEdge(a, b, 1)
	g.AddEdge(b, a, 1)
	g.AddEdge(b, def, 0)

	paths, truncated := EnumeratePaths(g, Limits{})
	assert.Zero(t, truncated)
	fromRef := pathsFrom(paths, ref)
	require.Len(t, fromRef, 1)
	assert.Equal(t, 1, fromRef[0].Precedence)
}

func TestEnumeratePaths_GrowingCycleIsTruncated(t *testing.T) {
	t.Parallel()

	g := graph.NewFileGraph("loop.js", "javascript")
	ref := g.AddReference("x", sp(0, 0))
	s := g.AddScope(false)
	push := g.AddPush(".")
	g.AddEdge(ref, s, 0)
	g.AddEdge(s, push, 0)
	g.AddEdge(push, s, 0)

	_, truncated := EnumeratePaths(g, Limits{MaxStack: 4})
	assert.Equal(t, 1, truncated)
}

func TestEnumeratePaths_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *graph.FileGraph {
		g := graph.NewFileGraph("d.js", "javascript")
		s := g.AddScope(false)
		for i := 0; i < 5; i++ {
			ref := g.AddReference("v", sp(i, 0))
			g.AddEdge(ref, s, 0)
			def := g.AddDefinition("v", sp(i, 4))
			g.AddEdge(s, def, i%2)
		}
		return g
	}

	first, _ := EnumeratePaths(build(), Limits{})
	second, _ := EnumeratePaths(build(), Limits{})
	assert.Len(t, first, 25)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("enumeration not deterministic (-first +second):\n%s", diff)
	}

	// Outgoing edge order: precedence 0 definitions come first.
	fromFirstRef := pathsFrom(first, 2)
	require.Len(t, fromFirstRef, 5)
	assert.Equal(t, 0, fromFirstRef[0].Precedence)
	assert.Equal(t, 0, fromFirstRef[2].Precedence)
	assert.Equal(t, 1, fromFirstRef[3].Precedence)
}
