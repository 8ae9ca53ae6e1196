package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(line, col, width int, startByte uint32) Span {
	return Span{
		Start:     Point{Line: line, Column: col},
		End:       Point{Line: line, Column: col + width},
		StartByte: startByte,
		EndByte:   startByte + uint32(width),
	}
}

func TestPosition_StringAndOrder(t *testing.T) {
	t.Parallel()

	p := Position{Path: "a", Line: 1, Column: 2}
	assert.Equal(t, "a:1:2", p.String())
	assert.Equal(t, `Position(path="a", line=1, column=2)`, p.GoString())

	assert.Equal(t, 0, p.Compare(Position{Path: "a", Line: 1, Column: 2}))
	assert.Equal(t, -1, p.Compare(Position{Path: "a", Line: 1, Column: 3}))
	assert.Equal(t, 1, p.Compare(Position{Path: "a", Line: 0, Column: 9}))
	assert.Equal(t, -1, p.Compare(Position{Path: "b", Line: 0, Column: 0}))
}

func TestSpan_Contains(t *testing.T) {
	t.Parallel()

	s := span(2, 4, 3, 10)
	assert.True(t, s.Contains(Point{Line: 2, Column: 4}))
	assert.True(t, s.Contains(Point{Line: 2, Column: 6}))
	assert.False(t, s.Contains(Point{Line: 2, Column: 7}))
	assert.False(t, s.Contains(Point{Line: 2, Column: 3}))
	assert.False(t, s.Contains(Point{Line: 1, Column: 5}))

	empty := Span{Start: Point{Line: 1, Column: 1}, End: Point{Line: 1, Column: 1}}
	assert.True(t, empty.Contains(Point{Line: 1, Column: 1}))
	assert.False(t, empty.Contains(Point{Line: 1, Column: 2}))
}

func TestNodeKind_RoundTrip(t *testing.T) {
	t.Parallel()

	for k := KindRoot; k <= KindJumpTo; k++ {
		got, err := ParseNodeKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseNodeKind("bogus")
	assert.Error(t, err)
}

func TestFileGraph_IDsAndOutgoingOrder(t *testing.T) {
	t.Parallel()

	g := NewFileGraph("/src/a.js", "javascript")
	s := g.AddScope(false)
	d1 := g.AddDefinition("x", span(0, 0, 1, 0))
	d2 := g.AddDefinition("x", span(1, 0, 1, 4))
	d3 := g.AddDefinition("x", span(2, 0, 1, 8))

	assert.Equal(t, NodeID(1), s)
	assert.Equal(t, NodeID(4), d3)

	g.AddEdge(s, d1, 2)
	g.AddEdge(s, d2, 0)
	g.AddEdge(s, d3, 2)

	out := g.Outgoing(s)
	require.Len(t, out, 3)
	assert.Equal(t, d2, out[0].To)
	assert.Equal(t, d1, out[1].To)
	assert.Equal(t, d3, out[2].To)

	root, ok := g.Node(RootID)
	require.True(t, ok)
	assert.Equal(t, KindRoot, root.Kind)

	_, ok = g.Node(99)
	assert.False(t, ok)
}

func TestFileGraph_PushScopedExportsScope(t *testing.T) {
	t.Parallel()

	g := NewFileGraph("f", "x")
	members := g.AddScope(false)
	g.AddPushScoped("call", members)

	n, ok := g.Node(members)
	require.True(t, ok)
	assert.True(t, n.Exported)
}

func TestFileGraph_Validate(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		g := NewFileGraph("f", "x")
		s := g.AddScope(false)
		d := g.AddDefinition("a", span(0, 0, 1, 0))
		g.AddEdge(s, d, 0)
		g.AddEdge(RootID, s, 0)
		assert.NoError(t, g.Validate(1))
	})

	t.Run("span beyond content", func(t *testing.T) {
		g := NewFileGraph("f", "x")
		g.AddReference("a", span(0, 0, 5, 0))
		assert.ErrorContains(t, g.Validate(3), "outside file")
	})

	t.Run("unknown edge target", func(t *testing.T) {
		g := NewFileGraph("f", "x")
		s := g.AddScope(false)
		g.AddEdge(s, 7, 0)
		assert.ErrorContains(t, g.Validate(0), "unknown target")
	})

	t.Run("missing symbol", func(t *testing.T) {
		g := NewFileGraph("f", "x")
		g.AddPush("")
		assert.ErrorContains(t, g.Validate(0), "without symbol")
	})

	t.Run("negative precedence", func(t *testing.T) {
		g := NewFileGraph("f", "x")
		a := g.AddScope(false)
		b := g.AddScope(false)
		g.AddEdge(a, b, -1)
		assert.ErrorContains(t, g.Validate(0), "negative precedence")
	})
}

func TestNodeRef(t *testing.T) {
	t.Parallel()

	assert.True(t, RootRef.IsRoot())
	assert.Equal(t, "[root]", RootRef.String())

	g := NewFileGraph("m.py", "python")
	id := g.AddScope(true)
	assert.Equal(t, NodeRef{File: "m.py", ID: id}, g.Ref(id))
	assert.Equal(t, RootRef, g.Ref(RootID))
	assert.Equal(t, "m.py#1", g.Ref(id).String())
}
