package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_ApplyConsumesAndPushes(t *testing.T) {
	t.Parallel()

	p := &PartialPath{
		File:  "b.js",
		Start: RootID,
		End:   4,
		Pre:   []PreSymbol{{Symbol: "%mod"}, {Symbol: "foo"}},
		Post:  []PostSymbol{{Symbol: "bar"}},
	}
	s := State{Node: RootRef, Symbols: SymbolStack{{Symbol: "rest"}, {Symbol: "foo"}, {Symbol: "%mod"}}}

	next, ok := s.Apply(p)
	require.True(t, ok)
	assert.Equal(t, NodeRef{File: "b.js", ID: 4}, next.Node)
	assert.Equal(t, SymbolStack{{Symbol: "rest"}, {Symbol: "bar"}}, next.Symbols)
	assert.Empty(t, next.Scopes)

	// The input state is not mutated.
	assert.Len(t, s.Symbols, 3)
}

func TestState_ApplyRejects(t *testing.T) {
	t.Parallel()

	p := &PartialPath{File: "a", Start: 1, End: 2, Pre: []PreSymbol{{Symbol: "x"}}}

	_, ok := State{Node: NodeRef{File: "a", ID: 9}, Symbols: SymbolStack{{Symbol: "x"}}}.Apply(p)
	assert.False(t, ok, "wrong start node")

	_, ok = State{Node: NodeRef{File: "a", ID: 1}}.Apply(p)
	assert.False(t, ok, "stack too short")

	_, ok = State{Node: NodeRef{File: "a", ID: 1}, Symbols: SymbolStack{{Symbol: "y"}}}.Apply(p)
	assert.False(t, ok, "symbol mismatch")

	scope := NodeRef{File: "z", ID: 3}
	_, ok = State{Node: NodeRef{File: "a", ID: 1}, Symbols: SymbolStack{{Symbol: "x", Scope: &scope}}}.Apply(p)
	assert.False(t, ok, "plain pop of a scoped symbol")
}

func TestState_ApplyBindsScopeVariables(t *testing.T) {
	t.Parallel()

	attached := NodeRef{File: "lib.js", ID: 7}
	p := &PartialPath{
		File:   "main.js",
		Start:  2,
		End:    5,
		Pre:    []PreSymbol{{Symbol: "()", Scoped: true}},
		Post:   []PostSymbol{{Symbol: "x", Scope: &ScopeHandle{Node: 3}}},
		Scopes: []ScopeHandle{{Var: 1}},
	}
	s := State{Node: NodeRef{File: "main.js", ID: 2}, Symbols: SymbolStack{{Symbol: "()", Scope: &attached}}}

	next, ok := s.Apply(p)
	require.True(t, ok)
	require.Len(t, next.Symbols, 1)
	assert.Equal(t, NodeRef{File: "main.js", ID: 3}, *next.Symbols[0].Scope)
	assert.Equal(t, ScopeStack{attached}, next.Scopes)

	jumped, ok := next.Jump()
	require.True(t, ok)
	assert.Equal(t, attached, jumped.Node)
	assert.Empty(t, jumped.Scopes)

	_, ok = jumped.Jump()
	assert.False(t, ok)
}

func TestState_Key(t *testing.T) {
	t.Parallel()

	a := State{Node: NodeRef{File: "f", ID: 1}, Symbols: SymbolStack{{Symbol: "x"}}}
	b := State{Node: NodeRef{File: "f", ID: 1}, Symbols: SymbolStack{{Symbol: "x"}}}
	c := State{Node: NodeRef{File: "f", ID: 1}, Symbols: SymbolStack{{Symbol: "x"}, {Symbol: "."}}}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, ".", c.Top())
	assert.False(t, c.Empty())
	assert.True(t, State{}.Empty())
}

func TestPartialPath_String(t *testing.T) {
	t.Parallel()

	p := &PartialPath{
		File:       "a.js",
		Start:      RootID,
		End:        3,
		Pre:        []PreSymbol{{Symbol: "m"}, {Symbol: "x", Scoped: true}},
		Post:       []PostSymbol{{Symbol: "y", Scope: &ScopeHandle{Var: 2}}},
		Precedence: 1,
	}
	assert.Equal(t, "[root] -> a.js#3 [m x/$2] => [y/$2] prec=1", p.String())
	assert.Equal(t, "m", p.LeadingSymbol())
	assert.Equal(t, "", (&PartialPath{}).LeadingSymbol())
}
