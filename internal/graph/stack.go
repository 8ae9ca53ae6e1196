package graph

import (
	"slices"
	"strconv"
	"strings"
)

// ScopedSymbol is an entry of the symbol stack.
type ScopedSymbol struct {
	Symbol string
	Scope  *NodeRef
}

// SymbolStack holds what remains to be resolved; the top is the last
// element.
type SymbolStack []ScopedSymbol

// ScopeStack holds scopes pushed by scoped pops; the top is the last
// element.
type ScopeStack []NodeRef

// State is a configuration of the resolution automaton.
type State struct {
	Node    NodeRef
	Symbols SymbolStack
	Scopes  ScopeStack
}

// Empty reports whether both stacks are empty.
func (s State) Empty() bool {
	return len(s.Symbols) == 0 && len(s.Scopes) == 0
}

// Top returns the top symbol, or "" for an empty stack.
func (s State) Top() string {
	if len(s.Symbols) == 0 {
		return ""
	}
	return s.Symbols[len(s.Symbols)-1].Symbol
}

// Apply extends the state by the partial path p. It reports false when p
// does not start at the state's node or its precondition does not match
// the head of the symbol stack.
func (s State) Apply(p *PartialPath) (State, bool) {
	if p.StartRef() != s.Node {
		return State{}, false
	}
	n := len(s.Symbols)
	if n < len(p.Pre) {
		return State{}, false
	}
	vars := make([]NodeRef, len(p.Pre))
	for i, pre := range p.Pre {
		sym := s.Symbols[n-1-i]
		if sym.Symbol != pre.Symbol || (sym.Scope != nil) != pre.Scoped {
			return State{}, false
		}
		if pre.Scoped {
			vars[i] = *sym.Scope
		}
	}
	resolve := func(h ScopeHandle) NodeRef {
		if h.Var > 0 {
			return vars[h.Var-1]
		}
		return NodeRef{File: p.File, ID: h.Node}
	}

	next := State{Node: p.EndRef()}
	next.Symbols = make(SymbolStack, 0, n-len(p.Pre)+len(p.Post))
	next.Symbols = append(next.Symbols, s.Symbols[:n-len(p.Pre)]...)
	for _, post := range p.Post {
		ss := ScopedSymbol{Symbol: post.Symbol}
		if post.Scope != nil {
			r := resolve(*post.Scope)
			ss.Scope = &r
		}
		next.Symbols = append(next.Symbols, ss)
	}
	next.Scopes = slices.Clone(s.Scopes)
	for _, h := range p.Scopes {
		next.Scopes = append(next.Scopes, resolve(h))
	}
	return next, true
}

// Jump pops the top of the scope stack and moves to it.
func (s State) Jump() (State, bool) {
	if len(s.Scopes) == 0 {
		return State{}, false
	}
	top := s.Scopes[len(s.Scopes)-1]
	return State{
		Node:    top,
		Symbols: s.Symbols,
		Scopes:  s.Scopes[:len(s.Scopes)-1:len(s.Scopes)-1],
	}, true
}

// Key is a canonical rendering of the state used for cycle detection.
func (s State) Key() string {
	var b strings.Builder
	writeRef(&b, s.Node)
	b.WriteByte('|')
	for _, sym := range s.Symbols {
		b.WriteString(sym.Symbol)
		if sym.Scope != nil {
			b.WriteByte('@')
			writeRef(&b, *sym.Scope)
		}
		b.WriteByte(0x1f)
	}
	b.WriteByte('|')
	for _, sc := range s.Scopes {
		writeRef(&b, sc)
		b.WriteByte(0x1f)
	}
	return b.String()
}

func writeRef(b *strings.Builder, r NodeRef) {
	b.WriteString(r.File)
	b.WriteByte('#')
	b.WriteString(strconv.FormatUint(uint64(r.ID), 10))
}
