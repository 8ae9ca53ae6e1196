// Package graph defines the stack graph vocabulary: nodes, edges, partial
// paths and the symbol/scope stack state the resolver walks.
package graph

import (
	"fmt"
	"slices"
)

// NodeID identifies a node within one file graph. IDs are dense and start
// at 1; RootID is reserved for the shared root node.
type NodeID uint32

// RootID is the ID of the root node that all file graphs share.
const RootID NodeID = 0

// NodeKind enumerates the node variants.
type NodeKind uint8

const (
	KindRoot NodeKind = iota
	KindScope
	KindPushSymbol
	KindPopSymbol
	KindPushScopedSymbol
	KindPopScopedSymbol
	KindDefinition
	KindReference
	KindJumpTo
)

var kindNames = [...]string{
	KindRoot:             "root",
	KindScope:            "scope",
	KindPushSymbol:       "push_symbol",
	KindPopSymbol:        "pop_symbol",
	KindPushScopedSymbol: "push_scoped_symbol",
	KindPopScopedSymbol:  "pop_scoped_symbol",
	KindDefinition:       "definition",
	KindReference:        "reference",
	KindJumpTo:           "jump_to",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, error) {
	for i, name := range kindNames {
		if name == s {
			return NodeKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// Pushes reports whether entering the node pushes a symbol.
func (k NodeKind) Pushes() bool {
	return k == KindPushSymbol || k == KindPushScopedSymbol || k == KindReference
}

// Pops reports whether entering the node pops a symbol.
func (k NodeKind) Pops() bool {
	return k == KindPopSymbol || k == KindPopScopedSymbol || k == KindDefinition
}

// Node is a vertex of a file graph.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Symbol   string   `json:"symbol,omitempty"`
	Scope    NodeID   `json:"scope,omitempty"` // attached scope of a scoped push
	Exported bool     `json:"exported,omitempty"`
	Span     *Span    `json:"span,omitempty"`
}

// Edge connects two nodes of the same file graph, or the root and a node.
type Edge struct {
	From       NodeID `json:"from"`
	To         NodeID `json:"to"`
	Precedence int    `json:"precedence"`
	Ordinal    int    `json:"ordinal"`
}

// NodeRef addresses a node globally. The zero value is the root.
type NodeRef struct {
	File string `json:"file,omitempty"`
	ID   NodeID `json:"id"`
}

// RootRef is the global handle of the root node.
var RootRef = NodeRef{}

func (r NodeRef) IsRoot() bool { return r.ID == RootID }

func (r NodeRef) String() string {
	if r.IsRoot() {
		return "[root]"
	}
	return fmt.Sprintf("%s#%d", r.File, r.ID)
}

// FileGraph is the graph fragment built from one file.
type FileGraph struct {
	Path     string
	Language string
	Nodes    []Node // Nodes[i].ID == i+1
	Edges    []Edge

	out map[NodeID][]Edge
}

// NewFileGraph returns an empty graph for path.
func NewFileGraph(path, language string) *FileGraph {
	return &FileGraph{Path: path, Language: language}
}

func (g *FileGraph) add(n Node) NodeID {
	n.ID = NodeID(len(g.Nodes) + 1)
	g.Nodes = append(g.Nodes, n)
	g.out = nil
	return n.ID
}

// AddScope adds a scope node. Exported scopes may be the start of partial
// paths and the target of a jump.
func (g *FileGraph) AddScope(exported bool) NodeID {
	return g.add(Node{Kind: KindScope, Exported: exported})
}

func (g *FileGraph) AddPush(symbol string) NodeID {
	return g.add(Node{Kind: KindPushSymbol, Symbol: symbol})
}

func (g *FileGraph) AddPop(symbol string) NodeID {
	return g.add(Node{Kind: KindPopSymbol, Symbol: symbol})
}

// AddPushScoped adds a scoped push whose attached scope is exported as a
// side effect.
func (g *FileGraph) AddPushScoped(symbol string, scope NodeID) NodeID {
	if n := g.node(scope); n != nil && n.Kind == KindScope {
		n.Exported = true
	}
	return g.add(Node{Kind: KindPushScopedSymbol, Symbol: symbol, Scope: scope})
}

func (g *FileGraph) AddPopScoped(symbol string) NodeID {
	return g.add(Node{Kind: KindPopScopedSymbol, Symbol: symbol})
}

func (g *FileGraph) AddDefinition(symbol string, span Span) NodeID {
	return g.add(Node{Kind: KindDefinition, Symbol: symbol, Span: &span})
}

func (g *FileGraph) AddReference(symbol string, span Span) NodeID {
	return g.add(Node{Kind: KindReference, Symbol: symbol, Span: &span})
}

// AddJumpTo adds a node that continues at the scope on top of the scope
// stack.
func (g *FileGraph) AddJumpTo() NodeID {
	return g.add(Node{Kind: KindJumpTo})
}

// AddEdge appends an edge. The insertion order breaks precedence ties.
func (g *FileGraph) AddEdge(from, to NodeID, precedence int) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Precedence: precedence, Ordinal: len(g.Edges)})
	g.out = nil
}

func (g *FileGraph) node(id NodeID) *Node {
	if id == RootID || int(id) > len(g.Nodes) {
		return nil
	}
	return &g.Nodes[id-1]
}

// Node returns the node with the given ID. The root is reported as a
// KindRoot node.
func (g *FileGraph) Node(id NodeID) (Node, bool) {
	if id == RootID {
		return Node{Kind: KindRoot}, true
	}
	n := g.node(id)
	if n == nil {
		return Node{}, false
	}
	return *n, true
}

// Outgoing returns the edges leaving id ordered by precedence, then
// insertion order.
func (g *FileGraph) Outgoing(id NodeID) []Edge {
	if g.out == nil {
		g.out = make(map[NodeID][]Edge)
		for _, e := range g.Edges {
			g.out[e.From] = append(g.out[e.From], e)
		}
		for _, es := range g.out {
			slices.SortStableFunc(es, compareEdges)
		}
	}
	return g.out[id]
}

func compareEdges(a, b Edge) int {
	if a.Precedence != b.Precedence {
		return a.Precedence - b.Precedence
	}
	return a.Ordinal - b.Ordinal
}

// Validate checks the structural invariants of the graph against the
// length of the source it was built from.
func (g *FileGraph) Validate(contentLen int) error {
	for i, n := range g.Nodes {
		if n.ID != NodeID(i+1) {
			return fmt.Errorf("node %d: id %d out of sequence", i+1, n.ID)
		}
		switch n.Kind {
		case KindDefinition, KindReference:
			if n.Span == nil {
				return fmt.Errorf("node %d: %s without span", n.ID, n.Kind)
			}
			if int(n.Span.EndByte) > contentLen || n.Span.StartByte > n.Span.EndByte {
				return fmt.Errorf("node %d: span [%d,%d) outside file of %d bytes",
					n.ID, n.Span.StartByte, n.Span.EndByte, contentLen)
			}
		case KindPushScopedSymbol:
			s := g.node(n.Scope)
			if s == nil || s.Kind != KindScope {
				return fmt.Errorf("node %d: attached scope %d is not a scope", n.ID, n.Scope)
			}
		case KindRoot:
			return fmt.Errorf("node %d: only the shared root may have kind root", n.ID)
		}
		if (n.Kind.Pushes() || n.Kind.Pops()) && n.Symbol == "" {
			return fmt.Errorf("node %d: %s without symbol", n.ID, n.Kind)
		}
	}
	for _, e := range g.Edges {
		if e.Precedence < 0 {
			return fmt.Errorf("edge %d->%d: negative precedence", e.From, e.To)
		}
		if _, ok := g.Node(e.From); !ok {
			return fmt.Errorf("edge %d->%d: unknown source", e.From, e.To)
		}
		if _, ok := g.Node(e.To); !ok {
			return fmt.Errorf("edge %d->%d: unknown target", e.From, e.To)
		}
	}
	return nil
}

// Ref returns the global handle of a node in this graph.
func (g *FileGraph) Ref(id NodeID) NodeRef {
	if id == RootID {
		return RootRef
	}
	return NodeRef{File: g.Path, ID: id}
}
