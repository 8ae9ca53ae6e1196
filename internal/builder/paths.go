package builder

import (
	"slices"
	"strconv"
	"strings"

	"github.com/jward/stackgraphs/internal/graph"
)

type localSymbol struct {
	symbol string
	scope  *graph.ScopeHandle
}

// walkState is the state of one DFS branch. Slices are copied on write so
// that sibling branches never share backing arrays.
type walkState struct {
	node   graph.NodeID
	stack  []localSymbol
	pre    []graph.PreSymbol
	scopes []graph.ScopeHandle
	nodes  []graph.NodeID
	prec   int
}

// enter applies the operation of n. It reports false when a pop does not
// match the symbols pushed earlier on this path.
func (w walkState) enter(n graph.Node) (walkState, bool) {
	switch n.Kind {
	case graph.KindPushSymbol, graph.KindReference:
		w.stack = append(slices.Clip(w.stack), localSymbol{symbol: n.Symbol})
	case graph.KindPushScopedSymbol:
		w.stack = append(slices.Clip(w.stack), localSymbol{symbol: n.Symbol, scope: &graph.ScopeHandle{Node: n.Scope}})
	case graph.KindPopSymbol, graph.KindDefinition:
		if len(w.stack) == 0 {
			w.pre = append(slices.Clip(w.pre), graph.PreSymbol{Symbol: n.Symbol})
			break
		}
		top := w.stack[len(w.stack)-1]
		if top.symbol != n.Symbol || top.scope != nil {
			return w, false
		}
		w.stack = w.stack[:len(w.stack)-1 : len(w.stack)-1]
	case graph.KindPopScopedSymbol:
		if len(w.stack) == 0 {
			w.pre = append(slices.Clip(w.pre), graph.PreSymbol{Symbol: n.Symbol, Scoped: true})
			w.scopes = append(slices.Clip(w.scopes), graph.ScopeHandle{Var: len(w.pre)})
			break
		}
		top := w.stack[len(w.stack)-1]
		if top.symbol != n.Symbol || top.scope == nil {
			return w, false
		}
		w.stack = w.stack[:len(w.stack)-1 : len(w.stack)-1]
		w.scopes = append(slices.Clip(w.scopes), *top.scope)
	}
	return w, true
}

func (w walkState) key() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(w.node), 10))
	b.WriteByte('|')
	for _, s := range w.stack {
		b.WriteString(s.symbol)
		if s.scope != nil {
			b.WriteByte('@')
			b.WriteString(s.scope.String())
		}
		b.WriteByte(0x1f)
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(len(w.pre)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(len(w.scopes)))
	return b.String()
}

func isPathEnd(n graph.Node) bool {
	return n.Kind == graph.KindRoot || n.Kind == graph.KindDefinition || n.Kind == graph.KindJumpTo
}

func isPathStart(n graph.Node) bool {
	switch n.Kind {
	case graph.KindReference, graph.KindDefinition:
		return true
	case graph.KindScope:
		return n.Exported
	}
	return false
}

type pathEnumerator struct {
	g      *graph.FileGraph
	limits Limits
	out    []graph.PartialPath

	emitted   int
	truncated bool
}

// EnumeratePaths computes the partial paths of g: every path from a start
// node (root, reference, exported scope, definition) to the first end node
// (root, definition, jump) reached along it. The order of the result is
// fully determined by the graph. The second return value counts start
// nodes whose enumeration was cut short by a limit.
func EnumeratePaths(g *graph.FileGraph, limits Limits) ([]graph.PartialPath, int) {
	e := &pathEnumerator{g: g, limits: limits.withDefaults()}
	truncated := 0

	starts := make([]graph.NodeID, 0, len(g.Nodes)+1)
	if len(g.Outgoing(graph.RootID)) > 0 {
		starts = append(starts, graph.RootID)
	}
	for _, n := range g.Nodes {
		if isPathStart(n) {
			starts = append(starts, n.ID)
		}
	}

	for _, start := range starts {
		n, _ := g.Node(start)
		init := walkState{node: start, nodes: []graph.NodeID{start}}
		if n.Kind == graph.KindReference {
			init, _ = init.enter(n)
		}
		e.emitted = 0
		e.truncated = false
		e.extend(start, init, map[string]bool{init.key(): true})
		if e.truncated {
			truncated++
		}
	}
	return e.out, truncated
}

func (e *pathEnumerator) extend(start graph.NodeID, cur walkState, visited map[string]bool) {
	for _, edge := range e.g.Outgoing(cur.node) {
		if e.emitted >= e.limits.MaxPathsPerStart || len(cur.nodes) >= e.limits.MaxPathLength {
			e.truncated = true
			return
		}
		n, ok := e.g.Node(edge.To)
		if !ok {
			continue
		}
		next, ok := cur.enter(n)
		if !ok {
			continue
		}
		if len(next.stack) > e.limits.MaxStack {
			e.truncated = true
			continue
		}
		next.node = edge.To
		next.prec += edge.Precedence
		next.nodes = append(slices.Clip(cur.nodes), edge.To)

		if isPathEnd(n) {
			e.emit(start, next)
			continue
		}
		k := next.key()
		if visited[k] {
			continue
		}
		visited[k] = true
		e.extend(start, next, visited)
		delete(visited, k)
	}
}

func (e *pathEnumerator) emit(start graph.NodeID, w walkState) {
	p := graph.PartialPath{
		File:       e.g.Path,
		Start:      start,
		End:        w.node,
		Pre:        slices.Clone(w.pre),
		Scopes:     slices.Clone(w.scopes),
		Nodes:      slices.Clone(w.nodes),
		Precedence: w.prec,
	}
	for _, s := range w.stack {
		post := graph.PostSymbol{Symbol: s.symbol}
		if s.scope != nil {
			h := *s.scope
			post.Scope = &h
		}
		p.Post = append(p.Post, post)
	}
	e.out = append(e.out, p)
	e.emitted++
}
