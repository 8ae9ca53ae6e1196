package stitch

import (
	"iter"
	"slices"
	"sort"

	"github.com/jward/stackgraphs/internal/graph"
)

// Memory is an in-process Source over built graphs. It serves queries
// over sources that were never committed to a store.
type Memory struct {
	graphs map[string]*graph.FileGraph
	paths  map[string][]graph.PartialPath
	files  []string
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		graphs: make(map[string]*graph.FileGraph),
		paths:  make(map[string][]graph.PartialPath),
	}
}

// Add replaces the graph and paths of g's file.
func (m *Memory) Add(g *graph.FileGraph, paths []graph.PartialPath) {
	if _, ok := m.graphs[g.Path]; !ok {
		i := sort.SearchStrings(m.files, g.Path)
		m.files = slices.Insert(m.files, i, g.Path)
	}
	m.graphs[g.Path] = g
	m.paths[g.Path] = paths
}

// ReferenceAt returns the innermost reference containing pos.
func (m *Memory) ReferenceAt(pos graph.Position) (graph.NodeRef, bool) {
	g, ok := m.graphs[pos.Path]
	if !ok {
		return graph.NodeRef{}, false
	}
	var best *graph.Node
	pt := graph.Point{Line: pos.Line, Column: pos.Column}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Kind != graph.KindReference || n.Span == nil || !n.Span.Contains(pt) {
			continue
		}
		if best == nil || n.Span.EndByte-n.Span.StartByte < best.Span.EndByte-best.Span.StartByte {
			best = n
		}
	}
	if best == nil {
		return graph.NodeRef{}, false
	}
	return g.Ref(best.ID), true
}

func (m *Memory) Node(ref graph.NodeRef) (graph.Node, bool, error) {
	g, ok := m.graphs[ref.File]
	if !ok {
		return graph.Node{}, false, nil
	}
	n, ok := g.Node(ref.ID)
	return n, ok, nil
}

func (m *Memory) PathsFromRoot(symbol string) iter.Seq2[*graph.PartialPath, error] {
	return func(yield func(*graph.PartialPath, error) bool) {
		for _, f := range m.files {
			for i := range m.paths[f] {
				p := &m.paths[f][i]
				if p.Start == graph.RootID && p.LeadingSymbol() == symbol && !yield(p, nil) {
					return
				}
			}
		}
	}
}

func (m *Memory) PathsFromNode(ref graph.NodeRef) iter.Seq2[*graph.PartialPath, error] {
	return func(yield func(*graph.PartialPath, error) bool) {
		for i := range m.paths[ref.File] {
			p := &m.paths[ref.File][i]
			if p.Start == ref.ID && !yield(p, nil) {
				return
			}
		}
	}
}
