package builder

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/stackgraphs/internal/graph"
)

// Tree is a parsed file handed to a rule set.
type Tree struct {
	Path    string
	Source  []byte
	Root    *sitter.Node
	Grammar *sitter.Language
}

// Text returns the source text of n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.Source)
}

// SpanOf returns the source extent of n.
func SpanOf(n *sitter.Node) graph.Span {
	sp, ep := n.StartPoint(), n.EndPoint()
	return graph.Span{
		Start:     graph.Point{Line: int(sp.Row), Column: int(sp.Column)},
		End:       graph.Point{Line: int(ep.Row), Column: int(ep.Column)},
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
	}
}

// NamedChildren returns the named children of n.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Children returns all children of n, anonymous tokens included.
func Children(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}
