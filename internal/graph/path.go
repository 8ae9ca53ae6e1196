package graph

import (
	"fmt"
	"strings"
)

// PreSymbol is one symbol a partial path consumes from the incoming symbol
// stack. A scoped entry requires an attached scope and binds it to a
// variable numbered by its position in the precondition (1-based).
type PreSymbol struct {
	Symbol string `json:"s"`
	Scoped bool   `json:"scoped,omitempty"`
}

// ScopeHandle names a scope from within a partial path: either a node of
// the path's own file or a variable bound by the precondition.
type ScopeHandle struct {
	Node NodeID `json:"n,omitempty"`
	Var  int    `json:"v,omitempty"`
}

// PostSymbol is a symbol a partial path leaves on the stack.
type PostSymbol struct {
	Symbol string       `json:"s"`
	Scope  *ScopeHandle `json:"scope,omitempty"`
}

// PartialPath is a file-local fragment of a resolution path.
type PartialPath struct {
	File       string        `json:"file"`
	Start      NodeID        `json:"start"`
	End        NodeID        `json:"end"`
	Pre        []PreSymbol   `json:"pre,omitempty"`    // top first
	Post       []PostSymbol  `json:"post,omitempty"`   // bottom first
	Scopes     []ScopeHandle `json:"scopes,omitempty"` // bottom first
	Nodes      []NodeID      `json:"nodes"`            // visited nodes, start included
	Precedence int           `json:"precedence"`
}

// StartRef returns the global handle of the start node.
func (p *PartialPath) StartRef() NodeRef { return p.ref(p.Start) }

// EndRef returns the global handle of the end node.
func (p *PartialPath) EndRef() NodeRef { return p.ref(p.End) }

func (p *PartialPath) ref(id NodeID) NodeRef {
	if id == RootID {
		return RootRef
	}
	return NodeRef{File: p.File, ID: id}
}

// LeadingSymbol is the first symbol the path consumes, or "" when the path
// has no precondition.
func (p *PartialPath) LeadingSymbol() string {
	if len(p.Pre) == 0 {
		return ""
	}
	return p.Pre[0].Symbol
}

func (p *PartialPath) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s [", p.StartRef(), p.EndRef())
	for i, s := range p.Pre {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Symbol)
		if s.Scoped {
			fmt.Fprintf(&b, "/$%d", i+1)
		}
	}
	b.WriteString("] => [")
	for i, s := range p.Post {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Symbol)
		if s.Scope != nil {
			b.WriteByte('/')
			b.WriteString(s.Scope.String())
		}
	}
	b.WriteByte(']')
	if len(p.Scopes) > 0 {
		b.WriteString(" scopes[")
		for i, h := range p.Scopes {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(h.String())
		}
		b.WriteByte(']')
	}
	fmt.Fprintf(&b, " prec=%d", p.Precedence)
	return b.String()
}

func (h ScopeHandle) String() string {
	if h.Var > 0 {
		return fmt.Sprintf("$%d", h.Var)
	}
	return fmt.Sprintf("#%d", h.Node)
}
