// Package stitch resolves references by concatenating partial paths from
// many files into complete paths that end at definitions.
//
// The search is a breadth-first walk over automaton states. Each state is
// a node plus the symbol and scope stacks still to be satisfied. A state
// at the root looks up paths by the symbol on top of its stack; anywhere
// else it looks up paths by node. A branch succeeds when it reaches a
// definition with both stacks empty.
package stitch

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/jward/stackgraphs/internal/graph"
	"github.com/jward/stackgraphs/internal/store"
)

// Source is the read side the resolver needs. *store.Snapshot implements
// it, as does Memory.
type Source interface {
	Node(ref graph.NodeRef) (graph.Node, bool, error)
	PathsFromRoot(symbol string) iter.Seq2[*graph.PartialPath, error]
	PathsFromNode(ref graph.NodeRef) iter.Seq2[*graph.PartialPath, error]
}

// Shadowing selects which successful paths are reported.
type Shadowing int

const (
	// ShadowAll reports every definition that was reached.
	ShadowAll Shadowing = iota
	// ShadowNearest reports only the definitions with the lowest
	// precedence sum.
	ShadowNearest
)

// ParseShadowing maps "all" and "nearest" to a Shadowing.
func ParseShadowing(s string) (Shadowing, error) {
	switch s {
	case "", "all":
		return ShadowAll, nil
	case "nearest":
		return ShadowNearest, nil
	}
	return 0, fmt.Errorf("unknown shadowing %q", s)
}

func (s Shadowing) String() string {
	if s == ShadowNearest {
		return "nearest"
	}
	return "all"
}

// Options bound the search.
type Options struct {
	MaxStates int // expanded states per query
	MaxDepth  int // stitched paths per branch
	MaxStack  int // symbols on the stack
	Shadowing Shadowing
	Logger    *slog.Logger
}

// DefaultOptions returns the default budgets.
func DefaultOptions() Options {
	return Options{MaxStates: 20000, MaxDepth: 256, MaxStack: 64}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxStates <= 0 {
		o.MaxStates = d.MaxStates
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxStack <= 0 {
		o.MaxStack = d.MaxStack
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result is one definition a reference resolves to.
type Result struct {
	Definition graph.NodeRef
	Node       graph.Node
	Precedence int // sum over the stitched paths
	Depth      int // number of stitched paths
}

// Position returns where the definition starts.
func (r Result) Position() graph.Position {
	if r.Node.Span == nil {
		return graph.Position{Path: r.Definition.File}
	}
	return r.Node.Span.Position(r.Definition.File)
}

// Stats describes how a search ended.
type Stats struct {
	States    int
	Truncated bool
}

type branch struct {
	state  graph.State
	key    string
	prec   int
	depth  int
	parent *branch
}

// onAncestry reports whether key was already seen on b's chain.
func (b *branch) onAncestry(key string) bool {
	for p := b; p != nil; p = p.parent {
		if p.key == key {
			return true
		}
	}
	return false
}

// Resolve finds the definitions the reference at start resolves to.
// Budget exhaustion is not an error: the results found so far are
// returned and Stats.Truncated is set.
func Resolve(ctx context.Context, src Source, start graph.NodeRef, opts Options) ([]Result, Stats, error) {
	opts = opts.withDefaults()
	var stats Stats

	init := graph.State{Node: start}
	queue := []*branch{{state: init, key: init.Key()}}
	var results []Result
	byDef := make(map[graph.NodeRef]int) // definition to index in results

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if stats.States >= opts.MaxStates {
			stats.Truncated = true
			opts.Logger.Warn("stitch.budget", "budget", "max_states", "limit", opts.MaxStates, "reference", start.String())
			break
		}
		b := queue[0]
		queue = queue[1:]
		stats.States++

		for p, err := range candidates(src, b.state) {
			if err != nil {
				return nil, stats, fmt.Errorf("load paths at %s: %w", b.state.Node, err)
			}
			next, ok := b.state.Apply(p)
			if !ok {
				continue
			}
			if len(next.Symbols) > opts.MaxStack {
				stats.Truncated = true
				continue
			}
			kind := graph.KindRoot
			var end graph.Node
			if !next.Node.IsRoot() {
				n, found, err := src.Node(next.Node)
				if err != nil {
					return nil, stats, fmt.Errorf("load node %s: %w", next.Node, err)
				}
				if !found {
					return nil, stats, fmt.Errorf("path %s ends at missing node %s: %w", p, next.Node, store.ErrInconsistent)
				}
				end, kind = n, n.Kind
			}
			prec := b.prec + p.Precedence

			switch kind {
			case graph.KindDefinition:
				if !next.Empty() {
					break
				}
				// Results stay in discovery order; a definition reached again
				// keeps its slot and takes the lower sum.
				if i, ok := byDef[next.Node]; ok {
					if prec < results[i].Precedence {
						results[i].Precedence = prec
						results[i].Depth = b.depth + 1
					}
					break
				}
				byDef[next.Node] = len(results)
				results = append(results, Result{Definition: next.Node, Node: end, Precedence: prec, Depth: b.depth + 1})
			case graph.KindJumpTo:
				jumped, ok := next.Jump()
				if !ok {
					continue
				}
				if !jumped.Node.IsRoot() {
					_, found, err := src.Node(jumped.Node)
					if err != nil {
						return nil, stats, fmt.Errorf("load scope %s: %w", jumped.Node, err)
					}
					if !found {
						return nil, stats, fmt.Errorf("scope %s on the stack is missing: %w", jumped.Node, store.ErrInconsistent)
					}
				}
				next = jumped
			}

			if b.depth+1 >= opts.MaxDepth {
				stats.Truncated = true
				continue
			}
			key := next.Key()
			if b.onAncestry(key) {
				continue
			}
			queue = append(queue, &branch{state: next, key: key, prec: prec, depth: b.depth + 1, parent: b})
		}
	}
	if stats.Truncated {
		opts.Logger.Warn("stitch.truncated", "reference", start.String(), "states", stats.States, "results", len(results))
	}

	slices.SortStableFunc(results, func(a, b Result) int { return cmp.Compare(a.Precedence, b.Precedence) })
	if opts.Shadowing == ShadowNearest && len(results) > 0 {
		best := results[0].Precedence
		n := 0
		for n < len(results) && results[n].Precedence == best {
			n++
		}
		results = results[:n]
	}
	return results, stats, nil
}

// candidates yields the paths that may continue s.
func candidates(src Source, s graph.State) iter.Seq2[*graph.PartialPath, error] {
	if !s.Node.IsRoot() {
		return src.PathsFromNode(s.Node)
	}
	top := s.Top()
	if top == "" {
		return src.PathsFromRoot("")
	}
	return func(yield func(*graph.PartialPath, error) bool) {
		for p, err := range src.PathsFromRoot(top) {
			if !yield(p, err) || err != nil {
				return
			}
		}
		for p, err := range src.PathsFromRoot("") {
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}
