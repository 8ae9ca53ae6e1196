package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

// Graph host functions return node ids as ints. Ids are checked against
// the graph when used as edge endpoints or scope targets.

// add_scope() or add_scope({"exported": true}) → id
func makeAddScopeFn(g *graph.FileGraph) *object.Builtin {
	return object.NewBuiltin("add_scope", func(ctx context.Context, args ...object.Object) object.Object {
		exported := false
		switch len(args) {
		case 0:
		case 1:
			m, err := extractMap(args[0])
			if err != nil {
				return object.Errorf("add_scope: %v", err)
			}
			exported = getBool(m, "exported")
		default:
			return object.NewArgsError("add_scope", 1, len(args))
		}
		return object.NewInt(int64(g.AddScope(exported)))
	})
}

// add_push(symbol), add_pop(symbol), add_pop_scoped(symbol) → id
func makeAddSymbolFn(g *graph.FileGraph, name string, add func(string) graph.NodeID) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		sym, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: symbol: %v", name, err)
		}
		if sym == "" {
			return object.Errorf("%s: empty symbol", name)
		}
		return object.NewInt(int64(add(sym)))
	})
}

// add_push_scoped(symbol, scope) → id
func makeAddPushScopedFn(g *graph.FileGraph) *object.Builtin {
	return object.NewBuiltin("add_push_scoped", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("add_push_scoped", 2, len(args))
		}
		sym, err := toString(args[0])
		if err != nil {
			return object.Errorf("add_push_scoped: symbol: %v", err)
		}
		scope, err := nodeID(g, args[1])
		if err != nil {
			return object.Errorf("add_push_scoped: scope: %v", err)
		}
		if n, _ := g.Node(scope); n.Kind != graph.KindScope {
			return object.Errorf("add_push_scoped: node %d is a %s, not a scope", scope, n.Kind)
		}
		return object.NewInt(int64(g.AddPushScoped(sym, scope)))
	})
}

// add_definition(symbol, node), add_reference(symbol, node) → id
//
// The node supplies the span.
func makeAddSpannedFn(g *graph.FileGraph, name string, add func(string, graph.Span) graph.NodeID) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError(name, 2, len(args))
		}
		sym, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: symbol: %v", name, err)
		}
		node, errObj := nodeArg(name, args[1])
		if errObj != nil {
			return errObj
		}
		return object.NewInt(int64(add(sym, builder.SpanOf(node))))
	})
}

// add_jump_to() → id
func makeAddJumpToFn(g *graph.FileGraph) *object.Builtin {
	return object.NewBuiltin("add_jump_to", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("add_jump_to", 0, len(args))
		}
		return object.NewInt(int64(g.AddJumpTo()))
	})
}

// add_edge(from, to) or add_edge(from, to, precedence)
func makeAddEdgeFn(g *graph.FileGraph) *object.Builtin {
	return object.NewBuiltin("add_edge", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 && len(args) != 3 {
			return object.NewArgsError("add_edge", 3, len(args))
		}
		from, err := nodeID(g, args[0])
		if err != nil {
			return object.Errorf("add_edge: from: %v", err)
		}
		to, err := nodeID(g, args[1])
		if err != nil {
			return object.Errorf("add_edge: to: %v", err)
		}
		prec := int64(0)
		if len(args) == 3 {
			if prec, err = toInt64(args[2]); err != nil {
				return object.Errorf("add_edge: precedence: %v", err)
			}
			if prec < 0 {
				return object.Errorf("add_edge: negative precedence %d", prec)
			}
		}
		g.AddEdge(from, to, int(prec))
		return object.Nil
	})
}

func nodeID(g *graph.FileGraph, obj object.Object) (graph.NodeID, error) {
	v, err := toInt64(obj)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > int64(len(g.Nodes)) {
		return 0, fmt.Errorf("unknown node %d", v)
	}
	return graph.NodeID(v), nil
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getBool(m map[string]object.Object, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if b, ok := v.(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
