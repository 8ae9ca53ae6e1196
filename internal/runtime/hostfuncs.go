package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// nodeArg unwraps a proxied *sitter.Node argument.
func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok || node == nil {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

func proxyNode(fn string, n *sitter.Node) object.Object {
	if n == nil {
		return object.Nil
	}
	p, err := object.NewProxy(n)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// makeNodeTextFn creates the "node_text" host function.
//
// node_text(node) → string
//
// Exists because Risor's proxy system cannot convert strings to []byte
// for node.Content([]byte).
func makeNodeTextFn(src []byte) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(node.Content(src))
	})
}

// makeNodeTypeFn creates "node_type".
//
// node_type(node) → string, "" for nil
func makeNodeTypeFn() *object.Builtin {
	return object.NewBuiltin("node_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_type", 1, len(args))
		}
		if args[0] == object.Nil {
			return object.NewString("")
		}
		node, errObj := nodeArg("node_type", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(node.Type())
	})
}

// makeNodeChildFn creates "node_child", a nil-safe wrapper for ChildByFieldName
// that returns Risor nil instead of a proxied Go nil pointer.
//
// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		return proxyNode("node_child", node.ChildByFieldName(field))
	})
}

// makeNodeChildrenFn creates "node_children".
//
// node_children(node) → []Node, named children only
func makeNodeChildrenFn() *object.Builtin {
	return object.NewBuiltin("node_children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_children", 1, len(args))
		}
		node, errObj := nodeArg("node_children", args[0])
		if errObj != nil {
			return errObj
		}
		n := int(node.NamedChildCount())
		items := make([]object.Object, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, proxyNode("node_children", node.NamedChild(i)))
		}
		return object.NewList(items)
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern, node) → []map[string]any
//
// Each map has capture names as keys and proxied Nodes as values.
func makeQueryFn(lang *sitter.Language, src []byte) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}

		q, err := sitter.NewQuery([]byte(pattern), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		var results []object.Object
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				matchMap[name] = proxyNode("query", capture.Node)
			}
			results = append(results, object.NewMap(matchMap))
		}

		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info("rules.script", "msg", msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn("rules.script", "msg", msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error("rules.script", "msg", msg)
}
