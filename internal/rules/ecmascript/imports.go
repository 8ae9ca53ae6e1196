package ecmascript

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

func (b *fileBuilder) importStatement(n *sitter.Node, e env) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	modSym := moduleSymbol(b.t.Path, unquote(b.text(source)))

	for _, clause := range builder.NamedChildren(n) {
		if clause.Type() != "import_clause" {
			continue
		}
		for _, c := range builder.NamedChildren(clause) {
			switch c.Type() {
			case "identifier":
				def := b.define(e.block, c)
				b.throughModule(def, defaultSymbol, modSym)
			case "namespace_import":
				for _, id := range builder.NamedChildren(c) {
					if id.Type() == "identifier" {
						b.namespaceBinding(b.define(e.block, id), modSym)
					}
				}
			case "named_imports":
				for _, spec := range builder.NamedChildren(c) {
					if spec.Type() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = alias
					}
					def := b.define(e.block, local)
					b.throughModule(def, unquote(b.text(name)), modSym)
				}
			}
		}
	}
}

// namespaceBinding makes member access on def resolve in the module.
func (b *fileBuilder) namespaceBinding(def graph.NodeID, modSym string) {
	dot := b.g.AddPop(memberSymbol)
	push := b.g.AddPush(modSym)
	b.g.AddEdge(def, dot, 0)
	b.g.AddEdge(dot, push, 0)
	b.g.AddEdge(push, graph.RootID, 0)
}

func (b *fileBuilder) exportStatement(n *sitter.Node, e env) {
	var modSym string
	if source := n.ChildByFieldName("source"); source != nil {
		modSym = moduleSymbol(b.t.Path, unquote(b.text(source)))
	}

	var isDefault, isStar bool
	var defaultKw *sitter.Node
	for _, c := range builder.Children(n) {
		switch c.Type() {
		case "default":
			isDefault = true
			defaultKw = c
		case "*":
			isStar = true
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		defs := b.declaration(decl, e)
		if isDefault {
			if name := decl.ChildByFieldName("name"); name != nil {
				pop := b.g.AddPop(defaultSymbol)
				b.g.AddEdge(b.exports, pop, 0)
				last := b.chain(pop, b.text(name))
				b.g.AddEdge(last, e.block, 0)
			}
			return
		}
		for _, def := range defs {
			b.g.AddEdge(b.exports, def, 0)
		}
		return
	}

	if isDefault {
		value := n.ChildByFieldName("value")
		if value == nil {
			return
		}
		if value.Type() == "identifier" {
			pop := b.g.AddPop(defaultSymbol)
			b.g.AddEdge(b.exports, pop, 0)
			last := b.chain(pop, b.text(value))
			b.g.AddEdge(last, e.block, 0)
			b.visit(value, e)
			return
		}
		span := builder.SpanOf(value)
		if defaultKw != nil {
			span = builder.SpanOf(defaultKw)
		}
		def := b.g.AddDefinition(defaultSymbol, span)
		b.g.AddEdge(b.exports, def, 0)
		b.aliasValue(def, value, e)
		return
	}

	for _, c := range builder.NamedChildren(n) {
		switch c.Type() {
		case "export_clause":
			for _, spec := range builder.NamedChildren(c) {
				if spec.Type() != "export_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				exported := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					exported = alias
				}
				def := b.g.AddDefinition(unquote(b.text(exported)), builder.SpanOf(exported))
				b.g.AddEdge(b.exports, def, 0)
				if modSym != "" {
					b.throughModule(def, unquote(b.text(name)), modSym)
					continue
				}
				last := b.chain(def, b.text(name))
				b.g.AddEdge(last, e.block, 0)
				b.reference(e.block, name)
			}
		case "namespace_export":
			if modSym == "" {
				continue
			}
			for _, id := range builder.NamedChildren(c) {
				def := b.g.AddDefinition(unquote(b.text(id)), builder.SpanOf(id))
				b.g.AddEdge(b.exports, def, 0)
				b.namespaceBinding(def, modSym)
			}
			isStar = false
		}
	}

	if isStar && modSym != "" {
		push := b.g.AddPush(modSym)
		b.g.AddEdge(b.exports, push, 1)
		b.g.AddEdge(push, graph.RootID, 0)
	}
}

// requireSpecifier reports the module specifier of a require("...") call.
func requireSpecifier(b *fileBuilder, value *sitter.Node) (string, bool) {
	if value == nil || value.Type() != "call_expression" {
		return "", false
	}
	fn := value.ChildByFieldName("function")
	args := value.ChildByFieldName("arguments")
	if fn == nil || args == nil || fn.Type() != "identifier" || b.text(fn) != "require" {
		return "", false
	}
	if args.NamedChildCount() != 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	return unquote(b.text(arg)), true
}

// requireBinding binds a CommonJS require: a plain name becomes a
// namespace, a destructuring pattern imports the named members.
func (b *fileBuilder) requireBinding(name *sitter.Node, target graph.NodeID, modSym string) []graph.NodeID {
	if name.Type() == "identifier" {
		def := b.define(target, name)
		b.namespaceBinding(def, modSym)
		return []graph.NodeID{def}
	}
	if name.Type() != "object_pattern" {
		return b.declarePattern(name, target)
	}
	var defs []graph.NodeID
	for _, c := range builder.NamedChildren(name) {
		switch c.Type() {
		case "shorthand_property_identifier_pattern":
			def := b.define(target, c)
			b.throughModule(def, b.text(c), modSym)
			defs = append(defs, def)
		case "pair_pattern":
			key := c.ChildByFieldName("key")
			value := c.ChildByFieldName("value")
			if key == nil || value == nil || value.Type() != "identifier" {
				continue
			}
			def := b.define(target, value)
			b.throughModule(def, unquote(b.text(key)), modSym)
			defs = append(defs, def)
		}
	}
	return defs
}
