package ecmascript

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

// env holds the scopes declarations land in: block for let, const, class
// and function declarations, fn for var.
type env struct {
	block graph.NodeID
	fn    graph.NodeID
}

type fileBuilder struct {
	t     *builder.Tree
	g     *graph.FileGraph
	typed bool

	module  graph.NodeID
	exports graph.NodeID
}

func (b *fileBuilder) text(n *sitter.Node) string { return b.t.Text(n) }

// child returns a new lexical scope nested in parent.
func (b *fileBuilder) child(parent graph.NodeID) graph.NodeID {
	s := b.g.AddScope(false)
	b.g.AddEdge(s, parent, 1)
	return s
}

func (b *fileBuilder) define(scope graph.NodeID, name *sitter.Node) graph.NodeID {
	def := b.g.AddDefinition(b.text(name), builder.SpanOf(name))
	b.g.AddEdge(scope, def, 0)
	return def
}

func (b *fileBuilder) reference(scope graph.NodeID, n *sitter.Node) graph.NodeID {
	ref := b.g.AddReference(b.text(n), builder.SpanOf(n))
	b.g.AddEdge(ref, scope, 0)
	return ref
}

// chain links from through a sequence of push nodes for symbols, pushed in
// order, and returns the last node.
func (b *fileBuilder) chain(from graph.NodeID, symbols ...string) graph.NodeID {
	cur := from
	for _, s := range symbols {
		p := b.g.AddPush(s)
		b.g.AddEdge(cur, p, 0)
		cur = p
	}
	return cur
}

// throughModule makes def resolve as name exported by the module behind
// modSym.
func (b *fileBuilder) throughModule(def graph.NodeID, name, modSym string) {
	last := b.chain(def, name, modSym)
	b.g.AddEdge(last, graph.RootID, 0)
}

// withMembers makes member access on def continue in members.
func (b *fileBuilder) withMembers(def, members graph.NodeID) {
	dot := b.g.AddPop(memberSymbol)
	b.g.AddEdge(def, dot, 0)
	b.g.AddEdge(dot, members, 0)
}

func (b *fileBuilder) visitChildren(n *sitter.Node, e env) {
	for _, c := range builder.NamedChildren(n) {
		b.visit(c, e)
	}
}

func (b *fileBuilder) visit(n *sitter.Node, e env) {
	switch n.Type() {
	case "comment":
	case "import_statement":
		b.importStatement(n, e)
	case "export_statement":
		b.exportStatement(n, e)
	case "lexical_declaration", "variable_declaration",
		"function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration",
		"interface_declaration", "type_alias_declaration", "enum_declaration":
		b.declaration(n, e)
	case "function", "function_expression", "generator_function", "arrow_function":
		b.function(n, e)
	case "class":
		b.class(n, e, 0)
	case "statement_block":
		inner := b.child(e.block)
		b.visitChildren(n, env{block: inner, fn: e.fn})
	case "for_statement", "switch_statement":
		inner := b.child(e.block)
		b.visitChildren(n, env{block: inner, fn: e.fn})
	case "for_in_statement":
		b.forIn(n, e)
	case "catch_clause":
		inner := b.child(e.block)
		if p := n.ChildByFieldName("parameter"); p != nil {
			b.declarePattern(p, inner)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			b.visitChildren(body, env{block: inner, fn: e.fn})
		}
	case "member_expression":
		b.memberExpression(n, e)
	case "assignment_expression":
		b.assignment(n, e)
	case "object":
		b.objectMembers(n, e)
	case "pair":
		if v := n.ChildByFieldName("value"); v != nil {
			b.visit(v, e)
		}
	case "identifier", "shorthand_property_identifier":
		b.reference(e.block, n)
	case "type_identifier":
		if b.typed {
			b.reference(e.block, n)
		}
	case "property_identifier", "private_property_identifier", "statement_identifier":
	default:
		b.visitChildren(n, e)
	}
}

// declaration visits a declaration and returns the definitions it binds
// at its own level.
func (b *fileBuilder) declaration(n *sitter.Node, e env) []graph.NodeID {
	switch n.Type() {
	case "lexical_declaration":
		return b.variableDeclaration(n, e.block, e)
	case "variable_declaration":
		return b.variableDeclaration(n, e.fn, e)
	case "function_declaration", "generator_function_declaration":
		if def := b.functionDeclaration(n, e); def != 0 {
			return []graph.NodeID{def}
		}
	case "class_declaration", "abstract_class_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			def := b.define(e.block, name)
			b.class(n, e, def)
			return []graph.NodeID{def}
		}
		b.class(n, e, 0)
	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		return b.typeDeclaration(n, e)
	default:
		b.visit(n, e)
	}
	return nil
}

func (b *fileBuilder) variableDeclaration(n *sitter.Node, target graph.NodeID, e env) []graph.NodeID {
	var defs []graph.NodeID
	for _, d := range builder.NamedChildren(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		value := d.ChildByFieldName("value")
		if name == nil {
			continue
		}
		if spec, ok := requireSpecifier(b, value); ok {
			defs = append(defs, b.requireBinding(name, target, moduleSymbol(b.t.Path, spec))...)
			continue
		}
		for _, c := range builder.NamedChildren(d) {
			if c.Type() == "type_annotation" {
				b.visit(c, e)
			}
		}
		if name.Type() == "identifier" {
			def := b.define(target, name)
			defs = append(defs, def)
			if value != nil {
				b.aliasValue(def, value, e)
			}
			continue
		}
		defs = append(defs, b.declarePattern(name, target)...)
		if value != nil {
			b.visit(value, e)
		}
	}
	return defs
}

// aliasValue lets member access on def follow into value, and visits
// value.
func (b *fileBuilder) aliasValue(def graph.NodeID, value *sitter.Node, e env) {
	switch value.Type() {
	case "object":
		b.withMembers(def, b.objectMembers(value, e))
	case "class":
		b.withMembers(def, b.class(value, e, 0))
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		if inner := value.NamedChild(0); inner != nil {
			for _, c := range builder.NamedChildren(value)[1:] {
				b.visit(c, e)
			}
			b.aliasValue(def, inner, e)
			return
		}
		b.visit(value, e)
	case "new_expression":
		if ctor := value.ChildByFieldName("constructor"); ctor != nil {
			b.followValue(def, ctor, e.block)
		}
		b.visit(value, e)
	case "identifier", "member_expression":
		b.followValue(def, value, e.block)
		b.visit(value, e)
	default:
		b.visit(value, e)
	}
}

// followValue routes member access on def to the members of the value
// expression v.
func (b *fileBuilder) followValue(def graph.NodeID, v *sitter.Node, scope graph.NodeID) {
	target := b.valueOf(v, scope)
	if target == 0 {
		return
	}
	pop := b.g.AddPop(memberSymbol)
	push := b.g.AddPush(memberSymbol)
	b.g.AddEdge(def, pop, 0)
	b.g.AddEdge(pop, push, 0)
	b.g.AddEdge(push, target, 0)
}

// valueOf returns the head of a push chain that resolves the expression v
// as a value, or 0 for expressions that cannot be followed statically.
func (b *fileBuilder) valueOf(v *sitter.Node, scope graph.NodeID) graph.NodeID {
	switch v.Type() {
	case "identifier", "this", "super":
		p := b.g.AddPush(b.text(v))
		b.g.AddEdge(p, scope, 0)
		return p
	case "member_expression":
		prop := v.ChildByFieldName("property")
		obj := v.ChildByFieldName("object")
		if prop == nil || obj == nil || prop.Type() != "property_identifier" {
			return 0
		}
		inner := b.valueOf(obj, scope)
		if inner == 0 {
			return 0
		}
		p := b.g.AddPush(b.text(prop))
		dot := b.g.AddPush(memberSymbol)
		b.g.AddEdge(p, dot, 0)
		b.g.AddEdge(dot, inner, 0)
		return p
	case "parenthesized_expression", "non_null_expression":
		if inner := v.NamedChild(0); inner != nil {
			return b.valueOf(inner, scope)
		}
	}
	return 0
}

func (b *fileBuilder) memberExpression(n *sitter.Node, e env) {
	obj := n.ChildByFieldName("object")
	prop := n.ChildByFieldName("property")
	if prop != nil && prop.Type() == "property_identifier" && obj != nil {
		ref := b.g.AddReference(b.text(prop), builder.SpanOf(prop))
		dot := b.g.AddPush(memberSymbol)
		b.g.AddEdge(ref, dot, 0)
		if target := b.valueOf(obj, e.block); target != 0 {
			b.g.AddEdge(dot, target, 0)
		}
	}
	if obj != nil {
		b.visit(obj, e)
	}
}

// assignment handles CommonJS exports ("exports.x = v",
// "module.exports.x = v" and "module.exports = {...}") and visits
// everything else as plain expressions.
func (b *fileBuilder) assignment(n *sitter.Node, e env) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left != nil && right != nil && left.Type() == "member_expression" {
		obj := left.ChildByFieldName("object")
		prop := left.ChildByFieldName("property")
		if obj != nil && prop != nil {
			objText := b.text(obj)
			switch {
			case objText == "module" && b.text(prop) == "exports" && right.Type() == "object":
				members := b.objectMembers(right, e)
				b.g.AddEdge(b.exports, members, 0)
				return
			case objText == "exports" || objText == "module.exports":
				def := b.define(b.exports, prop)
				b.aliasValue(def, right, e)
				return
			}
		}
	}
	b.visitChildren(n, e)
}

func (b *fileBuilder) functionDeclaration(n *sitter.Node, e env) graph.NodeID {
	var def graph.NodeID
	if name := n.ChildByFieldName("name"); name != nil {
		def = b.define(e.block, name)
	}
	b.functionBody(n, e, nil)
	return def
}

// function visits a function or arrow expression. A named function
// expression binds its name inside its own scope only.
func (b *fileBuilder) function(n *sitter.Node, e env) graph.NodeID {
	return b.functionBody(n, e, n.ChildByFieldName("name"))
}

func (b *fileBuilder) functionBody(n *sitter.Node, e env, ownName *sitter.Node) graph.NodeID {
	scope := b.child(e.block)
	if ownName != nil {
		b.define(scope, ownName)
	}
	inner := env{block: scope, fn: scope}
	if p := n.ChildByFieldName("parameter"); p != nil {
		b.declarePattern(p, scope)
	}
	for _, field := range []string{"type_parameters", "parameters", "return_type"} {
		c := n.ChildByFieldName(field)
		if c == nil {
			continue
		}
		if field == "parameters" {
			b.parameters(c, scope, inner)
			continue
		}
		b.visit(c, inner)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Type() == "statement_block" {
			b.visitChildren(body, inner)
		} else {
			b.visit(body, inner)
		}
	}
	return scope
}

func (b *fileBuilder) parameters(n *sitter.Node, scope graph.NodeID, e env) {
	for _, p := range builder.NamedChildren(n) {
		switch p.Type() {
		case "required_parameter", "optional_parameter":
			if pat := p.ChildByFieldName("pattern"); pat != nil {
				b.declarePattern(pat, scope)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				b.visit(t, e)
			}
			if v := p.ChildByFieldName("value"); v != nil {
				b.visit(v, e)
			}
		case "comment", "decorator":
			b.visit(p, e)
		default:
			b.declarePatternIn(p, scope, e)
		}
	}
}

func (b *fileBuilder) declarePattern(p *sitter.Node, scope graph.NodeID) []graph.NodeID {
	return b.declarePatternIn(p, scope, env{block: scope, fn: scope})
}

// declarePatternIn binds every name in a binding pattern to scope, and
// visits default values in e.
func (b *fileBuilder) declarePatternIn(p *sitter.Node, scope graph.NodeID, e env) []graph.NodeID {
	switch p.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []graph.NodeID{b.define(scope, p)}
	case "assignment_pattern", "object_assignment_pattern":
		var defs []graph.NodeID
		if left := p.ChildByFieldName("left"); left != nil {
			defs = b.declarePatternIn(left, scope, e)
		}
		if right := p.ChildByFieldName("right"); right != nil {
			b.visit(right, e)
		}
		return defs
	case "pair_pattern":
		if v := p.ChildByFieldName("value"); v != nil {
			return b.declarePatternIn(v, scope, e)
		}
	case "object_pattern", "array_pattern", "rest_pattern":
		var defs []graph.NodeID
		for _, c := range builder.NamedChildren(p) {
			defs = append(defs, b.declarePatternIn(c, scope, e)...)
		}
		return defs
	case "comment":
	default:
		b.visit(p, e)
	}
	return nil
}

// class visits a class body. Members are bound in a member scope reachable
// through def (when non-zero) by member access, and "this" inside methods
// resolves to the same members. It returns the member scope.
func (b *fileBuilder) class(n *sitter.Node, e env, def graph.NodeID) graph.NodeID {
	lexical := b.child(e.block)
	inner := env{block: lexical, fn: lexical}
	members := b.g.AddScope(false)
	if def != 0 {
		b.withMembers(def, members)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		self := b.g.AddDefinition("this", builder.SpanOf(name))
		b.g.AddEdge(lexical, self, 0)
		b.withMembers(self, members)
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		b.visit(tp, inner)
	}
	for _, c := range builder.NamedChildren(n) {
		if c.Type() != "class_heritage" {
			continue
		}
		for _, h := range builder.NamedChildren(c) {
			// JavaScript puts the superclass expression directly under
			// class_heritage; TypeScript wraps it in extends_clause.
			target := h
			if h.Type() == "extends_clause" {
				if v := h.ChildByFieldName("value"); v != nil {
					target = v
				} else if first := h.NamedChild(0); first != nil {
					target = first
				}
			}
			if head := b.valueOf(target, e.block); head != 0 {
				push := b.g.AddPush(memberSymbol)
				b.g.AddEdge(members, push, 1)
				b.g.AddEdge(push, head, 0)
			}
			b.visit(h, e)
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return members
	}
	for _, m := range builder.NamedChildren(body) {
		switch m.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			if name := m.ChildByFieldName("name"); name != nil && name.Type() == "property_identifier" {
				b.define(members, name)
			}
			b.functionBody(m, inner, nil)
		case "field_definition", "public_field_definition":
			name := m.ChildByFieldName("property")
			if name == nil {
				name = m.ChildByFieldName("name")
			}
			if name != nil && name.Type() == "property_identifier" {
				def := b.define(members, name)
				if v := m.ChildByFieldName("value"); v != nil {
					b.aliasValue(def, v, inner)
				}
			} else if v := m.ChildByFieldName("value"); v != nil {
				b.visit(v, inner)
			}
			if t := m.ChildByFieldName("type"); t != nil {
				b.visit(t, inner)
			}
		default:
			b.visit(m, inner)
		}
	}
	return members
}

// objectMembers binds the properties of an object literal in a fresh
// member scope, visits the values, and returns the scope.
func (b *fileBuilder) objectMembers(n *sitter.Node, e env) graph.NodeID {
	members := b.g.AddScope(false)
	for _, c := range builder.NamedChildren(n) {
		switch c.Type() {
		case "pair":
			key := c.ChildByFieldName("key")
			value := c.ChildByFieldName("value")
			if key != nil && (key.Type() == "property_identifier" || key.Type() == "string") {
				def := b.g.AddDefinition(unquote(b.text(key)), builder.SpanOf(key))
				b.g.AddEdge(members, def, 0)
				if value != nil {
					b.aliasValue(def, value, e)
				}
				continue
			}
			if value != nil {
				b.visit(value, e)
			}
		case "shorthand_property_identifier":
			def := b.define(members, c)
			last := b.chain(def, b.text(c))
			b.g.AddEdge(last, e.block, 0)
			b.reference(e.block, c)
		case "method_definition":
			if name := c.ChildByFieldName("name"); name != nil && name.Type() == "property_identifier" {
				b.define(members, name)
			}
			b.functionBody(c, e, nil)
		default:
			b.visit(c, e)
		}
	}
	return members
}

func (b *fileBuilder) forIn(n *sitter.Node, e env) {
	inner := b.child(e.block)
	ie := env{block: inner, fn: e.fn}
	declared := false
	target := inner
	for _, c := range builder.Children(n) {
		switch c.Type() {
		case "let", "const":
			declared = true
		case "var":
			declared = true
			target = e.fn
		}
	}
	if left := n.ChildByFieldName("left"); left != nil {
		if declared {
			b.declarePatternIn(left, target, ie)
		} else {
			b.visit(left, ie)
		}
	}
	if right := n.ChildByFieldName("right"); right != nil {
		b.visit(right, e)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.visit(body, ie)
	}
}

func (b *fileBuilder) typeDeclaration(n *sitter.Node, e env) []graph.NodeID {
	name := n.ChildByFieldName("name")
	if name == nil {
		b.visitChildren(n, e)
		return nil
	}
	def := b.define(e.block, name)
	inner := env{block: b.child(e.block), fn: e.fn}
	if n.Type() == "enum_declaration" {
		members := b.g.AddScope(false)
		b.withMembers(def, members)
		if body := n.ChildByFieldName("body"); body != nil {
			for _, m := range builder.NamedChildren(body) {
				switch m.Type() {
				case "property_identifier":
					b.define(members, m)
				case "enum_assignment":
					if mn := m.ChildByFieldName("name"); mn != nil {
						b.define(members, mn)
					}
					if v := m.ChildByFieldName("value"); v != nil {
						b.visit(v, e)
					}
				}
			}
		}
		return []graph.NodeID{def}
	}
	for _, c := range builder.NamedChildren(n) {
		if sameNode(c, name) {
			continue
		}
		b.visit(c, inner)
	}
	return []graph.NodeID{def}
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
