package python

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

// env tracks where names are bound and looked up. Inside a class body
// definitions go to the class members while lookups still see the
// enclosing scope; functions nested in a class skip the class entirely.
type env struct {
	defs   graph.NodeID
	refs   graph.NodeID
	lookup graph.NodeID // parent scope for nested functions and lambdas

	class graph.NodeID // members of the enclosing class, 0 outside methods
	self  string       // name of the method's receiver parameter
}

type fileBuilder struct {
	t      *builder.Tree
	g      *graph.FileGraph
	module graph.NodeID
}

func (b *fileBuilder) text(n *sitter.Node) string { return b.t.Text(n) }

func (b *fileBuilder) define(scope graph.NodeID, name *sitter.Node) graph.NodeID {
	def := b.g.AddDefinition(b.text(name), builder.SpanOf(name))
	b.g.AddEdge(scope, def, 0)
	return def
}

func (b *fileBuilder) reference(scope graph.NodeID, n *sitter.Node) {
	ref := b.g.AddReference(b.text(n), builder.SpanOf(n))
	b.g.AddEdge(ref, scope, 0)
}

func (b *fileBuilder) child(parent graph.NodeID) graph.NodeID {
	s := b.g.AddScope(false)
	b.g.AddEdge(s, parent, 1)
	return s
}

func (b *fileBuilder) withMembers(def, members graph.NodeID) {
	dot := b.g.AddPop(memberSymbol)
	b.g.AddEdge(def, dot, 0)
	b.g.AddEdge(dot, members, 0)
}

// toModule links from to the module named key: from → push key → root.
func (b *fileBuilder) toModule(from graph.NodeID, key string, precedence int) {
	push := b.g.AddPush(modulePrefix + key)
	b.g.AddEdge(from, push, precedence)
	b.g.AddEdge(push, graph.RootID, 0)
}

func (b *fileBuilder) visitChildren(n *sitter.Node, e env) {
	for _, c := range builder.NamedChildren(n) {
		b.visit(c, e)
	}
}

func (b *fileBuilder) visit(n *sitter.Node, e env) {
	switch n.Type() {
	case "comment", "global_statement", "nonlocal_statement", "future_import_statement":
	case "import_statement":
		b.importStatement(n, e)
	case "import_from_statement":
		b.importFrom(n, e)
	case "function_definition":
		b.functionDefinition(n, e)
	case "class_definition":
		b.classDefinition(n, e)
	case "decorated_definition":
		for _, c := range builder.NamedChildren(n) {
			if c.Type() == "decorator" {
				b.visitChildren(c, e)
			}
		}
		if def := n.ChildByFieldName("definition"); def != nil {
			b.visit(def, e)
		}
	case "assignment":
		b.assignment(n, e)
	case "augmented_assignment":
		b.visitChildren(n, e)
	case "for_statement":
		if left := n.ChildByFieldName("left"); left != nil {
			b.declareTarget(left, e)
		}
		for _, field := range []string{"right", "body", "alternative"} {
			if c := n.ChildByFieldName(field); c != nil {
				b.visit(c, e)
			}
		}
	case "as_pattern":
		b.asPattern(n, e)
	case "except_clause":
		b.exceptClause(n, e)
	case "named_expression":
		if name := n.ChildByFieldName("name"); name != nil {
			b.define(e.defs, name)
		}
		if v := n.ChildByFieldName("value"); v != nil {
			b.visit(v, e)
		}
	case "lambda":
		scope := b.child(e.lookup)
		inner := env{defs: scope, refs: scope, lookup: scope}
		if params := n.ChildByFieldName("parameters"); params != nil {
			b.parameters(params, scope, e)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			b.visit(body, inner)
		}
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		b.comprehension(n, e)
	case "attribute":
		b.attribute(n, e)
	case "keyword_argument":
		if v := n.ChildByFieldName("value"); v != nil {
			b.visit(v, e)
		}
	case "identifier":
		b.reference(e.refs, n)
	default:
		b.visitChildren(n, e)
	}
}

func (b *fileBuilder) importStatement(n *sitter.Node, e env) {
	for _, c := range builder.NamedChildren(n) {
		switch c.Type() {
		case "dotted_name":
			parts := builder.NamedChildren(c)
			if len(parts) == 0 {
				continue
			}
			def := b.define(e.defs, parts[0])
			b.dottedImport(def, parts)
		case "aliased_import":
			name := c.ChildByFieldName("name")
			alias := c.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			def := b.define(e.defs, alias)
			dot := b.g.AddPop(memberSymbol)
			b.g.AddEdge(def, dot, 0)
			b.toModule(dot, b.text(name), 0)
		}
	}
}

// dottedImport wires "import a.b.c": a resolves to module a, a.b to
// module a.b, and so on.
func (b *fileBuilder) dottedImport(def graph.NodeID, parts []*sitter.Node) {
	cur := b.g.AddPop(memberSymbol)
	b.g.AddEdge(def, cur, 0)
	key := b.text(parts[0])
	b.toModule(cur, key, 0)
	for _, p := range parts[1:] {
		name := b.text(p)
		pop := b.g.AddPop(name)
		dot := b.g.AddPop(memberSymbol)
		b.g.AddEdge(cur, pop, 1)
		b.g.AddEdge(pop, dot, 0)
		key += "." + name
		b.toModule(dot, key, 0)
		cur = dot
	}
}

func (b *fileBuilder) importFrom(n *sitter.Node, e env) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	key := b.text(mod)
	if mod.Type() == "relative_import" {
		dots := 0
		name := ""
		for _, c := range builder.NamedChildren(mod) {
			switch c.Type() {
			case "import_prefix":
				dots = strings.Count(b.text(c), ".")
			case "dotted_name":
				name = b.text(c)
			}
		}
		key = relativeModule(b.t.Path, dots, name)
	}

	for _, c := range builder.NamedChildren(n) {
		if c.Type() == "wildcard_import" {
			b.toModule(e.defs, key, 1)
			return
		}
	}

	for _, c := range builder.NamedChildren(n) {
		if mod.StartByte() == c.StartByte() {
			continue
		}
		var name, local *sitter.Node
		switch c.Type() {
		case "dotted_name":
			name, local = c, c
		case "aliased_import":
			name = c.ChildByFieldName("name")
			local = c.ChildByFieldName("alias")
		default:
			continue
		}
		if name == nil || local == nil {
			continue
		}
		imported := b.text(name)
		def := b.define(e.defs, local)
		push := b.g.AddPush(imported)
		b.g.AddEdge(def, push, 0)
		b.toModule(push, key, 0)
		// The name may also be a submodule of the package.
		dot := b.g.AddPop(memberSymbol)
		b.g.AddEdge(def, dot, 1)
		b.toModule(dot, key+"."+imported, 0)
	}
}

func (b *fileBuilder) functionDefinition(n *sitter.Node, e env) {
	name := n.ChildByFieldName("name")
	if name != nil {
		b.define(e.defs, name)
	}
	scope := b.child(e.lookup)
	inner := env{defs: scope, refs: scope, lookup: scope, class: e.class, self: e.self}

	if params := n.ChildByFieldName("parameters"); params != nil {
		first := b.parameters(params, scope, e)
		// A method's first parameter is its receiver.
		if e.class != 0 && e.self == "" && first != nil {
			def := b.g.AddPop(memberSymbol)
			b.g.AddEdge(first.def, def, 0)
			b.g.AddEdge(def, e.class, 0)
			inner.self = first.name
		}
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		b.visit(rt, e)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.visitChildren(body, inner)
	}
}

type param struct {
	def  graph.NodeID
	name string
}

// parameters binds parameter names in scope and visits defaults and
// annotations in the enclosing env. It returns the first positional
// parameter.
func (b *fileBuilder) parameters(n *sitter.Node, scope graph.NodeID, outer env) *param {
	var first *param
	bind := func(id *sitter.Node) {
		if id == nil || id.Type() != "identifier" {
			return
		}
		def := b.define(scope, id)
		if first == nil {
			first = &param{def: def, name: b.text(id)}
		}
	}
	for _, p := range builder.NamedChildren(n) {
		switch p.Type() {
		case "identifier":
			bind(p)
		case "default_parameter", "typed_default_parameter":
			bind(p.ChildByFieldName("name"))
			for _, field := range []string{"type", "value"} {
				if c := p.ChildByFieldName(field); c != nil {
					b.visit(c, outer)
				}
			}
		case "typed_parameter":
			for _, c := range builder.NamedChildren(p) {
				switch c.Type() {
				case "identifier":
					bind(c)
				case "list_splat_pattern", "dictionary_splat_pattern":
					if first == nil {
						first = &param{}
					}
					if id := c.NamedChild(0); id != nil && id.Type() == "identifier" {
						b.define(scope, id)
					}
				}
			}
			if t := p.ChildByFieldName("type"); t != nil {
				b.visit(t, outer)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if first == nil {
				first = &param{}
			}
			if id := p.NamedChild(0); id != nil && id.Type() == "identifier" {
				b.define(scope, id)
			}
		}
	}
	if first != nil && first.def == 0 {
		return nil
	}
	return first
}

func (b *fileBuilder) classDefinition(n *sitter.Node, e env) {
	members := b.g.AddScope(false)
	if name := n.ChildByFieldName("name"); name != nil {
		def := b.define(e.defs, name)
		b.withMembers(def, members)
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for _, s := range builder.NamedChildren(supers) {
			if s.Type() == "keyword_argument" {
				b.visit(s, e)
				continue
			}
			if head := b.valueOf(s, e.refs); head != 0 {
				push := b.g.AddPush(memberSymbol)
				b.g.AddEdge(members, push, 1)
				b.g.AddEdge(push, head, 0)
			}
			b.visit(s, e)
		}
	}
	// Lookups inside the body see the members first, then the enclosing
	// scope.
	lexical := b.g.AddScope(false)
	b.g.AddEdge(lexical, members, 0)
	b.g.AddEdge(lexical, e.refs, 1)
	inner := env{defs: members, refs: lexical, lookup: e.lookup, class: members}
	if body := n.ChildByFieldName("body"); body != nil {
		b.visitChildren(body, inner)
	}
}

func (b *fileBuilder) assignment(n *sitter.Node, e env) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if t := n.ChildByFieldName("type"); t != nil {
		b.visit(t, e)
	}
	if left == nil {
		b.visitChildren(n, e)
		return
	}
	defs := b.declareTarget(left, e)
	if right == nil {
		return
	}
	if len(defs) == 1 && left.Type() == "identifier" {
		b.aliasValue(defs[0], right, e)
		return
	}
	b.visit(right, e)
}

// aliasValue routes member access on def into the value, and visits the
// value.
func (b *fileBuilder) aliasValue(def graph.NodeID, value *sitter.Node, e env) {
	if head := b.valueOf(value, e.refs); head != 0 {
		pop := b.g.AddPop(memberSymbol)
		push := b.g.AddPush(memberSymbol)
		b.g.AddEdge(def, pop, 0)
		b.g.AddEdge(pop, push, 0)
		b.g.AddEdge(push, head, 0)
	}
	b.visit(value, e)
}

// declareTarget binds the names of an assignment target.
func (b *fileBuilder) declareTarget(t *sitter.Node, e env) []graph.NodeID {
	switch t.Type() {
	case "identifier":
		return []graph.NodeID{b.define(e.defs, t)}
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list", "tuple", "list",
		"parenthesized_expression", "list_splat_pattern", "list_splat":
		var defs []graph.NodeID
		for _, c := range builder.NamedChildren(t) {
			defs = append(defs, b.declareTarget(c, e)...)
		}
		return defs
	case "attribute":
		obj := t.ChildByFieldName("object")
		attr := t.ChildByFieldName("attribute")
		if e.class != 0 && e.self != "" && obj != nil && attr != nil &&
			obj.Type() == "identifier" && b.text(obj) == e.self {
			b.reference(e.refs, obj)
			return []graph.NodeID{b.define(e.class, attr)}
		}
	}
	b.visit(t, e)
	return nil
}

func (b *fileBuilder) asPattern(n *sitter.Node, e env) {
	alias := n.ChildByFieldName("alias")
	for _, c := range builder.NamedChildren(n) {
		if alias != nil && c.StartByte() == alias.StartByte() {
			continue
		}
		b.visit(c, e)
	}
	if alias == nil {
		return
	}
	target := alias
	if alias.Type() == "as_pattern_target" {
		if inner := alias.NamedChild(0); inner != nil {
			target = inner
		}
	}
	b.declareTarget(target, e)
}

// exceptClause handles the older "except E as name" form in which the
// name is a bare child following the "as" token.
func (b *fileBuilder) exceptClause(n *sitter.Node, e env) {
	afterAs := false
	for _, c := range builder.Children(n) {
		switch {
		case c.Type() == "as":
			afterAs = true
		case !c.IsNamed():
		case afterAs && c.Type() == "identifier":
			b.define(e.defs, c)
			afterAs = false
		default:
			b.visit(c, e)
		}
	}
}

func (b *fileBuilder) comprehension(n *sitter.Node, e env) {
	scope := b.child(e.refs)
	inner := env{defs: scope, refs: scope, lookup: scope}
	var rest []*sitter.Node
	for _, c := range builder.NamedChildren(n) {
		if c.Type() != "for_in_clause" {
			rest = append(rest, c)
			continue
		}
		if left := c.ChildByFieldName("left"); left != nil {
			b.declareTarget(left, inner)
		}
		if right := c.ChildByFieldName("right"); right != nil {
			b.visit(right, inner)
		}
	}
	for _, c := range rest {
		b.visit(c, inner)
	}
}

func (b *fileBuilder) attribute(n *sitter.Node, e env) {
	obj := n.ChildByFieldName("object")
	attr := n.ChildByFieldName("attribute")
	if attr != nil && obj != nil {
		ref := b.g.AddReference(b.text(attr), builder.SpanOf(attr))
		dot := b.g.AddPush(memberSymbol)
		b.g.AddEdge(ref, dot, 0)
		if head := b.valueOf(obj, e.refs); head != 0 {
			b.g.AddEdge(dot, head, 0)
		}
	}
	if obj != nil {
		b.visit(obj, e)
	}
}

// valueOf returns the head of a push chain resolving v as a value. Calls
// resolve as their callee, so instances share the members of their class.
func (b *fileBuilder) valueOf(v *sitter.Node, scope graph.NodeID) graph.NodeID {
	switch v.Type() {
	case "identifier":
		p := b.g.AddPush(b.text(v))
		b.g.AddEdge(p, scope, 0)
		return p
	case "attribute":
		obj := v.ChildByFieldName("object")
		attr := v.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return 0
		}
		inner := b.valueOf(obj, scope)
		if inner == 0 {
			return 0
		}
		p := b.g.AddPush(b.text(attr))
		dot := b.g.AddPush(memberSymbol)
		b.g.AddEdge(p, dot, 0)
		b.g.AddEdge(dot, inner, 0)
		return p
	case "call":
		if fn := v.ChildByFieldName("function"); fn != nil {
			return b.valueOf(fn, scope)
		}
	case "parenthesized_expression":
		if inner := v.NamedChild(0); inner != nil {
			return b.valueOf(inner, scope)
		}
	}
	return 0
}
