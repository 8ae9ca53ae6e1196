package ecmascript_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
	"github.com/jward/stackgraphs/internal/rules/ecmascript"
	"github.com/jward/stackgraphs/internal/testrepo"
)

func registry() *builder.Registry {
	reg := builder.NewRegistry()
	reg.Register(ecmascript.JavaScript(), ".js", ".jsx", ".mjs", ".cjs")
	reg.Register(ecmascript.TypeScript(), ".ts", ".mts", ".cts")
	reg.Register(ecmascript.TSX(), ".tsx")
	return reg
}

// definitions resolves the reference at the named position and returns the
// results as position names, so failures read as fixture markers.
func definitions(t *testing.T, fixture, at string) []string {
	t.Helper()
	repo := testrepo.MustParse(t, fixture)
	ctx := context.Background()
	m, err := repo.Build(ctx, "/repo", registry().ForFile)
	require.NoError(t, err)
	got, err := testrepo.Definitions(ctx, m, repo.Pos("/repo", at))
	require.NoError(t, err)

	byPos := make(map[graph.Position]string)
	for _, name := range repo.Names() {
		byPos[repo.Pos("/repo", name)] = name
	}
	names := make([]string, 0, len(got))
	for _, p := range got {
		if name, ok := byPos[p]; ok {
			names = append(names, name)
		} else {
			names = append(names, p.String())
		}
	}
	return names
}

func TestJS_ImportFromSibling(t *testing.T) {
	t.Parallel()

	fixture := `
;---index.js---
import { foo } from "./module"
         ^{ref1}

const baz = foo
            ^{query}

console.log(baz)

;---module.js---
export const foo = "bar"
             ^{ref2}

`
	assert.Equal(t, []string{"ref1", "ref2"}, definitions(t, fixture, "query"))
}

func TestTS_ImportSpecifierForms(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"./module", "./module.js", "./module.ts"} {
		t.Run(spec, func(t *testing.T) {
			t.Parallel()
			fixture := `
;---index.ts---
import { foo } from "` + spec + `";
         ^{ref1}
const baz: number = Number(foo);
                           ^{query}
console.log(baz);

;---module.ts---
export const foo: string = "42";
             ^{ref2}

`
			assert.Equal(t, []string{"ref1", "ref2"}, definitions(t, fixture, "query"))
		})
	}
}

func TestTS_DecoratedMethodBuilds(t *testing.T) {
	t.Parallel()

	src := `class A {
    @decorator()
    method() {
        // ...
    }
}
`
	res, err := builder.Build(context.Background(),
		builder.Source{Path: "/repo/index.ts", Content: []byte(src)},
		ecmascript.TypeScript(), builder.DefaultLimits())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Paths)
}

func TestJS_ImportForms(t *testing.T) {
	t.Parallel()

	fixture := `
;---lib/index.js---
export function helper() {}
                ^{helper}
function main() {}
         ^{main}
export default main
export const value = 1
             ^{value}

;---app.js---
import { helper as h } from "./lib"
                   ^{alias}
import run from "./lib/index.js"
       ^{default}
import * as lib from "./lib"

h()
^{call_alias}
run()
^{call_default}
lib.value
    ^{member}
`
	assert.Equal(t, []string{"alias", "helper"}, definitions(t, fixture, "call_alias"))
	assert.Equal(t, []string{"default", "main"}, definitions(t, fixture, "call_default"))
	assert.Equal(t, []string{"value"}, definitions(t, fixture, "member"))
}

func TestJS_ReExports(t *testing.T) {
	t.Parallel()

	fixture := `
;---a.js---
export const foo = 1
             ^{def}
export const bar = 2
             ^{bar}

;---b.js---
export { foo } from "./a"
         ^{reexport}
export * from "./a"

;---main.js---
import { foo, bar } from "./b"
         ^{import_foo}
              ^{import_bar}
foo
^{use_foo}
bar
^{use_bar}
`
	assert.Equal(t, []string{"import_foo", "reexport", "def"}, definitions(t, fixture, "use_foo"))
	assert.Equal(t, []string{"import_bar", "bar"}, definitions(t, fixture, "use_bar"))
}

func TestJS_CyclicReexportTerminates(t *testing.T) {
	t.Parallel()

	fixture := `
;---a.js---
export * from "./b"

;---b.js---
export * from "./a"

;---main.js---
import { missing } from "./a"
         ^{import}
missing
^{use}
`
	assert.Equal(t, []string{"import"}, definitions(t, fixture, "use"))
}

func TestJS_CommonJS(t *testing.T) {
	t.Parallel()

	fixture := `
;---m.js---
const y = 2
      ^{y}
exports.x = 1
        ^{x}

;---n.js---
module.exports = { y: 3 }
                   ^{ny}

;---main.js---
const m = require("./m")
const { y } = require("./n")
        ^{import_y}
m.x
  ^{use_x}
y
^{use_y}
`
	assert.Equal(t, []string{"x"}, definitions(t, fixture, "use_x"))
	assert.Equal(t, []string{"import_y", "ny"}, definitions(t, fixture, "use_y"))
}

func TestJS_BlockScopesOrderByPrecedence(t *testing.T) {
	t.Parallel()

	fixture := `
;---main.js---
const x = 1
      ^{outer}
function f(x) {
           ^{param}
  {
    let x = 3
        ^{inner}
    x
    ^{use}
  }
}
`
	assert.Equal(t, []string{"inner", "param", "outer"}, definitions(t, fixture, "use"))
}

func TestJS_ClassMembers(t *testing.T) {
	t.Parallel()

	fixture := `
;---main.js---
class A {
      ^{class}
  m() {}
  ^{method}
  n() { this.m() }
             ^{this_call}
}
const a = new A()
              ^{ctor}
a.m()
  ^{call}
`
	assert.Equal(t, []string{"method"}, definitions(t, fixture, "this_call"))
	assert.Equal(t, []string{"method"}, definitions(t, fixture, "call"))
	assert.Equal(t, []string{"class"}, definitions(t, fixture, "ctor"))
}

func TestJS_ObjectLiteralMembers(t *testing.T) {
	t.Parallel()

	fixture := `
;---main.js---
const config = { port: 80, nested: { deep: true } }
                 ^{port}
                                     ^{deep}
config.port
       ^{use_port}
config.nested.deep
              ^{use_deep}
`
	assert.Equal(t, []string{"port"}, definitions(t, fixture, "use_port"))
	assert.Equal(t, []string{"deep"}, definitions(t, fixture, "use_deep"))
}

func TestJS_ArrowParamsAndCatch(t *testing.T) {
	t.Parallel()

	fixture := `
;---main.js---
const double = (n) => n * 2
                ^{param}
                      ^{use}
try {} catch (err) { err }
              ^{err}
                     ^{use_err}
`
	assert.Equal(t, []string{"param"}, definitions(t, fixture, "use"))
	assert.Equal(t, []string{"err"}, definitions(t, fixture, "use_err"))
}

func TestTS_TypeReferences(t *testing.T) {
	t.Parallel()

	fixture := `
;---types.ts---
export interface Shape { area(): number }
                 ^{iface}
export enum Color { Red, Green }
            ^{enum}
                         ^{green}

;---main.ts---
import { Shape, Color } from "./types"
         ^{import_shape}
                ^{import_color}
let s: Shape
       ^{use_shape}
let c = Color.Green
              ^{use_green}
`
	assert.Equal(t, []string{"import_shape", "iface"}, definitions(t, fixture, "use_shape"))
	assert.Equal(t, []string{"green"}, definitions(t, fixture, "use_green"))
}

func TestTSX_Component(t *testing.T) {
	t.Parallel()

	fixture := `
;---button.tsx---
export function Button(props: { label: string }) {
                ^{def}
  return <button>{props.label}</button>
}

;---app.tsx---
import { Button } from "./button"
         ^{import}
export const App = () => <Button label="ok" />
                          ^{use}
`
	assert.Equal(t, []string{"import", "def"}, definitions(t, fixture, "use"))
}

func TestJS_UnresolvedImportKeepsLocalBinding(t *testing.T) {
	t.Parallel()

	fixture := `
;---main.js---
import { ghost } from "./nowhere"
         ^{import}
import { pkg } from "some-package"
         ^{pkg}
ghost
^{use}
pkg
^{use_pkg}
`
	assert.Equal(t, []string{"import"}, definitions(t, fixture, "use"))
	assert.Equal(t, []string{"pkg"}, definitions(t, fixture, "use_pkg"))
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	src := []byte(`import { a } from "./a"
export const b = a.c
class K { m() { return this.b } }
`)
	build := func() *builder.Result {
		res, err := builder.Build(context.Background(),
			builder.Source{Path: "/repo/main.js", Content: src},
			ecmascript.JavaScript(), builder.DefaultLimits())
		require.NoError(t, err)
		return res
	}
	first, second := build(), build()
	opts := cmp.Options{
		cmpopts.IgnoreUnexported(graph.FileGraph{}),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(first.Graph, second.Graph, opts); diff != "" {
		t.Errorf("graph differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Paths, second.Paths, opts); diff != "" {
		t.Errorf("paths differ (-first +second):\n%s", diff)
	}
}

func TestBuild_ParseError(t *testing.T) {
	t.Parallel()

	_, err := builder.Build(context.Background(),
		builder.Source{Path: "/repo/bad.js", Content: []byte("const = ;\n")},
		ecmascript.JavaScript(), builder.DefaultLimits())
	var pe *builder.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/repo/bad.js", pe.Path)
}
