package stackgraphs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findModuleRoot walks up from cwd to find go.mod, returning the repo root.
func findModuleRoot(t testing.TB) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find module root")
		}
		dir = parent
	}
}

// TestIntegration_IndexThenQuery runs the two halves of the pipeline in
// separate handles on the same database.
func TestIntegration_IndexThenQuery(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---index.js---
import { foo } from "./module"
         ^{ref1}

const baz = foo
            ^{query}

console.log(baz)

;---module.js---
export const foo = "bar"
             ^{ref2}
`)
	dbPath := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	require.NoError(t, Index(ctx, []string{f.dir}, dbPath))

	got, err := QueryDefinition(ctx, f.pos("query"), dbPath)
	require.NoError(t, err)
	assert.Equal(t, []Position{f.pos("ref1"), f.pos("ref2")}, got)

	q, err := NewQuerier(dbPath)
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, []string{"ref1", "ref2"}, f.definitions(t, q, "query"))
}

func TestIntegration_TypeScriptSpecifierForms(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"./module", "./module.js", "./module.ts"} {
		t.Run(spec, func(t *testing.T) {
			t.Parallel()
			f := writeFixture(t, `
;---index.ts---
import { foo } from "`+spec+`";
         ^{ref1}
const baz: number = Number(foo);
                           ^{query}
console.log(baz);

;---module.ts---
export const foo: string = "42";
             ^{ref2}
`)
			ix := newTestIndexer(t)
			require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))
			assert.Equal(t, []string{"ref1", "ref2"}, f.definitions(t, ix.Querier(), "query"))
		})
	}
}

func TestIntegration_Python(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---index.py---
from module import definition
                   ^{ref1}

print(definition)
      ^{query}

;---module.py---
definition = "definition"
^{ref2}
`)
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))
	assert.Equal(t, []string{"ref1", "ref2"}, f.definitions(t, ix.Querier(), "query"))
}

func TestIntegration_Java(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---a/Util.java---
package a;

public class Util {
    public static int helper() { return 1; }
                      ^{def}
}
;---b/Main.java---
package b;

import a.Util;

class Main {
    int run() { return Util.helper(); }
                            ^{call}
}
`)
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))

	records, err := ix.StatusAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "java", records[0].Language)
	assert.Regexp(t, `^java/risor-[0-9a-f]{16}$`, records[0].RulesVersion)

	assert.Equal(t, []string{"def"}, f.definitions(t, ix.Querier(), "call"))
}

func TestIntegration_TSXAndDecorators(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
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

;---decorated.ts---
class A {
    @decorator()
    method() {
        // ...
    }
}
`)
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))

	records, err := ix.StatusAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, StatusIndexed, r.Status, r.Path)
		assert.Equal(t, "typescript", r.Language, r.Path)
	}
	assert.Equal(t, []string{"import", "def"}, f.definitions(t, ix.Querier(), "use"))
}

func TestIntegration_ResolveReportsSymbolAndPrecedence(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---main.js---
let x = 1
    ^{outer}
{
  let x = 2
      ^{inner}
  x
  ^{use}
}
`)
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))

	defs, err := ix.Querier().Resolve(context.Background(), f.pos("use"))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, f.pos("inner"), defs[0].Position)
	assert.Equal(t, f.pos("outer"), defs[1].Position)
	assert.Equal(t, "x", defs[0].Symbol)
	assert.Less(t, defs[0].Precedence, defs[1].Precedence)

	nearest := newTestIndexer(t, WithSearchOptions(SearchOptions{Shadowing: ShadowNearest}))
	require.NoError(t, nearest.IndexAll(context.Background(), []string{f.dir}))
	assert.Equal(t, []string{"inner"}, f.definitions(t, nearest.Querier(), "use"))
}

func TestIntegration_NoReferenceAtPosition(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---main.py---
x = 1
`)
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))

	for _, pos := range []Position{
		{Path: f.path("main.py"), Line: 0, Column: 3},
		{Path: f.path("main.py"), Line: 40, Column: 0},
		{Path: f.path("other.py"), Line: 0, Column: 0},
	} {
		got, err := ix.Querier().Definitions(context.Background(), pos)
		require.NoError(t, err, pos)
		assert.Empty(t, got, pos)
		assert.NotNil(t, got, pos)
	}
}

func TestIntegration_Symbols(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---shapes.py---
class Shape:
    def area(self):
        return 1

def make():
    return Shape()
`)
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))

	syms, err := ix.Querier().Symbols(context.Background(), f.path("shapes.py"))
	require.NoError(t, err)
	var names []string
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.Subset(t, names, []string{"Shape", "area", "make"})
	for i := 1; i < len(syms); i++ {
		prev, cur := syms[i-1].Position, syms[i].Position
		assert.True(t, prev.Line < cur.Line || (prev.Line == cur.Line && prev.Column <= cur.Column),
			"symbols out of order: %v then %v", prev, cur)
	}

	none, err := ix.Querier().Symbols(context.Background(), f.path("missing.py"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestIntegration_ConcurrentQueries runs queries from several goroutines
// while the indexer is idle.
func TestIntegration_ConcurrentQueries(t *testing.T) {
	t.Parallel()

	f := writeFixture(t, `
;---index.js---
import { foo } from "./module"
         ^{ref1}
foo
^{query}

;---module.js---
export const foo = "bar"
             ^{ref2}
`)
	ix := newTestIndexer(t, WithWorkers(2))
	require.NoError(t, ix.IndexAll(context.Background(), []string{f.dir}))

	q := ix.Querier()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := q.Definitions(context.Background(), f.pos("query"))
			if err != nil {
				errs <- err
				return
			}
			if len(got) != 2 {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

// TestIntegration_IndexTestdata indexes every golden source tree at once.
func TestIntegration_IndexTestdata(t *testing.T) {
	t.Parallel()

	root := filepath.Join(findModuleRoot(t), "testdata")
	ix := newTestIndexer(t)
	require.NoError(t, ix.IndexAll(context.Background(), []string{root}))

	records, err := ix.StatusAll()
	require.NoError(t, err)
	langs := make(map[string]int)
	for _, r := range records {
		assert.Equal(t, StatusIndexed, r.Status, "%s: %s", r.Path, r.Error)
		langs[r.Language]++
	}
	for _, lang := range ix.Languages() {
		assert.Positive(t, langs[lang], lang)
	}
}
