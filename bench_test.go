package stackgraphs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeBenchRepo writes n JavaScript modules that each import from the
// previous one, plus a main.js that uses the last.
func writeBenchRepo(b *testing.B, n int) (string, Position) {
	b.Helper()
	dir := b.TempDir()
	for i := 0; i < n; i++ {
		var src strings.Builder
		if i > 0 {
			fmt.Fprintf(&src, "import { value%d } from \"./mod%d\"\n", i-1, i-1)
		}
		fmt.Fprintf(&src, "export function helper%d(a, b) {\n  const sum = a + b\n  return sum * 2\n}\n", i)
		fmt.Fprintf(&src, "export class Widget%d {\n  render() { return helper%d(1, 2) }\n}\n", i, i)
		if i > 0 {
			fmt.Fprintf(&src, "export const value%d = value%d + 1\n", i, i-1)
		} else {
			src.WriteString("export const value0 = 1\n")
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("mod%d.js", i)), []byte(src.String()), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	main := fmt.Sprintf("import { value%d } from \"./mod%d\"\nconsole.log(value%d)\n", n-1, n-1, n-1)
	mainPath := filepath.Join(dir, "main.js")
	if err := os.WriteFile(mainPath, []byte(main), 0o644); err != nil {
		b.Fatal(err)
	}
	return dir, Position{Path: mainPath, Line: 1, Column: 12}
}

func newBenchIndexer(b *testing.B) *Indexer {
	b.Helper()
	ix, err := NewIndexer(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { ix.Close() })
	return ix
}

func BenchmarkIndexAll(b *testing.B) {
	dir, _ := writeBenchRepo(b, 50)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		ix := newBenchIndexer(b)
		b.StartTimer()
		if err := ix.IndexAll(ctx, []string{dir}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIndexAll_Unchanged(b *testing.B) {
	dir, _ := writeBenchRepo(b, 50)
	ctx := context.Background()
	ix := newBenchIndexer(b)
	if err := ix.IndexAll(ctx, []string{dir}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ix.IndexAll(ctx, []string{dir}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDefinitions(b *testing.B) {
	for _, n := range []int{1, 10, 50} {
		b.Run(fmt.Sprintf("chain-%d", n), func(b *testing.B) {
			dir, pos := writeBenchRepo(b, n)
			ctx := context.Background()
			ix := newBenchIndexer(b)
			if err := ix.IndexAll(ctx, []string{dir}); err != nil {
				b.Fatal(err)
			}
			q := ix.Querier()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				got, err := q.Definitions(ctx, pos)
				if err != nil {
					b.Fatal(err)
				}
				if len(got) == 0 {
					b.Fatal("no definitions")
				}
			}
		})
	}
}
