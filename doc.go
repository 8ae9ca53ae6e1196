// Package stackgraphs answers "go to definition" queries over a
// multi-language source tree using stack graphs.
//
// # Pipeline
//
// Indexing turns every source file into a small graph of scopes, symbol
// pushes and symbol pops, built by a language rule set from the file's
// tree-sitter syntax tree. Each graph is reduced to its partial paths,
// which are stored in SQLite keyed by file. Files are rebuilt only when
// their content or their rule set changes.
//
// Querying starts at the reference under a position and stitches stored
// partial paths from any number of files until it reaches definitions
// with nothing left on the symbol stack.
//
// # Usage
//
//	ix, err := stackgraphs.NewIndexer("index.db")
//	if err != nil { ... }
//	defer ix.Close()
//
//	ctx := context.Background()
//	err = ix.IndexAll(ctx, []string{"path/to/project"})
//	records, err := ix.StatusAll()
//
//	q := ix.Querier()
//	defs, err := q.Definitions(ctx, stackgraphs.Position{Path: "/abs/main.js", Line: 2, Column: 12})
//
// Lines and columns are 0-based. Columns are byte offsets within the line.
//
// # Languages
//
// JavaScript, TypeScript, TSX and Python rule sets are built in. Java is
// provided by an embedded Risor script, and [WithRulesDir] loads further
// scripted rule sets described by a languages.yaml manifest. See the
// internal/runtime package for the globals exposed to scripts.
//
// # Command
//
// cmd/stackgraphs wraps the Indexer in a CLI with index, status,
// definitions and symbols commands. Its watch command re-indexes on file
// changes and serve exposes the same operations as MCP tools over stdio.
package stackgraphs
