package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jward/stackgraphs/internal/graph"
)

// CommitBatch replaces everything stored for b.File.Path within a single
// transaction. Readers see either the old graph or the new one.
//
// Order:
//  1. Delete the file's partial paths, edges and nodes
//  2. Upsert the file record
//  3. Insert nodes, edges and partial paths (skipped for a failed build)
func (s *Store) CommitBatch(b *Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	path := b.File.Path
	for _, q := range []string{
		"DELETE FROM partial_paths WHERE file_path = ?",
		"DELETE FROM edges WHERE file_path = ?",
		"DELETE FROM nodes WHERE file_path = ?",
	} {
		if _, err := tx.Exec(q, path); err != nil {
			return fmt.Errorf("commit batch: clear %s: %w", path, err)
		}
	}

	f := b.File
	if f.IndexedAt.IsZero() {
		f.IndexedAt = time.Now().UTC()
	}
	if b.BuildErr != nil || b.Graph == nil {
		f.Status = StatusError
		if b.BuildErr != nil {
			f.Error = b.BuildErr.Error()
		}
		f.Nodes, f.Edges, f.Paths = 0, 0, 0
	} else {
		f.Status = StatusIndexed
		f.Error = ""
		f.Nodes, f.Edges, f.Paths = len(b.Graph.Nodes), len(b.Graph.Edges), len(b.Paths)
	}
	if err := upsertFileTx(tx, &f); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	if f.Status == StatusIndexed {
		if err := insertGraphTx(tx, path, b.Graph); err != nil {
			return fmt.Errorf("commit batch: %s: %w", path, err)
		}
		if err := insertPathsTx(tx, path, b.Paths); err != nil {
			return fmt.Errorf("commit batch: %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	b.File = f
	return nil
}

// MarkPending records that path is due for indexing. Its stored graph, if
// any, stays visible until the next commit.
func (s *Store) MarkPending(path, language string) error {
	_, err := s.db.Exec(
		`INSERT INTO files (path, language, status) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET language = excluded.language, status = excluded.status`,
		path, language, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark pending %s: %w", path, err)
	}
	return nil
}

func upsertFileTx(tx *sql.Tx, f *File) error {
	_, err := tx.Exec(
		`INSERT INTO files (path, language, fingerprint, rules_version, status, error, indexed_at,
			node_count, edge_count, path_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			language = excluded.language, fingerprint = excluded.fingerprint,
			rules_version = excluded.rules_version, status = excluded.status,
			error = excluded.error, indexed_at = excluded.indexed_at,
			node_count = excluded.node_count, edge_count = excluded.edge_count,
			path_count = excluded.path_count`,
		f.Path, f.Language, f.Fingerprint, f.RulesVersion, f.Status, nullString(f.Error), f.IndexedAt,
		f.Nodes, f.Edges, f.Paths,
	)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", f.Path, err)
	}
	return nil
}

func insertGraphTx(tx *sql.Tx, path string, g *graph.FileGraph) error {
	nodeStmt, err := tx.Prepare(
		`INSERT INTO nodes (file_path, node_id, kind, symbol, scope_id, is_exported,
			start_line, start_col, end_line, end_col, start_byte, end_byte)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range g.Nodes {
		var scope sql.NullInt64
		if n.Scope != 0 {
			scope = sql.NullInt64{Int64: int64(n.Scope), Valid: true}
		}
		var sl, sc, el, ec, sb, eb sql.NullInt64
		if n.Span != nil {
			sl, sc = nullInt(n.Span.Start.Line), nullInt(n.Span.Start.Column)
			el, ec = nullInt(n.Span.End.Line), nullInt(n.Span.End.Column)
			sb, eb = nullInt(int(n.Span.StartByte)), nullInt(int(n.Span.EndByte))
		}
		if _, err := nodeStmt.Exec(path, n.ID, n.Kind.String(), nullString(n.Symbol), scope, n.Exported,
			sl, sc, el, ec, sb, eb); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(
		"INSERT INTO edges (file_path, ordinal, from_id, to_id, precedence) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges {
		if _, err := edgeStmt.Exec(path, e.Ordinal, e.From, e.To, e.Precedence); err != nil {
			return fmt.Errorf("insert edge %d: %w", e.Ordinal, err)
		}
	}
	return nil
}

func insertPathsTx(tx *sql.Tx, path string, paths []graph.PartialPath) error {
	stmt, err := tx.Prepare(
		`INSERT INTO partial_paths (file_path, seq, start_node, start_root, leading_symbol, end_node,
			precedence, pre, post, scopes, nodes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare path insert: %w", err)
	}
	defer stmt.Close()
	for i := range paths {
		p := &paths[i]
		if _, err := stmt.Exec(path, i, p.Start, p.Start == graph.RootID, p.LeadingSymbol(), p.End,
			p.Precedence, marshalJSON(p.Pre), marshalJSON(p.Post), marshalJSON(p.Scopes), marshalJSON(p.Nodes)); err != nil {
			return fmt.Errorf("insert path %d: %w", i, err)
		}
	}
	return nil
}
