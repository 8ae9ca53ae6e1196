package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/jward/stackgraphs/internal/graph"
)

// Snapshot is a read-only view of the store. Every read made through it
// sees the same committed state.
type Snapshot struct {
	ctx context.Context
	tx  *sql.Tx
}

// Snapshot opens a read transaction. Close it when done.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	// Pin the snapshot before any caller query runs.
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM metadata").Scan(&n); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return &Snapshot{ctx: ctx, tx: tx}, nil
}

// Close releases the snapshot.
func (sn *Snapshot) Close() error {
	err := sn.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

const nodeColumns = `file_path, node_id, kind, symbol, scope_id, is_exported,
	start_line, start_col, end_line, end_col, start_byte, end_byte`

func scanNode(row scanner) (graph.NodeRef, graph.Node, error) {
	var ref graph.NodeRef
	var n graph.Node
	var id int64
	var kind string
	var symbol sql.NullString
	var scope, sl, sc, el, ec, sb, eb sql.NullInt64
	if err := row.Scan(&ref.File, &id, &kind, &symbol, &scope, &n.Exported,
		&sl, &sc, &el, &ec, &sb, &eb); err != nil {
		return ref, n, err
	}
	k, err := graph.ParseNodeKind(kind)
	if err != nil {
		return ref, n, fmt.Errorf("node %s#%d: %w: %v", ref.File, id, ErrInconsistent, err)
	}
	ref.ID = graph.NodeID(id)
	n.ID = ref.ID
	n.Kind = k
	n.Symbol = symbol.String
	n.Scope = graph.NodeID(scope.Int64)
	if sl.Valid {
		n.Span = &graph.Span{
			Start:     graph.Point{Line: int(sl.Int64), Column: int(sc.Int64)},
			End:       graph.Point{Line: int(el.Int64), Column: int(ec.Int64)},
			StartByte: uint32(sb.Int64),
			EndByte:   uint32(eb.Int64),
		}
	}
	return ref, n, nil
}

// ReferenceAt returns the innermost reference whose span contains pos.
// Ties go to the lowest node id.
func (sn *Snapshot) ReferenceAt(pos graph.Position) (graph.NodeRef, bool, error) {
	row := sn.tx.QueryRowContext(sn.ctx,
		`SELECT `+nodeColumns+` FROM nodes
		 WHERE file_path = ? AND kind = ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col > ?)
		        OR (start_line = end_line AND start_col = end_col AND start_line = ? AND start_col = ?))
		 ORDER BY end_byte - start_byte, node_id
		 LIMIT 1`,
		pos.Path, graph.KindReference.String(),
		pos.Line, pos.Line, pos.Column,
		pos.Line, pos.Line, pos.Column,
		pos.Line, pos.Column,
	)
	ref, _, err := scanNode(row)
	if err == sql.ErrNoRows {
		return graph.NodeRef{}, false, nil
	}
	if err != nil {
		return graph.NodeRef{}, false, fmt.Errorf("reference at %s: %w", pos, err)
	}
	return ref, true, nil
}

// Node returns a stored node. The root is synthesized.
func (sn *Snapshot) Node(ref graph.NodeRef) (graph.Node, bool, error) {
	if ref.IsRoot() {
		return graph.Node{ID: graph.RootID, Kind: graph.KindRoot}, true, nil
	}
	_, n, err := scanNode(sn.tx.QueryRowContext(sn.ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE file_path = ? AND node_id = ?", ref.File, ref.ID))
	if err == sql.ErrNoRows {
		return graph.Node{}, false, nil
	}
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("node %s: %w", ref, err)
	}
	return n, true, nil
}

// Definitions returns the definition nodes of path in position order.
func (sn *Snapshot) Definitions(path string) ([]graph.Node, error) {
	rows, err := sn.tx.QueryContext(sn.ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE file_path = ? AND kind = ?
		 ORDER BY start_line, start_col, node_id`,
		path, graph.KindDefinition.String())
	if err != nil {
		return nil, fmt.Errorf("definitions of %s: %w", path, err)
	}
	defer rows.Close()
	var out []graph.Node
	for rows.Next() {
		_, n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const pathColumns = `file_path, start_node, end_node, precedence, pre, post, scopes, nodes`

// PathsFromRoot yields the paths that start at the root and consume
// symbol first. An empty symbol selects paths with no precondition.
func (sn *Snapshot) PathsFromRoot(symbol string) iter.Seq2[*graph.PartialPath, error] {
	return sn.paths(
		`SELECT `+pathColumns+` FROM partial_paths
		 WHERE start_root = 1 AND leading_symbol = ?
		 ORDER BY file_path, seq`, symbol)
}

// PathsFromNode yields the paths that start at ref.
func (sn *Snapshot) PathsFromNode(ref graph.NodeRef) iter.Seq2[*graph.PartialPath, error] {
	if ref.IsRoot() {
		return sn.PathsFromRoot("")
	}
	return sn.paths(
		`SELECT `+pathColumns+` FROM partial_paths
		 WHERE file_path = ? AND start_node = ?
		 ORDER BY seq`, ref.File, ref.ID)
}

// paths runs query on every range. Rows are read fully before the first
// yield so callers may issue other reads on the snapshot while iterating.
func (sn *Snapshot) paths(query string, args ...any) iter.Seq2[*graph.PartialPath, error] {
	return func(yield func(*graph.PartialPath, error) bool) {
		loaded, err := sn.loadPaths(query, args...)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, p := range loaded {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (sn *Snapshot) loadPaths(query string, args ...any) ([]*graph.PartialPath, error) {
	rows, err := sn.tx.QueryContext(sn.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()
	var out []*graph.PartialPath
	for rows.Next() {
		p := &graph.PartialPath{}
		var start, end int64
		var pre, post, scopes, nodes string
		if err := rows.Scan(&p.File, &start, &end, &p.Precedence, &pre, &post, &scopes, &nodes); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		p.Start, p.End = graph.NodeID(start), graph.NodeID(end)
		for _, part := range []struct {
			text string
			dst  any
		}{{pre, &p.Pre}, {post, &p.Post}, {scopes, &p.Scopes}, {nodes, &p.Nodes}} {
			if err := unmarshalJSON(part.text, part.dst); err != nil {
				return nil, fmt.Errorf("path %s#%d: %w", p.File, start, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	return out, nil
}
