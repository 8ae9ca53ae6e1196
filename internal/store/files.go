package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const fileColumns = `path, language, fingerprint, rules_version, status, error, indexed_at,
	node_count, edge_count, path_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*File, error) {
	f := &File{}
	var fingerprint, rulesVersion, errMsg sql.NullString
	var indexedAt sql.NullTime
	if err := row.Scan(&f.Path, &f.Language, &fingerprint, &rulesVersion, &f.Status, &errMsg, &indexedAt,
		&f.Nodes, &f.Edges, &f.Paths); err != nil {
		return nil, err
	}
	f.Fingerprint = fingerprint.String
	f.RulesVersion = rulesVersion.String
	f.Error = errMsg.String
	if indexedAt.Valid {
		f.IndexedAt = indexedAt.Time
	}
	return f, nil
}

// FileByPath returns the record for path, or nil when there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FilesByPath returns the records for paths, keyed by path. Missing paths
// are absent from the map.
func (s *Store) FilesByPath(paths []string) (map[string]*File, error) {
	out := make(map[string]*File, len(paths))
	// Stay well below SQLite's host parameter limit.
	const chunk = 500
	for len(paths) > 0 {
		n := min(chunk, len(paths))
		rows, err := s.db.Query(
			"SELECT "+fileColumns+" FROM files WHERE path IN ("+placeholderList(n)+")",
			stringsToArgs(paths[:n])...)
		if err != nil {
			return nil, fmt.Errorf("files by path: %w", err)
		}
		for rows.Next() {
			f, err := scanFile(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan file: %w", err)
			}
			out[f.Path] = f
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("files by path: %w", err)
		}
		paths = paths[n:]
	}
	return out, nil
}

// ListFiles returns every record ordered by path.
func (s *Store) ListFiles() ([]*File, error) {
	return s.queryFiles("SELECT " + fileColumns + " FROM files ORDER BY path")
}

// FilesUnder returns the records at or below each of the given paths,
// ordered by path.
func (s *Store) FilesUnder(paths ...string) ([]*File, error) {
	if len(paths) == 0 {
		return s.ListFiles()
	}
	var conds []string
	var args []any
	for _, p := range paths {
		dir := strings.TrimSuffix(p, "/") + "/"
		conds = append(conds, "(path = ? OR substr(path, 1, ?) = ?)")
		args = append(args, p, len(dir), dir)
	}
	return s.queryFiles(
		"SELECT "+fileColumns+" FROM files WHERE "+strings.Join(conds, " OR ")+" ORDER BY path", args...)
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Stats returns file counts per status and graph totals.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{Files: make(map[FileStatus]int)}
	rows, err := s.db.Query(
		`SELECT status, COUNT(*), COALESCE(SUM(node_count), 0), COALESCE(SUM(edge_count), 0),
			COALESCE(SUM(path_count), 0)
		 FROM files GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status FileStatus
		var files, nodes, edges, paths int
		if err := rows.Scan(&status, &files, &nodes, &edges, &paths); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Files[status] = files
		st.Nodes += nodes
		st.Edges += edges
		st.Paths += paths
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if st.LastRun, err = s.LastRun(); err != nil {
		return nil, err
	}
	if st.Metadata, err = s.AllMeta(); err != nil {
		return nil, err
	}
	return st, nil
}
