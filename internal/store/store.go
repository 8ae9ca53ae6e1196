package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrInconsistent reports stored data that contradicts itself, such as a
// partial path ending at a node its file does not have.
var ErrInconsistent = errors.New("store inconsistent")

// Store is the SQLite persistence layer for file graphs and partial paths.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.SetMeta("schema_version", schemaVersion); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaVersion = "1"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY,
  language        TEXT NOT NULL,
  fingerprint     TEXT,
  rules_version   TEXT,
  status          TEXT NOT NULL,
  error           TEXT,
  indexed_at      TIMESTAMP,
  node_count      INTEGER NOT NULL DEFAULT 0,
  edge_count      INTEGER NOT NULL DEFAULT 0,
  path_count      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS nodes (
  file_path       TEXT NOT NULL REFERENCES files(path),
  node_id         INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  symbol          TEXT,
  scope_id        INTEGER,
  is_exported     BOOLEAN NOT NULL DEFAULT FALSE,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  start_byte      INTEGER,
  end_byte        INTEGER,
  PRIMARY KEY (file_path, node_id)
);

CREATE TABLE IF NOT EXISTS edges (
  file_path       TEXT NOT NULL REFERENCES files(path),
  ordinal         INTEGER NOT NULL,
  from_id         INTEGER NOT NULL,
  to_id           INTEGER NOT NULL,
  precedence      INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (file_path, ordinal)
);

CREATE TABLE IF NOT EXISTS partial_paths (
  file_path       TEXT NOT NULL REFERENCES files(path),
  seq             INTEGER NOT NULL,
  start_node      INTEGER NOT NULL,
  start_root      BOOLEAN NOT NULL,
  leading_symbol  TEXT NOT NULL,
  end_node        INTEGER NOT NULL,
  precedence      INTEGER NOT NULL DEFAULT 0,
  pre             TEXT NOT NULL,
  post            TEXT NOT NULL,
  scopes          TEXT NOT NULL,
  nodes           TEXT NOT NULL,
  PRIMARY KEY (file_path, seq)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_runs (
  id              TEXT PRIMARY KEY,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  roots           TEXT NOT NULL,
  discovered      INTEGER NOT NULL DEFAULT 0,
  skipped         INTEGER NOT NULL DEFAULT 0,
  built           INTEGER NOT NULL DEFAULT 0,
  failed          INTEGER NOT NULL DEFAULT 0,
  error           TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(file_path, kind);
CREATE INDEX IF NOT EXISTS idx_paths_root ON partial_paths(start_root, leading_symbol);
CREATE INDEX IF NOT EXISTS idx_paths_start ON partial_paths(file_path, start_node);
CREATE INDEX IF NOT EXISTS idx_runs_started ON index_runs(started_at);
`

// SetMeta stores a metadata value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// Meta returns a metadata value, or "" when unset.
func (s *Store) Meta(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return v, nil
}

// AllMeta returns every metadata entry.
func (s *Store) AllMeta() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()
	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		m[k] = v
	}
	return m, rows.Err()
}
