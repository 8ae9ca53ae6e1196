package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BeginRun records the start of an indexing run and returns its ID.
func (s *Store) BeginRun(roots []string) (*Run, error) {
	r := &Run{ID: uuid.NewString(), StartedAt: time.Now().UTC(), Roots: roots}
	rootsJSON, err := json.Marshal(roots)
	if err != nil {
		return nil, fmt.Errorf("begin run: encode roots: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT INTO index_runs (id, started_at, roots) VALUES (?, ?, ?)",
		r.ID, r.StartedAt, string(rootsJSON),
	); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

// FinishRun stores the final counts of r and its error, if any.
func (s *Store) FinishRun(r *Run) error {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if _, err := s.db.Exec(
		`UPDATE index_runs SET finished_at = ?, discovered = ?, skipped = ?, built = ?, failed = ?,
		 error = NULLIF(?, '') WHERE id = ?`,
		now, r.Discovered, r.Skipped, r.Built, r.Failed, r.Error, r.ID,
	); err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil.
func (s *Store) LastRun() (*Run, error) {
	r := &Run{}
	var roots string
	var finished sql.NullTime
	var runErr sql.NullString
	err := s.db.QueryRow(
		`SELECT id, started_at, finished_at, roots, discovered, skipped, built, failed, error
		 FROM index_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&r.ID, &r.StartedAt, &finished, &roots, &r.Discovered, &r.Skipped, &r.Built, &r.Failed, &runErr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	r.Error = runErr.String
	if err := json.Unmarshal([]byte(roots), &r.Roots); err != nil {
		return nil, fmt.Errorf("last run: decode roots: %w", err)
	}
	return r, nil
}
