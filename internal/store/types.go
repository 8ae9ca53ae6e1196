package store

import (
	"time"

	"github.com/jward/stackgraphs/internal/graph"
)

// FileStatus is the indexing state of a file.
type FileStatus string

const (
	StatusPending FileStatus = "pending"
	StatusIndexed FileStatus = "indexed"
	StatusError   FileStatus = "error"
)

// File is the record kept for every indexed path.
type File struct {
	Path         string     `json:"path"`
	Language     string     `json:"language"`
	Fingerprint  string     `json:"fingerprint"`
	RulesVersion string     `json:"rules_version"`
	Status       FileStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	IndexedAt    time.Time  `json:"indexed_at"`
	Nodes        int        `json:"nodes"`
	Edges        int        `json:"edges"`
	Paths        int        `json:"paths"`
}

// Batch is everything committed for one file. A non-nil BuildErr commits
// an error record and no graph.
type Batch struct {
	File     File
	Graph    *graph.FileGraph
	Paths    []graph.PartialPath
	BuildErr error
}

// Run is one row of index_runs.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Roots      []string   `json:"roots"`
	Discovered int        `json:"discovered"`
	Skipped    int        `json:"skipped"`
	Built      int        `json:"built"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"` // set when the run stopped early
}

// Stats are totals over the store.
type Stats struct {
	Files    map[FileStatus]int
	Nodes    int
	Edges    int
	Paths    int
	LastRun  *Run
	Metadata map[string]string
}
