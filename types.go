package stackgraphs

import (
	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
	"github.com/jward/stackgraphs/internal/stitch"
	"github.com/jward/stackgraphs/internal/store"
)

// Version is reported by the CLI and the MCP server.
const Version = "0.1.0"

// Public type aliases for internal types used in the Indexer and Querier
// API. These are Go type aliases (=), so no conversion is needed.

type Position = graph.Position
type FileRecord = store.File
type FileStatus = store.FileStatus
type Stats = store.Stats
type Run = store.Run
type BuildLimits = builder.Limits
type SearchOptions = stitch.Options
type Shadowing = stitch.Shadowing

const (
	StatusPending = store.StatusPending
	StatusIndexed = store.StatusIndexed
	StatusError   = store.StatusError

	ShadowAll     = stitch.ShadowAll
	ShadowNearest = stitch.ShadowNearest
)

// DefaultBuildLimits returns the per-file enumeration limits.
func DefaultBuildLimits() BuildLimits { return builder.DefaultLimits() }

// DefaultSearchOptions returns the default resolver budgets.
func DefaultSearchOptions() SearchOptions { return stitch.DefaultOptions() }

// Source is an in-memory file handed to [Indexer.IndexSources]. An empty
// Language selects the rule set by the path's extension.
type Source struct {
	Path     string
	Language string
	Content  []byte
}

// Symbol is a definition listed by [Querier.Symbols].
type Symbol struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	End      Position `json:"end"`
}

// Definition is one result of [Querier.Resolve].
type Definition struct {
	Position   Position `json:"position"`
	Symbol     string   `json:"symbol"`
	Precedence int      `json:"precedence"`
}
