package stackgraphs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jward/stackgraphs/internal/stitch"
	"github.com/jward/stackgraphs/internal/store"
)

// Querier resolves references against a store built by an Indexer.
type Querier struct {
	store  *store.Store
	owned  bool
	opts   stitch.Options
	logger *slog.Logger
}

// QueryOption configures a Querier.
type QueryOption func(*Querier)

// WithQuerySearchOptions sets the search budgets and shadowing mode.
func WithQuerySearchOptions(o SearchOptions) QueryOption {
	return func(q *Querier) { q.opts = o }
}

// WithQueryLogger sets the logger used for budget warnings.
func WithQueryLogger(l *slog.Logger) QueryOption {
	return func(q *Querier) { q.logger = l }
}

// NewQuerier opens the store at dbPath for querying.
func NewQuerier(dbPath string, opts ...QueryOption) (*Querier, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("stackgraphs: open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("stackgraphs: migrate: %w", err)
	}
	q := &Querier{store: s, owned: true, opts: stitch.DefaultOptions(), logger: slog.Default()}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Close releases the store if the Querier opened it.
func (q *Querier) Close() error {
	if !q.owned {
		return nil
	}
	return q.store.Close()
}

// Definitions returns the start positions of the definitions the reference
// at pos resolves to, nearest first. A position with no reference yields an
// empty result and no error.
func (q *Querier) Definitions(ctx context.Context, pos Position) ([]Position, error) {
	defs, err := q.Resolve(ctx, pos)
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Position)
	}
	return out, nil
}

// Resolve is Definitions with the definition symbol and the precedence sum
// of each result.
func (q *Querier) Resolve(ctx context.Context, pos Position) ([]Definition, error) {
	sn, err := q.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("definitions at %s: %w", pos, err)
	}
	defer sn.Close()

	ref, ok, err := sn.ReferenceAt(pos)
	if err != nil {
		return nil, fmt.Errorf("definitions at %s: %w", pos, err)
	}
	if !ok {
		q.logger.Debug("query.no_reference", "position", pos.String())
		return []Definition{}, nil
	}

	opts := q.opts
	if opts.Logger == nil {
		opts.Logger = q.logger
	}
	results, stats, err := stitch.Resolve(ctx, sn, ref, opts)
	if err != nil {
		return nil, fmt.Errorf("definitions at %s: %w", pos, err)
	}
	q.logger.Debug("query.done", "position", pos.String(), "results", len(results),
		"states", stats.States, "truncated", stats.Truncated)

	out := make([]Definition, 0, len(results))
	for _, r := range results {
		out = append(out, Definition{Position: r.Position(), Symbol: r.Node.Symbol, Precedence: r.Precedence})
	}
	return out, nil
}

// Symbols lists the definitions of the file at path in position order.
func (q *Querier) Symbols(ctx context.Context, path string) ([]Symbol, error) {
	sn, err := q.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("symbols of %s: %w", path, err)
	}
	defer sn.Close()

	nodes, err := sn.Definitions(path)
	if err != nil {
		return nil, fmt.Errorf("symbols of %s: %w", path, err)
	}
	out := make([]Symbol, 0, len(nodes))
	for _, n := range nodes {
		if n.Span == nil {
			continue
		}
		out = append(out, Symbol{
			Name:     n.Symbol,
			Position: n.Span.Position(path),
			End:      Position{Path: path, Line: n.Span.End.Line, Column: n.Span.End.Column},
		})
	}
	return out, nil
}
