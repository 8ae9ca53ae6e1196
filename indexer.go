package stackgraphs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/discover"
	"github.com/jward/stackgraphs/internal/rules/ecmascript"
	"github.com/jward/stackgraphs/internal/rules/python"
	sgrt "github.com/jward/stackgraphs/internal/runtime"
	"github.com/jward/stackgraphs/internal/stitch"
	"github.com/jward/stackgraphs/internal/store"
	"github.com/jward/stackgraphs/rules"
)

// Indexer discovers, builds and stores the stack graphs of source files.
type Indexer struct {
	store    *store.Store
	registry *builder.Registry
	walker   *discover.Walker
	logger   *slog.Logger

	languages []string // empty means all registered languages
	workers   int
	excludes  []string
	gitignore bool
	rulesDir  string
	limits    builder.Limits
	search    stitch.Options

	mu      sync.Mutex
	lastRun []string // paths discovered by the last run, nil before any
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLanguages restricts which languages the Indexer will process.
func WithLanguages(languages ...string) Option {
	return func(ix *Indexer) {
		ix.languages = append(ix.languages, languages...)
	}
}

// WithWorkers sets how many files are built concurrently. The default is
// the number of CPUs.
func WithWorkers(n int) Option {
	return func(ix *Indexer) { ix.workers = n }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithExcludes adds doublestar patterns that discovery skips.
func WithExcludes(patterns ...string) Option {
	return func(ix *Indexer) { ix.excludes = append(ix.excludes, patterns...) }
}

// WithRulesDir loads additional Risor rule sets from dir, described by its
// languages.yaml. A scripted language replaces a built-in one for the
// extensions it claims.
func WithRulesDir(dir string) Option {
	return func(ix *Indexer) { ix.rulesDir = dir }
}

// WithBuildLimits bounds partial path enumeration per file.
func WithBuildLimits(l BuildLimits) Option {
	return func(ix *Indexer) { ix.limits = l }
}

// WithSearchOptions sets the resolver options used by [Indexer.Querier].
func WithSearchOptions(o SearchOptions) Option {
	return func(ix *Indexer) { ix.search = o }
}

// WithoutGitignore makes discovery ignore .gitignore files.
func WithoutGitignore() Option {
	return func(ix *Indexer) { ix.gitignore = false }
}

// NewIndexer creates an Indexer backed by a SQLite database at dbPath.
func NewIndexer(dbPath string, opts ...Option) (*Indexer, error) {
	ix := &Indexer{
		logger:    slog.Default(),
		gitignore: true,
		limits:    builder.DefaultLimits(),
		search:    stitch.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.workers <= 0 {
		ix.workers = runtime.NumCPU()
	}

	reg, err := newRegistry(ix.rulesDir, ix.logger)
	if err != nil {
		return nil, err
	}
	for _, lang := range ix.languages {
		if !slices.Contains(reg.Languages(), lang) {
			return nil, fmt.Errorf("stackgraphs: unknown language %q (have %v)", lang, reg.Languages())
		}
	}
	ix.registry = reg.Restrict(ix.languages...)

	walkOpts := []discover.Option{
		discover.WithExcludes(ix.excludes...),
		discover.WithGitignore(ix.gitignore),
		discover.WithLogger(ix.logger),
	}
	ix.walker, err = discover.New(ix.languageFor, walkOpts...)
	if err != nil {
		return nil, fmt.Errorf("stackgraphs: %w", err)
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("stackgraphs: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("stackgraphs: migrate: %w", err)
	}
	ix.store = s
	return ix, nil
}

// newRegistry registers the built-in rule sets, the embedded scripts and
// then the scripts under rulesDir, if any.
func newRegistry(rulesDir string, logger *slog.Logger) (*builder.Registry, error) {
	reg := builder.NewRegistry()
	reg.Register(ecmascript.JavaScript(), ".js", ".jsx", ".mjs", ".cjs")
	reg.Register(ecmascript.TypeScript(), ".ts", ".mts", ".cts")
	reg.Register(ecmascript.TSX(), ".tsx")
	reg.Register(python.New(), ".py", ".pyi")

	embedded := sgrt.NewRuntime("", sgrt.WithRuntimeFS(rules.FS), sgrt.WithRuntimeLogger(logger))
	if _, err := sgrt.Register(reg, embedded); err != nil {
		return nil, fmt.Errorf("stackgraphs: embedded rules: %w", err)
	}
	if rulesDir != "" {
		names, err := sgrt.Register(reg, sgrt.NewRuntime(rulesDir, sgrt.WithRuntimeLogger(logger)))
		if err != nil {
			return nil, fmt.Errorf("stackgraphs: rules dir %s: %w", rulesDir, err)
		}
		logger.Debug("rules.loaded", "dir", rulesDir, "languages", names)
	}
	return reg, nil
}

func (ix *Indexer) languageFor(path string) (string, bool) {
	rs, ok := ix.registry.ForFile(path)
	if !ok {
		return "", false
	}
	return rs.Language(), true
}

// Handles reports whether path has an extension one of the Indexer's rule
// sets claims.
func (ix *Indexer) Handles(path string) bool {
	_, ok := ix.languageFor(path)
	return ok
}

// Close releases the Indexer's database resources.
func (ix *Indexer) Close() error {
	return ix.store.Close()
}

// Store returns the underlying Store for direct access.
func (ix *Indexer) Store() *store.Store {
	return ix.store
}

// Languages returns the languages this Indexer processes.
func (ix *Indexer) Languages() []string {
	return ix.registry.Languages()
}

// Querier returns a Querier sharing the Indexer's store. Closing it does
// not close the store.
func (ix *Indexer) Querier() *Querier {
	return &Querier{store: ix.store, opts: ix.search, logger: ix.logger}
}

// IndexAll discovers the files under roots and brings the store up to date
// with them. A root may be a directory or a single file.
//
// Per-file failures are recorded as Error file records and do not stop the
// run; see [Indexer.StatusAll]. Files stored by earlier runs but no longer
// discovered are left untouched.
func (ix *Indexer) IndexAll(ctx context.Context, roots []string) error {
	start := time.Now()
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		p, err := discover.Canonical(r)
		if err != nil {
			return fmt.Errorf("index all: %w", err)
		}
		abs = append(abs, p)
	}
	files, err := ix.walker.Walk(ctx, abs)
	if err != nil {
		return fmt.Errorf("index all: %w", err)
	}

	items := make([]workItem, 0, len(files))
	for _, f := range files {
		items = append(items, workItem{path: f.Path, lang: f.Language})
	}
	return ix.run(ctx, abs, items, start)
}

// IndexSources indexes in-memory files. Paths are stored as given.
func (ix *Indexer) IndexSources(ctx context.Context, sources []Source) error {
	start := time.Now()
	items := make([]workItem, 0, len(sources))
	roots := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src.Path] {
			continue
		}
		seen[src.Path] = true
		content := src.Content
		if content == nil {
			content = []byte{}
		}
		items = append(items, workItem{path: src.Path, lang: src.Language, content: content})
		roots = append(roots, src.Path)
	}
	return ix.run(ctx, roots, items, start)
}

// StatusAll returns one record for every file discovered by the last run,
// in discovery order. Before any run in this process it returns every
// stored record, ordered by path.
func (ix *Indexer) StatusAll() ([]*FileRecord, error) {
	ix.mu.Lock()
	last := ix.lastRun
	ix.mu.Unlock()
	if last == nil {
		files, err := ix.store.ListFiles()
		if err != nil {
			return nil, fmt.Errorf("status all: %w", err)
		}
		return files, nil
	}

	byPath, err := ix.store.FilesByPath(last)
	if err != nil {
		return nil, fmt.Errorf("status all: %w", err)
	}
	out := make([]*FileRecord, 0, len(last))
	for _, p := range last {
		if f, ok := byPath[p]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Status returns the stored records at or under each path, in path order.
// Relative paths are made absolute first.
func (ix *Indexer) Status(paths ...string) ([]*FileRecord, error) {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			// Not on disk; it may still name a stored in-memory source.
			abs = append(abs, p)
			continue
		}
		c, err := discover.Canonical(p)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		abs = append(abs, c)
	}
	files, err := ix.store.FilesUnder(abs...)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return files, nil
}

// Stats returns file counts per status and graph totals.
func (ix *Indexer) Stats() (*Stats, error) {
	return ix.store.Stats()
}

func (ix *Indexer) setLastRun(paths []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.lastRun = paths
}
