package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/stackgraphs"
	"github.com/jward/stackgraphs/internal/config"
)

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// app holds the persistent flags and the state PersistentPreRunE derives
// from them.
type app struct {
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string

	stdout io.Writer
	stderr io.Writer

	repoRoot string
	cfg      *config.Config
	logger   *slog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "stackgraphs",
		Short:         "Incremental, precise go-to-definition with stack graphs",
		Long:          "stackgraphs builds a stack graph per source file from tree-sitter parses, stores the graphs and their partial paths in SQLite, and resolves references to definitions by stitching paths at query time.",
		Version:       stackgraphs.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		// No Run; prints help by default.
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.flagDB, "db", "", "database path (default: .stackgraphs/index.db relative to repo root)")
	root.PersistentFlags().StringVar(&a.flagFormat, "format", "text", "output format: text|json")
	root.PersistentFlags().StringVar(&a.flagConfig, "config", "", "config file (default: "+config.FileName+" at repo root)")
	root.PersistentFlags().StringVar(&a.flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default: from config, else warn)")

	root.AddCommand(newIndexCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newDefinitionsCmd(a))
	root.AddCommand(newSymbolsCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

// setup validates persistent flags, loads the config and installs the
// logger. Flags override config values.
func (a *app) setup() error {
	if err := validateFormat(a.flagFormat); err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	a.repoRoot = findRepoRoot(wd)

	if a.flagConfig != "" {
		a.cfg, err = config.Load(a.flagConfig)
	} else {
		a.cfg, err = config.LoadDir(a.repoRoot)
	}
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	switch {
	case a.flagLogLevel != "":
		if err := level.UnmarshalText([]byte(a.flagLogLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", a.flagLogLevel, err)
		}
	case a.cfg.LogLevel != "":
		if level, err = a.cfg.Level(); err != nil {
			return err
		}
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from --db, the config, or the
// default. Relative paths are taken from the repo root.
func (a *app) resolveDBPath() string {
	p := a.flagDB
	if p == "" {
		p = a.cfg.Database
	}
	if p == "" {
		return filepath.Join(a.repoRoot, ".stackgraphs", "index.db")
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.repoRoot, p)
}

// indexFlags are shared by the commands that build an Indexer.
type indexFlags struct {
	languages string
	workers   int
	excludes  []string
}

func (f *indexFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.languages, "languages", "", "comma-separated language filter (e.g. javascript,python)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel graph builds (default: config, else number of CPUs)")
	cmd.Flags().StringArrayVar(&f.excludes, "exclude", nil, "doublestar pattern to exclude (repeatable)")
}

// openIndexer opens an Indexer on the resolved database, creating its
// directory. Flags in f override the config.
func (a *app) openIndexer(f *indexFlags) (*stackgraphs.Indexer, string, error) {
	dbPath := a.resolveDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	cfg := a.cfg
	opts := []stackgraphs.Option{
		stackgraphs.WithLogger(a.logger),
		stackgraphs.WithBuildLimits(cfg.BuildLimits()),
		stackgraphs.WithSearchOptions(cfg.SearchOptions()),
		stackgraphs.WithExcludes(cfg.Exclude...),
	}
	if !cfg.EffectiveGitignore() {
		opts = append(opts, stackgraphs.WithoutGitignore())
	}
	if cfg.RulesDir != "" {
		dir := cfg.RulesDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(a.repoRoot, dir)
		}
		opts = append(opts, stackgraphs.WithRulesDir(dir))
	}

	langs := cfg.Languages
	workers := cfg.Workers
	if f != nil {
		if f.languages != "" {
			langs = splitList(f.languages)
		}
		if f.workers > 0 {
			workers = f.workers
		}
		opts = append(opts, stackgraphs.WithExcludes(f.excludes...))
	}
	if len(langs) > 0 {
		opts = append(opts, stackgraphs.WithLanguages(langs...))
	}
	if workers > 0 {
		opts = append(opts, stackgraphs.WithWorkers(workers))
	}

	ix, err := stackgraphs.NewIndexer(dbPath, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("creating indexer: %w", err)
	}
	return ix, dbPath, nil
}

// openQuerier opens the resolved database for queries. The database must
// already exist.
func (a *app) openQuerier() (*stackgraphs.Querier, error) {
	dbPath := a.resolveDBPath()
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no index at %s (run \"stackgraphs index\" first)", dbPath)
	}
	return stackgraphs.NewQuerier(dbPath,
		stackgraphs.WithQuerySearchOptions(a.cfg.SearchOptions()),
		stackgraphs.WithQueryLogger(a.logger))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// absPaths resolves args against the working directory, defaulting to ".".
func absPaths(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	out := make([]string, 0, len(args))
	for _, p := range args {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving path %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}
