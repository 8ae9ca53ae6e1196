// Package config loads .stackgraphs.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/stitch"
)

// FileName is the config file looked up at the repository root.
const FileName = ".stackgraphs.yaml"

// Config holds the user-overridable settings. Zero values mean "use the
// default".
type Config struct {
	Database  string   `yaml:"database"`
	Languages []string `yaml:"languages"`
	Exclude   []string `yaml:"exclude"`
	Workers   int      `yaml:"workers"`
	RulesDir  string   `yaml:"rules_dir"`
	Gitignore *bool    `yaml:"gitignore"`
	Shadowing string   `yaml:"shadowing"`
	LogLevel  string   `yaml:"log_level"`

	Search SearchConfig `yaml:"search"`
	Build  BuildConfig  `yaml:"build"`
	Watch  WatchConfig  `yaml:"watch"`
}

// SearchConfig bounds a definitions query.
type SearchConfig struct {
	MaxStates int `yaml:"max_states"`
	MaxDepth  int `yaml:"max_depth"`
	MaxStack  int `yaml:"max_stack"`
}

// BuildConfig bounds partial path enumeration per file.
type BuildConfig struct {
	MaxPathLength    int `yaml:"max_path_length"`
	MaxPathsPerStart int `yaml:"max_paths_per_start"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultDebounce is the quiet period the watcher waits for.
const DefaultDebounce = 300 * time.Millisecond

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{}
}

// Load reads the config at path. A missing file yields the defaults;
// malformed YAML and unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadDir loads FileName from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Parse decodes and validates data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if _, err := stitch.ParseShadowing(c.Shadowing); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must not be negative")
	}
	return nil
}

// EffectiveGitignore reports whether .gitignore files apply. Default: true.
func (c *Config) EffectiveGitignore() bool {
	if c.Gitignore != nil {
		return *c.Gitignore
	}
	return true
}

// EffectiveDebounce returns the watch debounce or DefaultDebounce.
func (c *Config) EffectiveDebounce() time.Duration {
	if c.Watch.Debounce > 0 {
		return c.Watch.Debounce
	}
	return DefaultDebounce
}

// Level parses log_level. Empty means info.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}

// SearchOptions returns the resolver options, defaults filled in.
func (c *Config) SearchOptions() stitch.Options {
	opts := stitch.DefaultOptions()
	if c.Search.MaxStates > 0 {
		opts.MaxStates = c.Search.MaxStates
	}
	if c.Search.MaxDepth > 0 {
		opts.MaxDepth = c.Search.MaxDepth
	}
	if c.Search.MaxStack > 0 {
		opts.MaxStack = c.Search.MaxStack
	}
	// Validate has already rejected unknown values.
	opts.Shadowing, _ = stitch.ParseShadowing(c.Shadowing)
	return opts
}

// BuildLimits returns the builder limits, defaults filled in.
func (c *Config) BuildLimits() builder.Limits {
	l := builder.DefaultLimits()
	if c.Build.MaxPathLength > 0 {
		l.MaxPathLength = c.Build.MaxPathLength
	}
	if c.Build.MaxPathsPerStart > 0 {
		l.MaxPathsPerStart = c.Build.MaxPathsPerStart
	}
	return l
}
