// Package discover finds the source files under a set of roots.
//
// Roots are walked in lexical order. Hidden directories and a small set of
// dependency directories are skipped, .gitignore files are honoured at
// every level of the walk, and doublestar excludes are matched against the
// slash-separated path relative to the root being walked.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// File is one discovered source file.
type File struct {
	Path     string // absolute, cleaned
	Language string
}

// LanguageFunc maps a path to the language that handles it.
type LanguageFunc func(path string) (language string, ok bool)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// SkipDir reports whether a directory with the given base name is never
// walked: hidden directories and dependency directories.
func SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// Walker discovers files. The zero value is not usable; create one with New.
type Walker struct {
	lang      LanguageFunc
	excludes  []string
	gitignore bool
	logger    *slog.Logger
}

// Option configures a Walker.
type Option func(*Walker)

// WithExcludes adds doublestar patterns. A directory that matches is not
// descended into.
func WithExcludes(patterns ...string) Option {
	return func(w *Walker) { w.excludes = append(w.excludes, patterns...) }
}

// WithGitignore toggles .gitignore handling. It is on by default.
func WithGitignore(on bool) Option {
	return func(w *Walker) { w.gitignore = on }
}

// WithLogger sets the logger for skipped entries.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) { w.logger = l }
}

// New returns a Walker that keeps the files lang accepts.
func New(lang LanguageFunc, opts ...Option) (*Walker, error) {
	w := &Walker{lang: lang, gitignore: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range w.excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("discover: invalid exclude pattern %q", p)
		}
	}
	return w, nil
}

// Walk returns the files under roots in discovery order. A root may be a
// single file. A path reachable from several roots is reported once, at
// its first discovery.
func (w *Walker) Walk(ctx context.Context, roots []string) ([]File, error) {
	var files []File
	seen := make(map[string]bool)
	add := func(path string) {
		if seen[path] {
			return
		}
		lang, ok := w.lang(path)
		if !ok {
			return
		}
		seen[path] = true
		files = append(files, File{Path: path, Language: lang})
	}

	for _, root := range roots {
		abs, err := Canonical(root)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("discover: stat root: %w", err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		if err := w.walkDir(ctx, abs, add); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (w *Walker) walkDir(ctx context.Context, root string, add func(string)) error {
	ignores := make(map[string]*ignore.GitIgnore)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return fmt.Errorf("discover: walk %s: %w", root, err)
			}
			w.logger.Warn("discover.skip", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path != root {
			if d.IsDir() && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if w.excluded(root, path) || w.ignored(root, path, d.IsDir(), ignores) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if w.gitignore {
				w.loadIgnore(path, ignores)
			}
			return nil
		}
		if d.Type().IsRegular() {
			add(path)
		}
		return nil
	})
}

func (w *Walker) excluded(root, path string) bool {
	if len(w.excludes) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.excludes {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, filepath.ToSlash(path)); ok {
			return true
		}
	}
	return false
}

// ignored checks path against the .gitignore of every directory between
// root and path.
func (w *Walker) ignored(root, path string, isDir bool, ignores map[string]*ignore.GitIgnore) bool {
	if !w.gitignore {
		return false
	}
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if gi := ignores[dir]; gi != nil {
			rel, err := filepath.Rel(dir, path)
			if err == nil {
				rel = filepath.ToSlash(rel)
				if gi.MatchesPath(rel) || (isDir && gi.MatchesPath(rel+"/")) {
					return true
				}
			}
		}
		if dir == root || dir == filepath.Dir(dir) {
			return false
		}
	}
}

func (w *Walker) loadIgnore(dir string, ignores map[string]*ignore.GitIgnore) {
	file := filepath.Join(dir, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("discover.gitignore", "path", file, "error", err)
		}
		return
	}
	ignores[dir] = gi
}

// Canonical returns the absolute, cleaned form of path.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("discover: absolute path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
