package builder

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Registry maps file extensions to rule sets.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]RuleSet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]RuleSet)}
}

// Register binds each extension (with leading dot) to rs. Later
// registrations replace earlier ones.
func (r *Registry) Register(rs RuleSet, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = rs
	}
}

// ForFile returns the rule set for a path based on its extension.
func (r *Registry) ForFile(path string) (RuleSet, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.byExt[ext]
	return rs, ok
}

// ForLanguage returns the first rule set, in extension order, whose
// language is lang.
func (r *Registry) ForLanguage(lang string) (RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ext := range r.extensionsLocked() {
		if rs := r.byExt[ext]; rs.Language() == lang {
			return rs, true
		}
	}
	return nil, false
}

// Languages returns the sorted set of registered language names.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var langs []string
	for _, rs := range r.byExt {
		if !slices.Contains(langs, rs.Language()) {
			langs = append(langs, rs.Language())
		}
	}
	slices.Sort(langs)
	return langs
}

// Extensions returns the sorted registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extensionsLocked()
}

func (r *Registry) extensionsLocked() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Restrict returns a registry holding only the rule sets whose language is
// in langs. An empty langs returns r itself.
func (r *Registry) Restrict(langs ...string) *Registry {
	if len(langs) == 0 {
		return r
	}
	out := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ext, rs := range r.byExt {
		if slices.Contains(langs, rs.Language()) {
			out.byExt[ext] = rs
		}
	}
	return out
}
