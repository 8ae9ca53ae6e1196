package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
	"gopkg.in/yaml.v3"
)

// LanguagesFile is the manifest that describes scripted rule sets.
const LanguagesFile = "languages.yaml"

// grammars maps grammar names to tree-sitter languages.
var grammars = map[string]func() *sitter.Language{
	"java":       java.GetLanguage,
	"javascript": javascript.GetLanguage,
	"python":     python.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"typescript": ts.GetLanguage,
}

// GrammarByName returns the tree-sitter grammar registered under name.
func GrammarByName(name string) (*sitter.Language, bool) {
	fn, ok := grammars[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// GrammarNames returns the known grammar names, sorted.
func GrammarNames() []string {
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LanguageSpec describes one scripted language in languages.yaml.
type LanguageSpec struct {
	Name       string   `yaml:"name"`
	Grammar    string   `yaml:"grammar"`
	Extensions []string `yaml:"extensions"`
	Script     string   `yaml:"script"`
}

type languagesManifest struct {
	Languages []LanguageSpec `yaml:"languages"`
}

// LoadLanguages reads languages.yaml from fsys. A missing manifest yields
// no languages.
func LoadLanguages(fsys fs.FS) ([]LanguageSpec, error) {
	data, err := fs.ReadFile(fsys, LanguagesFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", LanguagesFile, err)
	}
	return ParseLanguages(data)
}

// ParseLanguages decodes a languages manifest and validates each entry.
func ParseLanguages(data []byte) ([]LanguageSpec, error) {
	var m languagesManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", LanguagesFile, err)
	}
	seen := make(map[string]bool, len(m.Languages))
	for i := range m.Languages {
		spec := &m.Languages[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("%s: entry %d has no name", LanguagesFile, i)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("%s: duplicate language %q", LanguagesFile, spec.Name)
		}
		seen[spec.Name] = true
		if spec.Grammar == "" {
			spec.Grammar = spec.Name
		}
		if _, ok := grammars[spec.Grammar]; !ok {
			return nil, fmt.Errorf("%s: %s: unknown grammar %q (known: %s)",
				LanguagesFile, spec.Name, spec.Grammar, strings.Join(GrammarNames(), ", "))
		}
		if spec.Script == "" {
			spec.Script = spec.Name + ".risor"
		}
		if len(spec.Extensions) == 0 {
			return nil, fmt.Errorf("%s: %s: no extensions", LanguagesFile, spec.Name)
		}
		for j, ext := range spec.Extensions {
			if !strings.HasPrefix(ext, ".") {
				spec.Extensions[j] = "." + ext
			}
		}
	}
	return m.Languages, nil
}
