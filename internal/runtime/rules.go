package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/xxh3"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

// ScriptRules is a builder.RuleSet backed by a Risor script.
type ScriptRules struct {
	rt      *Runtime
	spec    LanguageSpec
	grammar *sitter.Language
	source  string
	version string
}

var _ builder.RuleSet = (*ScriptRules)(nil)

// NewScriptRules loads the script named by spec.
func NewScriptRules(rt *Runtime, spec LanguageSpec) (*ScriptRules, error) {
	grammarName := spec.Grammar
	if grammarName == "" {
		grammarName = spec.Name
	}
	grammar, ok := GrammarByName(grammarName)
	if !ok {
		return nil, fmt.Errorf("runtime: %s: unknown grammar %q", spec.Name, grammarName)
	}
	source, err := rt.LoadScript(spec.Script)
	if err != nil {
		return nil, err
	}
	return &ScriptRules{
		rt:      rt,
		spec:    spec,
		grammar: grammar,
		source:  source,
		version: fmt.Sprintf("%s/risor-%016x", spec.Name, xxh3.HashString(source)),
	}, nil
}

func (s *ScriptRules) Language() string          { return s.spec.Name }
func (s *ScriptRules) Version() string           { return s.version }
func (s *ScriptRules) Grammar() *sitter.Language { return s.grammar }

// Extensions returns the file extensions the script claims.
func (s *ScriptRules) Extensions() []string { return s.spec.Extensions }

// Construct runs the script with t and g bound as globals.
func (s *ScriptRules) Construct(ctx context.Context, t *builder.Tree, g *graph.FileGraph) error {
	return s.rt.eval(ctx, s.source, s.spec.Script, t, g, nil)
}

// FS returns the filesystem scripts are loaded from.
func (r *Runtime) FS() fs.FS {
	if r.fsys != nil {
		return r.fsys
	}
	return os.DirFS(r.scriptsDir)
}

// Register loads every language listed in the runtime's languages.yaml and
// registers it with reg. It returns the registered language names.
func Register(reg *builder.Registry, rt *Runtime) ([]string, error) {
	specs, err := LoadLanguages(rt.FS())
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		rs, err := NewScriptRules(rt, spec)
		if err != nil {
			return nil, err
		}
		reg.Register(rs, spec.Extensions...)
		names = append(names, spec.Name)
	}
	return names, nil
}
