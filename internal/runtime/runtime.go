package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/stackgraphs/internal/builder"
	"github.com/jward/stackgraphs/internal/graph"
)

// Runtime embeds a Risor VM and provides tree-sitter and graph host
// functions to rule scripts.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime that loads scripts from scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{scriptsDir: scriptsDir, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSource executes Risor source against g with t as the parsed file.
// Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, t *builder.Tree, g *graph.FileGraph, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", t, g, extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, t *builder.Tree, g *graph.FileGraph, extraGlobals map[string]any) error {
	globals := r.buildGlobals(t, g, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// For fs.FS, strip any leading path separator so the path is
		// relative within the FS (e.g., "/java.risor" -> "java.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(t *builder.Tree, g *graph.FileGraph, extra map[string]any) map[string]any {
	globals := map[string]any{
		"node_type":     makeNodeTypeFn(),
		"node_child":    makeNodeChildFn(),
		"node_children": makeNodeChildrenFn(),
		"log":           mustProxy(&logObject{logger: r.logger}),
	}
	if t != nil {
		globals["root"] = mustProxy(t.Root)
		globals["file_path"] = t.Path
		globals["node_text"] = makeNodeTextFn(t.Source)
		globals["query"] = makeQueryFn(t.Grammar, t.Source)
	}
	// Graph construction. Scripts cannot construct Go structs, so these
	// accept primitives and proxied nodes and build the graph Go-side.
	if g != nil {
		globals["ROOT"] = int64(graph.RootID)
		globals["add_scope"] = makeAddScopeFn(g)
		globals["add_push"] = makeAddSymbolFn(g, "add_push", g.AddPush)
		globals["add_pop"] = makeAddSymbolFn(g, "add_pop", g.AddPop)
		globals["add_pop_scoped"] = makeAddSymbolFn(g, "add_pop_scoped", g.AddPopScoped)
		globals["add_push_scoped"] = makeAddPushScopedFn(g)
		globals["add_definition"] = makeAddSpannedFn(g, "add_definition", g.AddDefinition)
		globals["add_reference"] = makeAddSpannedFn(g, "add_reference", g.AddReference)
		globals["add_jump_to"] = makeAddJumpToFn(g)
		globals["add_edge"] = makeAddEdgeFn(g)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
