// Package mcpserver exposes an Indexer over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jward/stackgraphs"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp     *mcp.Server
	indexer *stackgraphs.Indexer
	querier *stackgraphs.Querier
	logger  *slog.Logger

	// Serializes index calls. Queries read a snapshot and need no lock.
	indexMu sync.Mutex
}

// New creates a server with all tools registered. The Indexer stays owned
// by the caller.
func New(ix *stackgraphs.Indexer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		indexer: ix,
		querier: ix.Querier(),
		logger:  logger,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "stackgraphs",
				Version: stackgraphs.Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index",
		Description: "Index source files into the stack graph database. Unchanged files are skipped by content fingerprint. Per-file failures are recorded and reported by the status tool.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"roots": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Directories or files to index (absolute, or relative to the server's working directory)"
				}
			},
			"required": ["roots"]
		}`),
	}, s.handleIndex)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "status",
		Description: "List file records: path, language, status (indexed, error, pending), error message and graph sizes. Without paths, lists the files discovered by the last index run.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"paths": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Files or directories to report on (optional)"
				}
			}
		}`),
	}, s.handleStatus)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "definitions",
		Description: "Go to definition: resolve the reference at a source position to the definitions it may bind to, nearest first. Lines and columns are zero-based; columns count bytes.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Source file path"},
				"line": {"type": "integer", "description": "Zero-based line"},
				"column": {"type": "integer", "description": "Zero-based byte column"}
			},
			"required": ["path", "line", "column"]
		}`),
	}, s.handleDefinitions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "symbols",
		Description: "List the definitions in an indexed file, in source order.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Source file path"}
			},
			"required": ["path"]
		}`),
	}, s.handleSymbols)
}

func (s *Server) handleIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	roots, err := absPaths(getStringSliceArg(args, "roots"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	if len(roots) == 0 {
		return errResult("roots is required"), nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if err := s.indexer.IndexAll(ctx, roots); err != nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}
	run, err := s.indexer.Store().LastRun()
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{"run": run}), nil
}

func (s *Server) handleStatus(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	paths, err := absPaths(getStringSliceArg(args, "paths"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	var records []*stackgraphs.FileRecord
	if len(paths) == 0 {
		records, err = s.indexer.StatusAll()
	} else {
		records, err = s.indexer.Status(paths...)
	}
	if err != nil {
		return errResult(fmt.Sprintf("status failed: %v", err)), nil
	}
	if records == nil {
		records = []*stackgraphs.FileRecord{}
	}
	return jsonResult(map[string]any{"files": records}), nil
}

func (s *Server) handleDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}
	pos := stackgraphs.Position{Path: abs, Line: getIntArg(args, "line", 0), Column: getIntArg(args, "column", 0)}

	defs, err := s.querier.Resolve(ctx, pos)
	if err != nil {
		return errResult(err.Error()), nil
	}
	s.logger.Debug("mcp.definitions", "position", pos.String(), "results", len(defs))
	return jsonResult(map[string]any{"position": pos, "definitions": defs}), nil
}

func (s *Server) handleSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	syms, err := s.querier.Symbols(ctx, abs)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{"path": abs, "symbols": syms}), nil
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}
