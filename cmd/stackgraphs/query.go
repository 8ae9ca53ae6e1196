package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/stackgraphs"
)

func newDefinitionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "definitions <path> <line> <column> | <path:line:column>",
		Short: "Resolve the reference at a position to its definitions",
		Long:  "Prints the definitions the reference at the given position may bind to, nearest first. Lines and columns are zero-based; columns count bytes.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("expected <path> <line> <column> or <path:line:column>, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args)
			if err != nil {
				return err
			}
			q, err := a.openQuerier()
			if err != nil {
				return err
			}
			defer q.Close()

			defs, err := q.Resolve(cmd.Context(), pos)
			if err != nil {
				return err
			}
			if a.flagFormat == "json" {
				return writeJSON(a.stdout, defs)
			}
			formatDefinitionsText(a.stdout, defs)
			return nil
		},
	}
}

func newSymbolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols <path>",
		Short: "List the definitions in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path %q: %w", args[0], err)
			}
			q, err := a.openQuerier()
			if err != nil {
				return err
			}
			defer q.Close()

			syms, err := q.Symbols(cmd.Context(), path)
			if err != nil {
				return err
			}
			if a.flagFormat == "json" {
				return writeJSON(a.stdout, syms)
			}
			formatSymbolsText(a.stdout, syms)
			return nil
		},
	}
}

// parsePosition accepts either three args or one "path:line:column" arg.
// The path is made absolute.
func parsePosition(args []string) (stackgraphs.Position, error) {
	var path, line, col string
	switch len(args) {
	case 3:
		path, line, col = args[0], args[1], args[2]
	case 1:
		s := args[0]
		i := strings.LastIndex(s, ":")
		j := -1
		if i > 0 {
			j = strings.LastIndex(s[:i], ":")
		}
		if j <= 0 {
			return stackgraphs.Position{}, fmt.Errorf("invalid position %q: want path:line:column", s)
		}
		path, line, col = s[:j], s[j+1:i], s[i+1:]
	default:
		return stackgraphs.Position{}, fmt.Errorf("invalid position %v", args)
	}

	l, err := strconv.Atoi(line)
	if err != nil || l < 0 {
		return stackgraphs.Position{}, fmt.Errorf("invalid line %q", line)
	}
	c, err := strconv.Atoi(col)
	if err != nil || c < 0 {
		return stackgraphs.Position{}, fmt.Errorf("invalid column %q", col)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return stackgraphs.Position{}, fmt.Errorf("resolving path %q: %w", path, err)
	}
	return stackgraphs.Position{Path: abs, Line: l, Column: c}, nil
}
