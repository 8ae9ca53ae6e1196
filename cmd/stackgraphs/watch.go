package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/stackgraphs/internal/mcpserver"
	"github.com/jward/stackgraphs/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var flags indexFlags
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Index, then re-index whenever source files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := absPaths(args)
			if err != nil {
				return err
			}
			ix, dbPath, err := a.openIndexer(&flags)
			if err != nil {
				return err
			}
			defer ix.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.index(ctx, ix, roots); err != nil {
				return err
			}
			w, err := watch.New(watch.Config{
				Roots:    roots,
				Debounce: a.cfg.EffectiveDebounce(),
				Filter:   ix.Handles,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Fprintf(a.stderr, "Watching %d path(s); database: %s\n", len(roots), dbPath)
			// Unchanged files are skipped by fingerprint, so each batch
			// re-runs the whole roots.
			return w.Run(ctx, func(ctx context.Context, changed []string) error {
				a.logger.Info("watch.reindex", "changed", len(changed))
				return a.index(ctx, ix, roots)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var flags indexFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP on stdio",
		Long:  "Runs a Model Context Protocol server on stdin/stdout with the tools index, status, definitions and symbols.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, _, err := a.openIndexer(&flags)
			if err != nil {
				return err
			}
			defer ix.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return mcpserver.New(ix, a.logger).Run(ctx)
		},
	}
	flags.register(cmd)
	return cmd
}
