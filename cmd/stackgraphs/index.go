package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/stackgraphs"
)

func newIndexCmd(a *app) *cobra.Command {
	var flags indexFlags
	var force bool
	cmd := &cobra.Command{
		Use:   "index [paths...]",
		Short: "Index source files for go-to-definition",
		Long:  "Discovers source files under the given paths (default: current directory), builds a stack graph and partial paths for each new or changed file, and writes them to the SQLite database. Per-file failures are recorded; see \"stackgraphs status\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := absPaths(args)
			if err != nil {
				return err
			}
			if force {
				dbPath := a.resolveDBPath()
				if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing database for --force: %w", err)
				}
				fmt.Fprintf(a.stderr, "Cleared database: %s\n", dbPath)
			}

			ix, dbPath, err := a.openIndexer(&flags)
			if err != nil {
				return err
			}
			defer ix.Close()

			if err := a.index(cmd.Context(), ix, roots); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "Database: %s\n", dbPath)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "delete database and reindex from scratch")
	return cmd
}

// index runs one IndexAll and prints its timing and stats summary to
// stderr.
func (a *app) index(ctx context.Context, ix *stackgraphs.Indexer, roots []string) error {
	start := time.Now()
	if err := ix.IndexAll(ctx, roots); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	run, err := ix.Store().LastRun()
	if err != nil {
		return err
	}
	if run == nil {
		return nil
	}
	fmt.Fprintf(a.stderr, "Indexed %d files in %s (built: %d, skipped: %d, failed: %d)\n",
		run.Discovered, time.Since(start).Round(time.Millisecond), run.Built, run.Skipped, run.Failed)
	return nil
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [paths...]",
		Short: "Show file records",
		Long:  "Lists the file record of every file under the given paths. Without paths, lists the files of the last index run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, _, err := a.openIndexer(nil)
			if err != nil {
				return err
			}
			defer ix.Close()

			var records []*stackgraphs.FileRecord
			if len(args) == 0 {
				records, err = ix.StatusAll()
			} else {
				var paths []string
				if paths, err = absPaths(args); err != nil {
					return err
				}
				records, err = ix.Status(paths...)
			}
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if records == nil {
				records = []*stackgraphs.FileRecord{}
			}
			if a.flagFormat == "json" {
				return writeJSON(a.stdout, records)
			}
			formatRecordsText(a.stdout, records)
			return nil
		},
	}
}
