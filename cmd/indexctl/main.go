// Package main implements indexctl, a command-line tool for checking and
// converting documentation search snapshots, and for publishing them to
// running search instances.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "indexctl",
		Short: "Inspect and convert documentation search snapshots",
		Long: `indexctl works on snapshot files directly, without a running search service.
It accepts Sphinx searchindex.js files, canonical JSON snapshots (optionally
gzip or zstd compressed) and .tidx segments.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(newValidateCmd(), newLookupCmd(), newStatsCmd(), newConvertCmd(), newPublishCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check that snapshot files load",
		Long: `Load every file and report whether it is a well-formed snapshot.
Exits non-zero if any file is malformed or unreadable.

Examples:
  indexctl validate build/html/searchindex.js
  indexctl validate --parallel 8 snapshots/*.tidx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), args, parallel)
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", runtime.NumCPU(), "files validated concurrently")
	return cmd
}

// runValidate loads every path and prints one line per file in argument
// order. The returned error counts the failures.
func runValidate(ctx context.Context, out io.Writer, paths []string, parallel int) error {
	results := make([]error, len(paths))
	stats := make([]termindex.Stats, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, path := range paths {
		g.Go(func() error {
			idx, err := loadFile(ctx, path)
			if err != nil {
				results[i] = err
				return nil
			}
			stats[i] = idx.Stats()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, path := range paths {
		if err := results[i]; err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d documents, %d terms)\n", path, stats[i].Documents, stats[i].Terms)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots failed validation", failed, len(paths))
	}
	return nil
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <file> <term>",
		Short: "Print the documents containing a term",
		Long: `Look up a single term and print the matching documents as JSON.

Examples:
  indexctl lookup build/html/searchindex.js build`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			key, _ := idx.Resolve(args[1])
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"term":       args[1],
				"normalized": key,
				"matches":    idx.Lookup(args[1]),
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Print snapshot size statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), idx.Stats())
		},
	}
}

func loadFile(ctx context.Context, path string) (*termindex.Index, error) {
	payload, err := source.NewFile(path).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := termindex.Load(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
