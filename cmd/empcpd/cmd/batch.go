package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/empcpd/internal/reference"
	"github.com/ChrisMcGann/empcpd/internal/runner"
)

var (
	// Flags for batch command
	inputDir     string
	outputDir    string
	outputFormat string
	watchDirs    bool
)

func init() {
	batchCmd.Flags().StringVar(&inputDir, "in-dir", "", "Directory of ion tables (required)")
	batchCmd.Flags().StringVar(&outputDir, "out-dir", "", "Directory for results (required)")
	batchCmd.Flags().StringVar(&outputFormat, "format", "jsonl", "Output format: jsonl or sqlite")
	batchCmd.Flags().BoolVar(&watchDirs, "watch", false, "Keep running: process new ion tables and reload the reference when it changes")
	addMatchFlags(batchCmd)

	batchCmd.MarkFlagRequired("in-dir")
	batchCmd.MarkFlagRequired("out-dir")
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Assemble every ion table in a directory",
	Long: `Assemble every ion table (.csv, .tsv, .txt) in a directory, one result file
per table. Tables are processed concurrently against one shared reference index.

With --watch the command keeps running: tables written to the input directory
are processed as they arrive, and the reference index is rebuilt and swapped in
whenever the reference file changes. Runs in flight keep the index they started with.

Examples:
  empcpd batch --in-dir runs/ --out-dir results/ --reference hmdb.csv
  empcpd batch --in-dir incoming/ --out-dir results/ --format sqlite --reference ref.db --watch`,
	RunE: runBatch,
}

func outputExt(format string) (string, error) {
	switch format {
	case "jsonl", "":
		return ".jsonl", nil
	case "sqlite", "db":
		return ".db", nil
	default:
		return "", fmt.Errorf("invalid output format '%s', must be jsonl or sqlite", format)
	}
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ext, err := outputExt(outputFormat)
	if err != nil {
		return err
	}
	if info, err := os.Stat(inputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	log := logger(cmd)
	reg := reference.NewRegistry(cmd.Context(), cfg.Reference, log)
	r, err := newRunnerWithRegistry(cmd, reg)
	if err != nil {
		return err
	}

	res, err := r.ProcessDir(cmd.Context(), inputDir, outputDir, ext, cfg.Workers)
	if err != nil {
		return err
	}
	renderBatch(cmd.OutOrStdout(), res)

	if !watchDirs {
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d of %d ion tables failed", len(res.Failed), len(res.Failed)+len(res.Summaries))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Reference != "" {
		g.Go(func() error {
			return reference.Watch(gctx, cfg.Reference, reg, log)
		})
	}
	g.Go(func() error {
		return r.WatchDir(gctx, inputDir, outputDir, ext)
	})
	return g.Wait()
}

func renderBatch(w io.Writer, res *runner.BatchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Input", "Ions", "EmpCpds", "With Identity", "Rejected", "Output"})
	for _, s := range res.Summaries {
		t.AppendRow(table.Row{filepath.Base(s.Input), s.Ions, s.EmpCpds, s.WithIdentity, s.Rejected, s.Output})
	}
	t.Render()

	failed := make([]string, 0, len(res.Failed))
	for input := range res.Failed {
		failed = append(failed, input)
	}
	sort.Strings(failed)
	for _, input := range failed {
		fmt.Fprintf(w, "Failed: %s: %v\n", filepath.Base(input), res.Failed[input])
	}
}
