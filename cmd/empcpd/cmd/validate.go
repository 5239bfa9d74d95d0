package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/empcpd/internal/runner"
	"github.com/ChrisMcGann/empcpd/pkg/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate an ion table",
	Long: `Validate that an ion table is well formed. Every rejected record is listed
with its line number; the command fails if any record is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

type rejectedRow struct {
	line   int
	id     string
	reason string
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := requireFile(path); err != nil {
		return err
	}

	ionTab, err := runner.ReadIonTable(path, cfg.IonMode())
	if err != nil {
		return err
	}

	var rows []rejectedRow
	for _, r := range ionTab.Rejected {
		rows = append(rows, rejectedRow{line: r.Line, id: r.ID, reason: r.Err.Error()})
	}
	valid, rejected := pipeline.Ingest(ionTab.Ions)
	for _, r := range rejected {
		rows = append(rows, rejectedRow{line: ionTab.Lines[r.Index], id: r.ID, reason: r.Err.Error()})
	}

	out := cmd.OutOrStdout()
	renderRejections(out, rows)
	fmt.Fprintf(out, "Valid: %d ions\n", len(valid))

	if len(rows) > 0 {
		return fmt.Errorf("%d records rejected", len(rows))
	}
	return nil
}

func renderRejections(w io.Writer, rows []rejectedRow) {
	if len(rows) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Line", "ID", "Reason"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.line, r.id, r.reason})
	}
	t.Render()
}
