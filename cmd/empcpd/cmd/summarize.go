package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/empcpd/pkg/core"
	"github.com/ChrisMcGann/empcpd/pkg/writer/jsonl"
)

var summaryTop int

func init() {
	summarizeCmd.Flags().IntVar(&summaryTop, "top", 10, "Number of best-supported empirical compounds to list")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize an empirical compound result file",
	Long:  `Print summary statistics about a JSON Lines result file: counts by mode and mass confidence, identity coverage, and the best-supported empirical compounds.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

// summary accumulates statistics over a result file.
type summary struct {
	total        int
	byMode       map[core.Mode]int
	byConfidence map[core.MassConfidence]int
	withPrimary  int
	withIdentity int
	singletons   int
	evidenceSum  float64
	top          []*core.EmpiricalCompound
}

func newSummary() *summary {
	return &summary{
		byMode:       make(map[core.Mode]int),
		byConfidence: make(map[core.MassConfidence]int),
	}
}

func (s *summary) add(c *core.EmpiricalCompound, keep int) {
	s.total++
	s.byMode[c.Mode]++
	s.byConfidence[c.MassConfidence]++
	if c.PrimaryIonPresent {
		s.withPrimary++
	}
	if len(c.Identity) > 0 {
		s.withIdentity++
	}
	if len(c.Members) == 1 {
		s.singletons++
	}
	s.evidenceSum += c.EvidenceScore

	if keep <= 0 {
		return
	}
	s.top = append(s.top, c)
	sort.SliceStable(s.top, func(i, j int) bool {
		return s.top[i].EvidenceScore > s.top[j].EvidenceScore
	})
	if len(s.top) > keep {
		s.top = s.top[:keep]
	}
}

func runSummarize(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open result file: %w", err)
	}
	defer f.Close()

	s := newSummary()
	reader := jsonl.NewReader(f)
	for reader.Next() {
		s.add(reader.EmpCpd(), summaryTop)
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading result file: %w", err)
	}

	s.render(cmd.OutOrStdout())
	return nil
}

func (s *summary) render(w io.Writer) {
	fmt.Fprintf(w, "Empirical compounds: %d\n", s.total)
	if s.total == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Statistic", "Count"})
	t.AppendRow(table.Row{"positive mode", s.byMode[core.Positive]})
	t.AppendRow(table.Row{"negative mode", s.byMode[core.Negative]})
	t.AppendRow(table.Row{"mass from primary ion", s.byConfidence[core.MassFromPrimary]})
	t.AppendRow(table.Row{"mass inferred", s.byConfidence[core.MassInferred]})
	t.AppendRow(table.Row{"mass unknown", s.byConfidence[core.MassUnknown]})
	t.AppendRow(table.Row{"with primary ion", s.withPrimary})
	t.AppendRow(table.Row{"with identity", s.withIdentity})
	t.AppendRow(table.Row{"singletons", s.singletons})
	t.AppendFooter(table.Row{"mean evidence", fmt.Sprintf("%.3f", s.evidenceSum/float64(s.total))})
	t.Render()

	if len(s.top) == 0 {
		return
	}

	top := table.NewWriter()
	top.SetOutputMirror(w)
	top.SetStyle(table.StyleLight)
	top.AppendHeader(table.Row{"ID", "Mode", "Base Mass", "Ions", "Signatures", "Top Identity", "Evidence"})
	for _, c := range s.top {
		identity := ""
		if e, ok := c.TopIdentity(); ok {
			identity = fmt.Sprintf("%s (%.2f)", e.Key(), e.Score)
		}
		top.AppendRow(table.Row{
			c.InterimID,
			string(c.Mode),
			fmt.Sprintf("%.4f", c.NeutralBaseMass),
			len(c.Members),
			strings.Join(c.Signatures(), " "),
			identity,
			fmt.Sprintf("%.3f", c.EvidenceScore),
		})
	}
	top.Render()
}
