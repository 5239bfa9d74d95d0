package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Flags for assemble command
	inputFile  string
	outputFile string
)

func init() {
	assembleCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Ion table (CSV or TSV) (required)")
	assembleCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output file: .jsonl, .db/.sqlite, or - for stdout (required)")
	addMatchFlags(assembleCmd)

	assembleCmd.MarkFlagRequired("in")
	assembleCmd.MarkFlagRequired("out")
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble empirical compounds from an ion table",
	Long: `Assemble empirical compounds from an LC-MS ion (feature) table.

Ions related by an isotope or adduct mass difference are grouped into one
empirical compound. Each compound gets a neutral base mass, identity candidates
from the reference database and an evidence score.

Examples:
  # Positive mode table against a CSV reference, JSON Lines output
  empcpd assemble --in features.csv --reference hmdb.csv --out empcpds.jsonl

  # Negative mode, tighter tolerance, SQLite output
  empcpd assemble --in features.tsv --mode negative --match-ppm 3 --reference ref.db --out run.db`,
	RunE: runAssemble,
}

func runAssemble(cmd *cobra.Command, _ []string) error {
	if err := requireFile(inputFile); err != nil {
		return err
	}

	r, err := newRunner(cmd)
	if err != nil {
		return err
	}

	_, err = r.RunFile(cmd.Context(), inputFile, outputFile)
	return err
}
