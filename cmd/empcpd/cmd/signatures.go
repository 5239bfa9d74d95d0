package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

var neutralMass float64

func init() {
	signaturesCmd.Flags().Float64Var(&neutralMass, "mass", 0, "Also list the predicted m/z of each form for this neutral mass")
}

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "List the isotope and adduct signatures for a mode",
	Long: `List the isotope and adduct mass differences used for matching in the
selected ionization mode (--mode), from the built-in table or --signatures.

Examples:
  empcpd signatures --mode negative
  empcpd signatures --mass 180.0634`,
	Args: cobra.NoArgs,
	RunE: runSignatures,
}

func runSignatures(cmd *cobra.Command, _ []string) error {
	tbl, err := loadSignatureTable(cfg.Signatures)
	if err != nil {
		return err
	}
	mode := cfg.IonMode()

	var predicted map[string]float64
	if neutralMass > 0 {
		c := core.NewCompound("query", "", "", neutralMass)
		predicted = c.PredictedIons(tbl, mode)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	header := table.Row{"Label", "Kind", "Mass Delta", "Ratio Bounds"}
	if predicted != nil {
		header = append(header, "Predicted m/z")
	}
	t.AppendHeader(header)

	for _, e := range tbl.Lookup(mode) {
		bounds := ""
		if e.HasRatioBounds() {
			bounds = fmt.Sprintf("%g - %g", e.MinRatio, e.MaxRatio)
		}
		row := table.Row{e.Label, string(e.Kind), fmt.Sprintf("%.6f", e.MassDelta), bounds}
		if predicted != nil {
			mz, ok := predicted[e.Label]
			if ok {
				row = append(row, fmt.Sprintf("%.4f", mz))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s (%d signatures)\n", mode, len(tbl.Lookup(mode)))
	return nil
}
