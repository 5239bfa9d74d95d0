// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/empcpd/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "empcpd",
	Short: "empcpd - Empirical compound assembly for LC-MS feature tables",
	Long: `empcpd groups the ions of a metabolomics feature table into empirical
compounds: clusters of isotopologues and adducts explained by one neutral
molecule. Each empirical compound gets a neutral base mass, a ranked table of
candidate identities from a reference compound database, and an evidence score.

Configuration is read from empcpd.yaml, EMPCPD_* environment variables and
flags, in increasing order of precedence.`,
	Version: "0.3.0",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		if cfg.File != "" {
			logger.Debug("using config file", slog.String("path", cfg.File))
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(config.WithLogger(ctx, logger))
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(signaturesCmd)
	rootCmd.AddCommand(summarizeCmd)

	// Global flags; names map onto config keys
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./empcpd.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose (debug) logging")
	pf.String("mode", "", "Ionization mode for tables without a mode column: positive or negative")
	pf.String("signatures", "", "Signature table override (YAML or CSV)")
}

// addMatchFlags registers the matching, identity and filter flags on commands that run the pipeline.
func addMatchFlags(c *cobra.Command) {
	f := c.Flags()
	f.Float64("match-ppm", config.DefaultMatchPPM, "Mass tolerance in ppm for signature matching between ions")
	f.Float64("identity-ppm", config.DefaultIdentityPPM, "Mass tolerance in ppm for reference compound matching")
	f.Float64("rt-tolerance", 0, "Retention time co-elution window in seconds (0 = no gate)")
	f.Int("workers", 0, "Concurrent empirical compounds during scoring (0 = all CPUs)")
	f.String("scoring", config.DefaultScoring, "Identity scoring: inverse_error or flat")
	f.String("reference", "", "Reference compound database (CSV, TSV, JSON, JSONL or SQLite)")
	f.Float64("min-intensity", 0, "Drop ions below this intensity (0 = no floor)")
	f.Float64("cutoff", 0, "Drop ions below this % of the most intense ion of the same mode (0 = no cutoff)")
	f.Int("top-n", 0, "Keep only the N most intense ions per mode (0 = no limit)")
	f.Float64("rt-min", 0, "Retention time window start in seconds (0 = open)")
	f.Float64("rt-max", 0, "Retention time window end in seconds (0 = open)")
	f.Float64("primary-penalty", 0.5, "Evidence multiplier when no primary adduct is observed")
	f.Float64("ratio-penalty", 0.5, "Evidence weight of an isotope pair with an implausible intensity ratio")
}

// logger returns the command logger.
func logger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

// requireFile checks that an input path exists.
func requireFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	return nil
}
