package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/empcpd/internal/reference"
	"github.com/ChrisMcGann/empcpd/internal/runner"
	"github.com/ChrisMcGann/empcpd/pkg/core"
	"github.com/ChrisMcGann/empcpd/pkg/identity"
	"github.com/ChrisMcGann/empcpd/pkg/pipeline"
)

// loadSignatureTable returns the built-in table or the configured override.
func loadSignatureTable(path string) (*core.SignatureTable, error) {
	if path == "" {
		return core.DefaultSignatureTable(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature table: %w", err)
	}
	defer f.Close()

	var table *core.SignatureTable
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		table, err = core.LoadSignaturesYAML(f)
	case ".csv":
		table, err = core.LoadSignaturesCSV(f)
	default:
		return nil, fmt.Errorf("cannot detect signature table format from extension '%s'", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signature table %s: %w", path, err)
	}
	return table, nil
}

// newRunnerWithRegistry builds a file runner from the loaded configuration around reg.
func newRunnerWithRegistry(cmd *cobra.Command, reg *identity.Registry) (*runner.Runner, error) {
	table, err := loadSignatureTable(cfg.Signatures)
	if err != nil {
		return nil, err
	}

	log := logger(cmd)
	p := pipeline.New(table, reg, cfg.PipelineConfig(),
		pipeline.WithLogger(log),
		pipeline.WithIdentityScorer(cfg.Scorer()))

	return &runner.Runner{
		Pipeline: p,
		Mode:     cfg.IonMode(),
		Logger:   log,
		Stdout:   cmd.OutOrStdout(),
	}, nil
}

// newRunner builds a file runner with the configured reference database.
func newRunner(cmd *cobra.Command) (*runner.Runner, error) {
	reg := reference.NewRegistry(cmd.Context(), cfg.Reference, logger(cmd))
	return newRunnerWithRegistry(cmd, reg)
}
