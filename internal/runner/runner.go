// Package runner runs the empirical compound pipeline over ion table files
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/empcpd/pkg/core"
	"github.com/ChrisMcGann/empcpd/pkg/pipeline"
	"github.com/ChrisMcGann/empcpd/pkg/reader/ions"
	"github.com/ChrisMcGann/empcpd/pkg/writer/jsonl"
	"github.com/ChrisMcGann/empcpd/pkg/writer/sqlite"
)

// Runner reads ion tables, runs the pipeline and writes results.
// One Runner can process several files concurrently.
type Runner struct {
	Pipeline *pipeline.Pipeline
	Mode     core.Mode // Default mode for tables without a mode column
	Logger   *slog.Logger
	Stdout   io.Writer // Destination for output path "-"

	// runFile replaces RunFile in watch mode when set
	runFile func(ctx context.Context, input, output string) (*Summary, error)
}

// Summary reports one processed file.
type Summary struct {
	RunID            string
	Input            string
	Output           string
	Ions             int
	Relations        int
	EmpCpds          int
	WithIdentity     int
	Rejected         int
	IdentityDegraded bool
}

// IonTable is a parsed ion table with the input line of each ion.
type IonTable struct {
	Ions     []core.Ion
	Lines    []int
	Rejected []ions.Rejection
}

// ReadIonTable reads an ion table, recording malformed records instead of failing.
func ReadIonTable(path string, mode core.Mode) (*IonTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	reader := ions.NewReader(f, ions.Options{DefaultMode: mode})
	t := &IonTable{}
	for reader.Next() {
		t.Ions = append(t.Ions, reader.Ion())
		t.Lines = append(t.Lines, reader.Line())
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	t.Rejected = reader.Rejected()
	return t, nil
}

// sink receives assembled compounds and rejected records.
type sink interface {
	WriteEmpCpd(c *core.EmpiricalCompound) error
	WriteRejection(line int, ionID string, reason error) error
	Finalize() error
}

// jsonlSink writes compounds as JSON Lines; rejections are only logged.
type jsonlSink struct {
	w      *jsonl.Writer
	closer io.Closer
}

func (s *jsonlSink) WriteEmpCpd(c *core.EmpiricalCompound) error {
	return s.w.Write(c)
}

func (s *jsonlSink) WriteRejection(int, string, error) error {
	return nil
}

func (s *jsonlSink) Finalize() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// IsSQLite reports whether an output path selects the SQLite writer.
func IsSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

func (r *Runner) openSink(path string, header sqlite.Header) (sink, error) {
	if path == "-" {
		out := r.Stdout
		if out == nil {
			out = os.Stdout
		}
		return &jsonlSink{w: jsonl.NewWriter(out)}, nil
	}
	if IsSQLite(path) {
		return sqlite.NewWriter(path, header)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &jsonlSink{w: jsonl.NewWriter(f), closer: f}, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// RunFile assembles the ion table at input and writes the result to output.
// Rejected records are logged and written to outputs that keep them.
func (r *Runner) RunFile(ctx context.Context, input, output string) (*Summary, error) {
	log := r.logger().With(slog.String("input", filepath.Base(input)))

	table, err := ReadIonTable(input, r.Mode)
	if err != nil {
		return nil, err
	}
	for _, rej := range table.Rejected {
		log.Warn("rejected ion record", slog.Int("line", rej.Line), slog.String("id", rej.ID), slog.Any("error", rej.Err))
	}

	runID := uuid.NewString()
	log.Info("assembling empirical compounds", slog.String("run", runID), slog.Int("ions", len(table.Ions)))

	res, err := r.Pipeline.Run(ctx, table.Ions)
	if err != nil {
		return nil, err
	}

	out, err := r.openSink(output, sqlite.Header{
		RunID:            runID,
		ReferenceVersion: res.ReferenceVersion,
		Description:      filepath.Base(input),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	finalized := false
	defer func() {
		if !finalized {
			_ = out.Finalize()
		}
	}()

	for _, rej := range table.Rejected {
		if err := out.WriteRejection(rej.Line, rej.ID, rej.Err); err != nil {
			return nil, err
		}
	}
	for _, rej := range res.Rejected {
		if err := out.WriteRejection(table.Lines[rej.Index], rej.ID, rej.Err); err != nil {
			return nil, err
		}
	}

	s := &Summary{
		RunID:            runID,
		Input:            input,
		Output:           output,
		Ions:             len(table.Ions),
		Relations:        res.Relations,
		EmpCpds:          len(res.Candidates),
		Rejected:         len(table.Rejected) + len(res.Rejected),
		IdentityDegraded: res.IdentityDegraded,
	}
	for i := range res.Candidates {
		c := &res.Candidates[i]
		if len(c.Identity) > 0 {
			s.WithIdentity++
		}
		if err := out.WriteEmpCpd(c); err != nil {
			return nil, fmt.Errorf("failed to write empirical compound %s: %w", c.InterimID, err)
		}
	}

	finalized = true
	if err := out.Finalize(); err != nil {
		return nil, fmt.Errorf("failed to finalize output: %w", err)
	}

	log.Info("assembly complete",
		slog.String("run", runID),
		slog.Int("empirical_compounds", s.EmpCpds),
		slog.Int("relations", s.Relations),
		slog.Int("with_identity", s.WithIdentity),
		slog.Int("rejected", s.Rejected),
		slog.Bool("identity_degraded", s.IdentityDegraded),
		slog.String("output", output))

	return s, nil
}
