// Package pipeline assembles empirical compounds from a run's ion list
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/empcpd/pkg/assemble"
	"github.com/ChrisMcGann/empcpd/pkg/core"
	"github.com/ChrisMcGann/empcpd/pkg/evidence"
	"github.com/ChrisMcGann/empcpd/pkg/filter"
	"github.com/ChrisMcGann/empcpd/pkg/identity"
	"github.com/ChrisMcGann/empcpd/pkg/match"
)

// Config holds pipeline settings
type Config struct {
	MatchPPM    float64 // Tolerance for signature matching between ions
	IdentityPPM float64 // Tolerance for neutral mass against reference compounds
	RTTolerance float64 // Co-elution gate in seconds (<= 0 disables)
	Workers     int     // Concurrent components (<= 0 uses GOMAXPROCS)
	Filter      filter.Config
	Evidence    evidence.Config
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		MatchPPM:    5,
		IdentityPPM: 10,
		Evidence:    evidence.DefaultConfig(),
	}
}

// Rejection reports one ion record excluded at ingestion.
type Rejection struct {
	Index int    // Position in the input list
	ID    string // Ion ID, if any
	Err   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("record %d: %v", r.Index, r.Err)
}

// Result is the output of one run.
type Result struct {
	Candidates       []core.EmpiricalCompound
	Rejected         []Rejection
	Relations        int
	ReferenceVersion string
	IdentityDegraded bool // No reference index was available; identity tables are empty
}

// Pipeline runs match, build, resolve and score over isolated ion lists.
// It holds no per-run state and can serve concurrent Run calls.
type Pipeline struct {
	cfg      Config
	matcher  *match.Matcher
	builder  *assemble.Builder
	resolver *identity.Resolver
	scorer   *evidence.Scorer
	registry *identity.Registry
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	logger *slog.Logger
	scorer identity.Scorer
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = l
	}
}

// WithIdentityScorer replaces the identity scoring function.
func WithIdentityScorer(s identity.Scorer) Option {
	return func(o *pipelineOptions) {
		o.scorer = s
	}
}

// New creates a Pipeline. A nil table uses the built-in signatures; a nil
// registry runs without identity resolution.
func New(table *core.SignatureTable, registry *identity.Registry, cfg Config, opts ...Option) *Pipeline {
	o := pipelineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if table == nil {
		table = core.DefaultSignatureTable()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return &Pipeline{
		cfg:      cfg,
		matcher:  match.New(table, match.Options{TolerancePPM: cfg.MatchPPM, RTTolerance: cfg.RTTolerance}),
		builder:  assemble.NewBuilder(table),
		resolver: identity.NewResolver(cfg.IdentityPPM, identity.WithScorer(o.scorer)),
		scorer:   evidence.NewScorer(table, cfg.Evidence),
		registry: registry,
		logger:   o.logger,
	}
}

// Ingest validates ion records. Invalid or duplicate records are reported
// individually and excluded; the rest are returned in input order.
func Ingest(ions []core.Ion) ([]core.Ion, []Rejection) {
	valid := make([]core.Ion, 0, len(ions))
	var rejected []Rejection
	seen := make(map[string]bool, len(ions))

	for i, ion := range ions {
		if err := ion.Validate(); err != nil {
			rejected = append(rejected, Rejection{Index: i, ID: ion.ID, Err: err})
			continue
		}
		if seen[ion.ID] {
			rejected = append(rejected, Rejection{Index: i, ID: ion.ID, Err: &core.ValidationError{
				ID: ion.ID, Field: "ID", Message: "duplicate ion id",
			}})
			continue
		}
		seen[ion.ID] = true
		valid = append(valid, ion)
	}

	return valid, rejected
}

// Run assembles, resolves and scores empirical compounds for one ion list.
// Malformed records and a missing reference index degrade the result rather
// than failing it; only context cancellation returns an error.
func (p *Pipeline) Run(ctx context.Context, ions []core.Ion) (*Result, error) {
	valid, rejected := Ingest(ions)
	for _, r := range rejected {
		p.logger.Warn("rejected ion record", slog.Int("index", r.Index), slog.String("id", r.ID), slog.Any("error", r.Err))
	}

	if !p.cfg.Filter.IsZero() {
		before := len(valid)
		valid = p.cfg.Filter.Apply(valid)
		p.logger.Debug("filtered ions", slog.Int("before", before), slog.Int("after", len(valid)))
	}

	relations := p.matcher.Match(valid)
	candidates := p.builder.Build(valid, relations)
	p.logger.Debug("assembled empirical compounds",
		slog.Int("ions", len(valid)),
		slog.Int("relations", len(relations)),
		slog.Int("candidates", len(candidates)))

	result := &Result{
		Candidates: candidates,
		Rejected:   rejected,
		Relations:  len(relations),
	}

	idx, err := p.registry.Load()
	if err != nil {
		if !errors.Is(err, identity.ErrReferenceIndexUnavailable) {
			return nil, err
		}
		p.logger.Warn("identity resolution skipped", slog.Any("error", err))
		result.IdentityDegraded = true
	} else {
		result.ReferenceVersion = idx.Version()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range candidates {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := &candidates[i]
			if idx != nil {
				entries, err := p.resolver.Resolve(c, idx)
				if err != nil {
					p.logger.Warn("identity resolution failed", slog.String("empcpd", c.InterimID), slog.Any("error", err))
				}
				c.Identity = entries
			}
			c.EvidenceScore = p.scorer.Score(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score empirical compounds: %w", err)
	}

	return result, nil
}
