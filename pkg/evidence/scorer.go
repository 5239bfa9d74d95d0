// Package evidence scores how well an empirical compound is supported by its ions
package evidence

import (
	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// Config holds scoring weights
type Config struct {
	MissingPrimaryPenalty float64 // Multiplier when no primary adduct was observed (0 < p <= 1)
	RatioPenalty          float64 // Weight of an isotope pair whose intensity ratio is out of bounds (0 < p <= 1)
}

// DefaultConfig returns the default scoring weights.
func DefaultConfig() Config {
	return Config{
		MissingPrimaryPenalty: 0.5,
		RatioPenalty:          0.5,
	}
}

// Scorer computes evidence scores. The result is non-negative and unbounded;
// normalize before comparing across experiments.
type Scorer struct {
	table *core.SignatureTable
	cfg   Config
}

// NewScorer creates a Scorer. Out-of-range weights fall back to the defaults.
func NewScorer(table *core.SignatureTable, cfg Config) *Scorer {
	if table == nil {
		table = core.DefaultSignatureTable()
	}
	def := DefaultConfig()
	if cfg.MissingPrimaryPenalty <= 0 || cfg.MissingPrimaryPenalty > 1 {
		cfg.MissingPrimaryPenalty = def.MissingPrimaryPenalty
	}
	if cfg.RatioPenalty <= 0 || cfg.RatioPenalty > 1 {
		cfg.RatioPenalty = def.RatioPenalty
	}
	return &Scorer{table: table, cfg: cfg}
}

// Score returns base * primary * plausibility, where base is one plus the number
// of distinct signatures, primary penalizes a missing primary adduct, and
// plausibility averages isotope-pair ratio checks.
func (s *Scorer) Score(c *core.EmpiricalCompound) float64 {
	base := 1 + float64(len(c.Signatures()))

	primary := 1.0
	if !c.PrimaryIonPresent {
		primary = s.cfg.MissingPrimaryPenalty
	}

	return base * primary * s.Plausibility(c)
}

// Plausibility is the mean over isotope relations of 1 (ratio in bounds) or
// RatioPenalty (out of bounds). Clusters without checkable pairs score 1.
func (s *Scorer) Plausibility(c *core.EmpiricalCompound) float64 {
	var sum float64
	var n int
	for _, r := range c.Relations {
		entry, ok := s.table.Entry(c.Mode, r.Signature)
		if !ok || !entry.HasRatioBounds() {
			continue
		}
		anchor, okA := c.Member(r.IonA)
		form, okB := c.Member(r.IonB)
		if !okA || !okB || anchor.Intensity <= 0 {
			continue
		}

		n++
		if entry.RatioWithin(form.Intensity / anchor.Intensity) {
			sum++
		} else {
			sum += s.cfg.RatioPenalty
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}
