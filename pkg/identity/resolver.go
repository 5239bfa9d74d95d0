package identity

import (
	"errors"
	"math"
	"sort"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// ErrReferenceIndexUnavailable is returned when no reference index is loaded.
var ErrReferenceIndexUnavailable = errors.New("reference index unavailable")

// errorTieEpsilon groups compounds whose mass errors agree to this many ppm.
const errorTieEpsilon = 1e-9

// Scorer weighs one reference match given its mass error in ppm.
type Scorer interface {
	Weight(c core.Compound, errPPM float64) float64
}

// ScoreFunc adapts a function to the Scorer interface.
type ScoreFunc func(c core.Compound, errPPM float64) float64

// Weight calls f.
func (f ScoreFunc) Weight(c core.Compound, errPPM float64) float64 {
	return f(c, errPPM)
}

// InverseError weighs matches by 1/|error|, with errors below floorPPM treated as floorPPM.
func InverseError(floorPPM float64) Scorer {
	if floorPPM <= 0 {
		floorPPM = 0.01
	}
	return ScoreFunc(func(_ core.Compound, errPPM float64) float64 {
		return 1 / math.Max(math.Abs(errPPM), floorPPM)
	})
}

// FlatPrior gives every match the same weight.
func FlatPrior() Scorer {
	return ScoreFunc(func(core.Compound, float64) float64 { return 1 })
}

// ScorerByName returns a built-in scorer: inverse_error (default) or flat.
func ScorerByName(name string) (Scorer, bool) {
	switch name {
	case "", "inverse_error":
		return InverseError(0), true
	case "flat":
		return FlatPrior(), true
	default:
		return nil, false
	}
}

// Resolver builds identity tables for empirical compounds.
type Resolver struct {
	tolerancePPM float64
	scorer       Scorer
	normalize    bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithScorer replaces the default inverse-error scorer.
func WithScorer(s Scorer) Option {
	return func(r *Resolver) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithRawScores keeps scorer weights unnormalized and tags them ScoreRaw.
func WithRawScores() Option {
	return func(r *Resolver) {
		r.normalize = false
	}
}

// NewResolver creates a Resolver matching within tolerancePPM of the neutral base mass.
func NewResolver(tolerancePPM float64, opts ...Option) *Resolver {
	r := &Resolver{
		tolerancePPM: tolerancePPM,
		scorer:       InverseError(0),
		normalize:    true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type match struct {
	compound core.Compound
	absErr   float64
	weight   float64
}

// Resolve returns the ranked identity table of a candidate. No match yields an
// empty table. Compounds with the same mass error share one joint entry.
func (r *Resolver) Resolve(c *core.EmpiricalCompound, idx *Index) ([]core.IdentityEntry, error) {
	if idx == nil {
		return nil, ErrReferenceIndexUnavailable
	}

	hits := idx.Range(c.NeutralBaseMass, r.tolerancePPM)
	if len(hits) == 0 {
		return nil, nil
	}

	matches := make([]match, 0, len(hits))
	for _, h := range hits {
		errPPM := core.PPMError(c.NeutralBaseMass, h.NeutralMonoMass)
		w := r.scorer.Weight(h, errPPM)
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			w = 0
		}
		matches = append(matches, match{compound: h, absErr: math.Abs(errPPM), weight: w})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].absErr != matches[j].absErr {
			return matches[i].absErr < matches[j].absErr
		}
		return matches[i].compound.InternalID < matches[j].compound.InternalID
	})

	// Group equal mass errors into joint entries
	var entries []core.IdentityEntry
	var total float64
	for i := 0; i < len(matches); {
		j := i
		entry := core.IdentityEntry{Kind: core.ScoreRaw}
		for j < len(matches) && matches[j].absErr-matches[i].absErr <= errorTieEpsilon {
			entry.Compounds = append(entry.Compounds, matches[j].compound.InternalID)
			entry.Score += matches[j].weight
			j++
		}
		sort.Strings(entry.Compounds)
		total += entry.Score
		entries = append(entries, entry)
		i = j
	}

	if r.normalize {
		for i := range entries {
			if total > 0 {
				entries[i].Score /= total
			} else {
				entries[i].Score = float64(len(entries[i].Compounds)) / float64(len(matches))
			}
			entries[i].Kind = core.ScoreProbability
		}
	}

	core.SortIdentity(entries)
	return entries, nil
}
