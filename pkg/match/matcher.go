// Package match finds ion pairs whose mass difference is a known signature
package match

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// Options holds matching configuration
type Options struct {
	TolerancePPM float64 // Tolerance in ppm of the heavier ion of a pair
	RTTolerance  float64 // Max retention time difference in seconds (<= 0 disables the gate)
}

// Matcher pairs ions against a signature table.
// All pairs are compared; ion counts per run are small enough that no index is needed.
type Matcher struct {
	table *core.SignatureTable
	opts  Options
}

// New creates a Matcher. A nil table uses the built-in signatures.
func New(table *core.SignatureTable, opts Options) *Matcher {
	if table == nil {
		table = core.DefaultSignatureTable()
	}
	if opts.TolerancePPM < 0 {
		opts.TolerancePPM = 0
	}
	return &Matcher{table: table, opts: opts}
}

// Table returns the signature table used by the matcher.
func (m *Matcher) Table() *core.SignatureTable {
	return m.table
}

// Match returns one relation for every pair of same-mode ions whose mass
// difference matches a signature. Pairs without a match produce nothing.
// Ion IDs must be unique.
func (m *Matcher) Match(ions []core.Ion) []core.IonRelation {
	sorted := append([]core.Ion(nil), ions...)
	core.SortIonsByMZ(sorted)

	entries := map[core.Mode][]core.SignatureEntry{
		core.Positive: pairable(m.table.Lookup(core.Positive), core.Positive),
		core.Negative: pairable(m.table.Lookup(core.Negative), core.Negative),
	}

	var relations []core.IonRelation
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			light, heavy := sorted[i], sorted[j]
			if light.Mode != heavy.Mode || light.ID == heavy.ID {
				continue
			}
			if m.opts.RTTolerance > 0 && math.Abs(light.RetentionTime-heavy.RetentionTime) > m.opts.RTTolerance {
				continue
			}

			entry, ok := m.closest(entries[light.Mode], heavy.MZ-light.MZ, heavy.MZ)
			if !ok {
				continue
			}
			relations = append(relations, orient(light, heavy, entry))
		}
	}

	return relations
}

// pairable drops the bare ion form, which names an ion's own charge state and
// never relates two ions.
func pairable(entries []core.SignatureEntry, mode core.Mode) []core.SignatureEntry {
	bare := core.BareLabel(mode)
	out := entries[:0]
	for _, e := range entries {
		if e.Label != bare {
			out = append(out, e)
		}
	}
	return out
}

// closest picks the entry nearest to delta within tolerance. Equal residuals
// prefer the smaller mass shift, the simpler explanation. Shifts no larger than
// the tolerance are skipped: they cannot tell a related ion from an isobaric one.
func (m *Matcher) closest(entries []core.SignatureEntry, delta, mass float64) (core.SignatureEntry, bool) {
	tol := core.PPMTolerance(mass, m.opts.TolerancePPM)

	best := -1
	bestResidual := math.Inf(1)
	for i, e := range entries {
		if math.Abs(e.MassDelta) <= tol {
			continue
		}
		residual := math.Abs(delta - math.Abs(e.MassDelta))
		if residual > tol {
			continue
		}
		if residual < bestResidual ||
			(residual == bestResidual && math.Abs(e.MassDelta) < math.Abs(entries[best].MassDelta)) {
			best = i
			bestResidual = residual
		}
	}
	if best < 0 {
		return core.SignatureEntry{}, false
	}
	return entries[best], true
}

// orient assigns the anchor so that ObservedDelta carries the same sign as the entry.
func orient(light, heavy core.Ion, e core.SignatureEntry) core.IonRelation {
	anchor, form := light, heavy
	if e.MassDelta < 0 {
		anchor, form = heavy, light
	}
	return core.IonRelation{
		IonA:            anchor.ID,
		IonB:            form.ID,
		Signature:       e.Label,
		ObservedDelta:   form.MZ - anchor.MZ,
		WithinTolerance: true,
	}
}

// SortRelations orders relations by anchor ID, then form ID.
func SortRelations(relations []core.IonRelation) {
	sort.Slice(relations, func(i, j int) bool {
		if relations[i].IonA != relations[j].IonA {
			return relations[i].IonA < relations[j].IonA
		}
		return relations[i].IonB < relations[j].IonB
	})
}
