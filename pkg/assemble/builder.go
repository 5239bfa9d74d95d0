// Package assemble clusters related ions into empirical compounds
package assemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// Builder turns ion relations into empirical compound candidates.
type Builder struct {
	table *core.SignatureTable
}

// NewBuilder creates a Builder. A nil table uses the built-in signatures.
func NewBuilder(table *core.SignatureTable) *Builder {
	if table == nil {
		table = core.DefaultSignatureTable()
	}
	return &Builder{table: table}
}

// Build groups ions into connected components over the relation graph.
// Every ion ends up in exactly one candidate; ions without relations become singletons.
// Candidates are ordered by their lightest member and numbered E1, E2, ...
func (b *Builder) Build(ions []core.Ion, relations []core.IonRelation) []core.EmpiricalCompound {
	// Unique ions, lightest first
	sorted := make([]core.Ion, 0, len(ions))
	seen := make(map[string]bool, len(ions))
	for _, ion := range ions {
		if seen[ion.ID] {
			continue
		}
		seen[ion.ID] = true
		sorted = append(sorted, ion)
	}
	core.SortIonsByMZ(sorted)

	index := make(map[string]int, len(sorted))
	for i, ion := range sorted {
		index[ion.ID] = i
	}

	sets := newDisjointSet(len(sorted))
	for _, r := range relations {
		a, okA := index[r.IonA]
		c, okB := index[r.IonB]
		if okA && okB {
			sets.union(a, c)
		}
	}

	// Components keyed by root, kept in order of their lightest member
	var roots []int
	members := make(map[int][]int)
	for i := range sorted {
		root := sets.find(i)
		if _, ok := members[root]; !ok {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}

	componentRelations := make(map[int][]core.IonRelation)
	for _, r := range relations {
		a, okA := index[r.IonA]
		_, okB := index[r.IonB]
		if okA && okB {
			root := sets.find(a)
			componentRelations[root] = append(componentRelations[root], r)
		}
	}

	candidates := make([]core.EmpiricalCompound, 0, len(roots))
	for n, root := range roots {
		group := make([]core.Ion, 0, len(members[root]))
		for _, i := range members[root] {
			group = append(group, sorted[i])
		}
		cpd := b.assemble(group, componentRelations[root])
		cpd.InterimID = fmt.Sprintf("E%d", n+1)
		candidates = append(candidates, cpd)
	}

	return candidates
}

// assemble derives labels and the neutral base mass of one component.
func (b *Builder) assemble(group []core.Ion, relations []core.IonRelation) core.EmpiricalCompound {
	mode := group[0].Mode
	primary := core.PrimaryLabel(mode)

	rels := append([]core.IonRelation(nil), relations...)
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].IonA != rels[j].IonA {
			return rels[i].IonA < rels[j].IonA
		}
		return rels[i].IonB < rels[j].IonB
	})

	byID := make(map[string]core.Ion, len(group))
	for _, ion := range group {
		byID[ion.ID] = ion
	}

	cpd := core.EmpiricalCompound{
		SchemaVersion: core.EmpCpdSchemaVersion,
		Mode:          mode,
		Relations:     rels,
	}

	labels := b.memberLabels(mode, rels)
	for _, ion := range group {
		label, ok := labels[ion.ID]
		if !ok {
			label = core.BareLabel(mode)
		}
		cpd.Members = append(cpd.Members, core.Member{
			ID:            ion.ID,
			MZ:            ion.MZ,
			RetentionTime: ion.RetentionTime,
			Intensity:     ion.Intensity,
			IonRelation:   label,
			Sample:        ion.Sample,
		})
	}

	// Step 1: the primary adduct implies the neutral mass directly
	var anchor *core.Ion
	var anchorDelta float64
	for _, r := range rels {
		if r.Signature != primary {
			continue
		}
		form := byID[r.IonB]
		if anchor == nil || form.Intensity > anchor.Intensity ||
			(form.Intensity == anchor.Intensity && form.MZ < anchor.MZ) {
			f := form
			anchor = &f
			anchorDelta = b.delta(mode, primary, r.ObservedDelta)
		}
	}
	if anchor != nil {
		cpd.NeutralBaseMass = anchor.MZ - anchorDelta
		cpd.PrimaryIonPresent = true
		cpd.MassConfidence = core.MassFromPrimary
		return cpd
	}

	// Step 2: otherwise assume the lightest member is the bare ion form
	bareDelta := b.delta(mode, core.BareLabel(mode), -mode.Sign()*core.ElectronMass)
	cpd.NeutralBaseMass = group[0].MZ - bareDelta
	cpd.MassConfidence = core.MassInferred
	if len(group) == 1 {
		cpd.MassConfidence = core.MassUnknown
	}

	return cpd
}

// memberLabels picks one ion-relation label per ion that carries a signature.
// The primary adduct wins, then the smallest mass shift.
func (b *Builder) memberLabels(mode core.Mode, rels []core.IonRelation) map[string]string {
	primary := core.PrimaryLabel(mode)
	labels := make(map[string]string)
	shift := make(map[string]float64)

	for _, r := range rels {
		d := math.Abs(b.delta(mode, r.Signature, r.ObservedDelta))
		current, ok := labels[r.IonB]
		switch {
		case !ok:
		case current == primary:
			continue
		case r.Signature == primary:
		case d < shift[r.IonB]:
		case d == shift[r.IonB] && r.Signature < current:
		default:
			continue
		}
		labels[r.IonB] = r.Signature
		shift[r.IonB] = d
	}

	return labels
}

// delta returns the table's mass shift for a label, or fallback when the table lacks it.
func (b *Builder) delta(mode core.Mode, label string, fallback float64) float64 {
	if e, ok := b.table.Entry(mode, label); ok {
		return e.MassDelta
	}
	return fallback
}
