// Package identity matches empirical compounds to reference compounds by neutral mass
package identity

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// Index is an immutable mass-sorted view of a reference compound collection.
// It is safe for concurrent readers without locking.
type Index struct {
	compounds []core.Compound
	masses    []float64
	version   string
}

// NewIndex copies, validates and sorts compounds by neutral mass.
func NewIndex(compounds []core.Compound, version string) (*Index, error) {
	sorted := make([]core.Compound, 0, len(compounds))
	seen := make(map[string]bool, len(compounds))
	for i := range compounds {
		c := compounds[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("reference compound %d: %w", i, err)
		}
		if seen[c.InternalID] {
			return nil, fmt.Errorf("reference compound %d: duplicate id '%s'", i, c.InternalID)
		}
		seen[c.InternalID] = true

		ids := make(map[string]string, len(c.DBIDs))
		for k, v := range c.DBIDs {
			ids[k] = v
		}
		c.DBIDs = ids
		sorted = append(sorted, c)
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].NeutralMonoMass != sorted[j].NeutralMonoMass {
			return sorted[i].NeutralMonoMass < sorted[j].NeutralMonoMass
		}
		return sorted[i].InternalID < sorted[j].InternalID
	})

	masses := make([]float64, len(sorted))
	for i, c := range sorted {
		masses[i] = c.NeutralMonoMass
	}

	return &Index{compounds: sorted, masses: masses, version: version}, nil
}

// Len returns the number of indexed compounds.
func (x *Index) Len() int {
	return len(x.compounds)
}

// Version returns the label the index was built with.
func (x *Index) Version() string {
	return x.version
}

// Range returns compounds whose neutral mass lies within ppm of mass, lightest first.
func (x *Index) Range(mass, ppm float64) []core.Compound {
	tol := core.PPMTolerance(mass, ppm)
	lo := sort.SearchFloat64s(x.masses, mass-tol)
	hi := sort.Search(len(x.masses), func(i int) bool { return x.masses[i] > mass+tol })
	if lo >= hi {
		return nil
	}
	return append([]core.Compound(nil), x.compounds[lo:hi]...)
}
