package assemble

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/empcpd/pkg/core"
	"github.com/ChrisMcGann/empcpd/pkg/match"
)

func pos(id string, mz, intensity float64) core.Ion {
	return core.Ion{ID: id, MZ: mz, RetentionTime: 55, Intensity: intensity, Mode: core.Positive}
}

func build(t *testing.T, ions []core.Ion) []core.EmpiricalCompound {
	t.Helper()
	relations := match.New(nil, match.Options{TolerancePPM: 5}).Match(ions)
	return NewBuilder(nil).Build(ions, relations)
}

func TestBuildIsotopePairWithoutPrimary(t *testing.T) {
	cpds := build(t, []core.Ion{
		pos("F1", 169.0013, 1000),
		pos("F2", 170.0047, 300),
	})

	require.Len(t, cpds, 1)
	c := cpds[0]
	assert.Equal(t, "E1", c.InterimID)
	assert.Len(t, c.Members, 2)
	assert.False(t, c.PrimaryIonPresent)
	assert.Equal(t, core.MassInferred, c.MassConfidence)
	assert.InDelta(t, 169.0013+core.ElectronMass, c.NeutralBaseMass, 1e-9, "lightest member read as M[1+]")

	assert.Equal(t, core.BarePositiveLabel, c.Members[0].IonRelation)
	assert.Equal(t, "M(13C)", c.Members[1].IonRelation)
}

func TestBuildPrimaryAdductSetsBaseMass(t *testing.T) {
	cpds := build(t, []core.Ion{
		pos("F1", 169.0013, 1000),
		pos("F2", 170.0047, 300),
		pos("F3", 170.0086, 5000),
	})

	require.Len(t, cpds, 1)
	c := cpds[0]
	assert.Len(t, c.Members, 3)
	assert.True(t, c.PrimaryIonPresent)
	assert.Equal(t, core.MassFromPrimary, c.MassConfidence)
	assert.InDelta(t, 170.0086-core.ProtonMass, c.NeutralBaseMass, 1e-9)

	labels := map[string]string{}
	for _, m := range c.Members {
		labels[m.ID] = m.IonRelation
	}
	assert.Equal(t, core.PrimaryPositiveLabel, labels["F3"])
	assert.Equal(t, "M(13C)", labels["F2"])
	assert.Len(t, c.Relations, 2)
}

func TestBuildNegativePrimary(t *testing.T) {
	ions := []core.Ion{
		{ID: "anchor", MZ: 181.0707, Intensity: 100, Mode: core.Negative},
		{ID: "deprot", MZ: 180.0634, Intensity: 900, Mode: core.Negative},
	}
	relations := match.New(nil, match.Options{TolerancePPM: 5}).Match(ions)
	cpds := NewBuilder(nil).Build(ions, relations)

	require.Len(t, cpds, 1)
	assert.True(t, cpds[0].PrimaryIonPresent)
	assert.InDelta(t, 180.0634+core.ProtonMass, cpds[0].NeutralBaseMass, 1e-9)
	assert.Equal(t, core.Negative, cpds[0].Mode)
}

func TestBuildKeepsSingletons(t *testing.T) {
	cpds := build(t, []core.Ion{
		pos("F1", 169.0013, 1000),
		pos("F2", 170.0047, 300),
		pos("lonely", 523.77, 50),
	})

	require.Len(t, cpds, 2)
	single := cpds[1]
	assert.Len(t, single.Members, 1)
	assert.Equal(t, "lonely", single.Members[0].ID)
	assert.Equal(t, core.MassUnknown, single.MassConfidence)
	assert.False(t, single.PrimaryIonPresent)
	assert.Empty(t, single.Relations)
	assert.InDelta(t, 523.77+core.ElectronMass, single.NeutralBaseMass, 1e-9)
}

func TestBuildCloseMassesWithoutRelationStaySeparate(t *testing.T) {
	neg := func(id string, mz float64) core.Ion {
		return core.Ion{ID: id, MZ: mz, RetentionTime: 55, Intensity: 10, Mode: core.Negative}
	}

	tests := []struct {
		name string
		ions []core.Ion
	}{
		{"positive", []core.Ion{pos("a", 300.1000, 10), pos("b", 300.1001, 10)}},
		{"positive electron mass apart", []core.Ion{pos("a", 500.2, 10), pos("b", 500.2+core.ElectronMass, 10)}},
		{"negative", []core.Ion{neg("a", 300.1000), neg("b", 300.1001)}},
		{"negative electron mass apart", []core.Ion{neg("a", 500.2), neg("b", 500.2+core.ElectronMass)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpds := build(t, tt.ions)

			require.Len(t, cpds, 2)
			for _, c := range cpds {
				assert.Len(t, c.Members, 1)
				assert.Empty(t, c.Relations)
				assert.Equal(t, core.MassUnknown, c.MassConfidence)
			}
		})
	}
}

func TestBuildNoDoubleAssignment(t *testing.T) {
	ions := []core.Ion{
		pos("F1", 169.0013, 1000),
		pos("F2", 170.0047, 300),
		pos("F3", 170.0086, 5000),
		pos("F4", 191.9906, 200), // M+Na of 169.0013
		pos("G1", 250.1000, 80),
		pos("G2", 251.103355, 20),
		pos("H1", 400.0, 1),
		pos("F1", 169.0013, 1000), // duplicate record
	}

	cpds := build(t, ions)

	seen := map[string]int{}
	for _, c := range cpds {
		for _, m := range c.Members {
			seen[m.ID]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "ion %s assigned %d times", id, n)
	}
	assert.Len(t, seen, 7)
	assert.Len(t, cpds, 3)
}

func groupings(cpds []core.EmpiricalCompound) []string {
	var out []string
	for _, c := range cpds {
		ids := make([]string, 0, len(c.Members))
		for _, m := range c.Members {
			ids = append(ids, m.ID)
		}
		sort.Strings(ids)
		out = append(out, strings.Join(ids, ","))
	}
	sort.Strings(out)
	return out
}

func TestBuildIsIdempotent(t *testing.T) {
	ions := []core.Ion{
		pos("F1", 169.0013, 1000),
		pos("F2", 170.0047, 300),
		pos("F3", 170.0086, 5000),
		pos("G1", 250.1000, 80),
		pos("G2", 251.103355, 20),
		pos("H1", 400.0, 1),
	}
	relations := match.New(nil, match.Options{TolerancePPM: 5}).Match(ions)
	b := NewBuilder(nil)

	first := b.Build(ions, relations)
	reversed := append([]core.IonRelation(nil), relations...)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	second := b.Build(ions, reversed)

	assert.Equal(t, groupings(first), groupings(second))
	assert.Equal(t, first, second)
}

func TestBuildIgnoresRelationsToUnknownIons(t *testing.T) {
	ions := []core.Ion{pos("a", 100, 1)}
	relations := []core.IonRelation{{IonA: "a", IonB: "ghost", Signature: "M(13C)", ObservedDelta: 1.003355}}

	cpds := NewBuilder(nil).Build(ions, relations)

	require.Len(t, cpds, 1)
	assert.Empty(t, cpds[0].Relations)
}

func TestDisjointSet(t *testing.T) {
	ds := newDisjointSet(5)
	ds.union(0, 1)
	ds.union(3, 4)
	ds.union(1, 4)

	assert.Equal(t, ds.find(0), ds.find(3))
	assert.NotEqual(t, ds.find(0), ds.find(2))
}
