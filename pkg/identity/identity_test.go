package identity

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

func cpd(id string, mass float64) core.Compound {
	return *core.NewCompound(id, id, "", mass)
}

func candidate(mass float64) *core.EmpiricalCompound {
	return &core.EmpiricalCompound{InterimID: "E1", NeutralBaseMass: mass}
}

func testIndex(t *testing.T, compounds ...core.Compound) *Index {
	t.Helper()
	idx, err := NewIndex(compounds, "test")
	require.NoError(t, err)
	return idx
}

func TestIndexRange(t *testing.T) {
	idx := testIndex(t,
		cpd("c3", 300.0),
		cpd("c1", 100.0),
		cpd("c2", 100.0005),
		cpd("c4", 100.0020),
	)

	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, "test", idx.Version())

	hits := idx.Range(100.0, 10) // +-0.001
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.InternalID
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)

	assert.Empty(t, idx.Range(200.0, 10))
}

func TestNewIndexRejectsBadCompounds(t *testing.T) {
	_, err := NewIndex([]core.Compound{cpd("a", 0)}, "")
	assert.Error(t, err)

	_, err = NewIndex([]core.Compound{cpd("a", 1), cpd("a", 2)}, "")
	assert.Error(t, err)
}

func TestNewIndexCopiesInput(t *testing.T) {
	src := []core.Compound{cpd("a", 10)}
	idx := testIndex(t, src...)

	src[0].DBIDs["KEGG"] = "C1"
	src[0].NeutralMonoMass = 999

	hits := idx.Range(10, 1)
	require.Len(t, hits, 1)
	assert.Empty(t, hits[0].DBIDs)
}

func TestResolveToleranceBoundary(t *testing.T) {
	idx := testIndex(t, cpd("far", 168.9940))
	r := NewResolver(10)

	entries, err := r.Resolve(candidate(169.0013), idx)
	require.NoError(t, err)
	assert.Empty(t, entries, "43 ppm away must not match at 10 ppm")

	entries, err = NewResolver(50).Resolve(candidate(169.0013), idx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"far"}, entries[0].Compounds)
	assert.InDelta(t, 1.0, entries[0].Score, 1e-12)
}

func TestResolveProbabilitiesSumToOne(t *testing.T) {
	idx := testIndex(t,
		cpd("near", 169.0014),
		cpd("mid", 169.0018),
		cpd("edge", 169.0010),
	)

	entries, err := NewResolver(10).Resolve(candidate(169.0013), idx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var sum float64
	for i, e := range entries {
		assert.Equal(t, core.ScoreProbability, e.Kind)
		sum += e.Score
		if i > 0 {
			assert.GreaterOrEqual(t, entries[i-1].Score, e.Score)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, []string{"near"}, entries[0].Compounds, "smallest error ranks first")
}

func TestResolveIsomersFormJointEntry(t *testing.T) {
	idx := testIndex(t,
		cpd("leucine", 131.094629),
		cpd("isoleucine", 131.094629),
		cpd("other", 131.0950),
	)

	entries, err := NewResolver(10).Resolve(candidate(131.094629), idx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, []string{"isoleucine", "leucine"}, entries[0].Compounds)
	assert.InDelta(t, 1.0, entries[0].Score+entries[1].Score, 1e-9)
}

func TestResolveFlatPrior(t *testing.T) {
	idx := testIndex(t, cpd("b", 200.0001), cpd("a", 199.9998))

	entries, err := NewResolver(5, WithScorer(FlatPrior())).Resolve(candidate(200.0), idx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.InDelta(t, 0.5, entries[0].Score, 1e-12)
	assert.InDelta(t, 0.5, entries[1].Score, 1e-12)
	assert.Equal(t, []string{"a"}, entries[0].Compounds, "equal scores fall back to identifier order")
}

func TestResolveRawScores(t *testing.T) {
	idx := testIndex(t, cpd("a", 200.0))
	custom := ScoreFunc(func(core.Compound, float64) float64 { return 7 })

	entries, err := NewResolver(5, WithScorer(custom), WithRawScores()).Resolve(candidate(200.0), idx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.ScoreRaw, entries[0].Kind)
	assert.Equal(t, 7.0, entries[0].Score)
}

func TestResolveZeroWeightsFallBackToFlat(t *testing.T) {
	idx := testIndex(t, cpd("a", 200.0), cpd("b", 200.0002))
	zero := ScoreFunc(func(core.Compound, float64) float64 { return 0 })

	entries, err := NewResolver(5, WithScorer(zero)).Resolve(candidate(200.0), idx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.InDelta(t, 1.0, entries[0].Score+entries[1].Score, 1e-12)
}

func TestResolveWithoutIndex(t *testing.T) {
	_, err := NewResolver(5).Resolve(candidate(200.0), nil)
	assert.True(t, errors.Is(err, ErrReferenceIndexUnavailable))
}

func TestScorerByName(t *testing.T) {
	for _, name := range []string{"", "inverse_error", "flat"} {
		s, ok := ScorerByName(name)
		assert.True(t, ok, name)
		assert.NotNil(t, s)
	}
	_, ok := ScorerByName("bayesian")
	assert.False(t, ok)

	inv := InverseError(0.5)
	assert.Equal(t, 2.0, inv.Weight(core.Compound{}, 0))
	assert.Equal(t, 0.25, inv.Weight(core.Compound{}, -4))
}

func TestRegistrySwap(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Load()
	assert.ErrorIs(t, err, ErrReferenceIndexUnavailable)

	v1 := testIndex(t, cpd("a", 100))
	v2 := testIndex(t, cpd("a", 100), cpd("b", 200))
	assert.Nil(t, reg.Swap(v1))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				idx, err := reg.Load()
				if assert.NoError(t, err) {
					n := idx.Len()
					assert.True(t, n == 1 || n == 2)
				}
			}
		}()
	}
	old := reg.Swap(v2)
	wg.Wait()

	assert.Same(t, v1, old)
	idx, err := reg.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	var nilReg *Registry
	_, err = nilReg.Load()
	assert.ErrorIs(t, err, ErrReferenceIndexUnavailable)
}
