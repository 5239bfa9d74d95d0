package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSignatureTable(t *testing.T) {
	table := DefaultSignatureTable()

	for _, mode := range []Mode{Positive, Negative} {
		t.Run(string(mode), func(t *testing.T) {
			entries := table.Lookup(mode)
			require.NotEmpty(t, entries)

			seen := map[string]bool{}
			for _, e := range entries {
				assert.False(t, seen[e.Label], "duplicate label %s", e.Label)
				seen[e.Label] = true
				assert.LessOrEqual(t, 0.0, e.MinRatio)
				assert.LessOrEqual(t, e.MinRatio, e.MaxRatio)
				assert.LessOrEqual(t, e.MaxRatio, 1.0)
			}

			primary, ok := table.Entry(mode, PrimaryLabel(mode))
			require.True(t, ok, "primary adduct missing")
			assert.Equal(t, KindAdduct, primary.Kind)

			_, ok = table.Entry(mode, BareLabel(mode))
			assert.True(t, ok, "bare ion form missing")

			c13, ok := table.Entry(mode, "M(13C)")
			require.True(t, ok)
			assert.InDelta(t, MassC13-MassC, c13.MassDelta, 1e-12)
			assert.True(t, c13.HasRatioBounds())
		})
	}

	mh, _ := table.Entry(Positive, PrimaryPositiveLabel)
	assert.Equal(t, ProtonMass, mh.MassDelta)
	mmh, _ := table.Entry(Negative, PrimaryNegativeLabel)
	assert.Equal(t, -ProtonMass, mmh.MassDelta)

	na, _ := table.Entry(Positive, "M+Na")
	assert.InDelta(t, 22.989221, na.MassDelta, 1e-6)
	cl, _ := table.Entry(Negative, "M+Cl[-]")
	assert.InDelta(t, 34.969401, cl.MassDelta, 1e-6)
	bare, _ := table.Entry(Positive, BarePositiveLabel)
	assert.Equal(t, -ElectronMass, bare.MassDelta)
}

func TestLookupReturnsCopy(t *testing.T) {
	table := DefaultSignatureTable()

	entries := table.Lookup(Positive)
	entries[0].MassDelta = 999

	again := table.Lookup(Positive)
	assert.NotEqual(t, 999.0, again[0].MassDelta)
}

func TestNewSignatureTableRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		entries []SignatureEntry
		errSub  string
	}{
		{
			name: "duplicate label",
			entries: []SignatureEntry{
				{MassDelta: 1.0, Label: "X", Kind: KindAdduct, MaxRatio: 1},
				{MassDelta: 2.0, Label: "X", Kind: KindAdduct, MaxRatio: 1},
			},
			errSub: "duplicate",
		},
		{
			name:    "inverted ratio bounds",
			entries: []SignatureEntry{{MassDelta: 1.0, Label: "X", Kind: KindIsotope, MinRatio: 0.5, MaxRatio: 0.2}},
			errSub:  "ratio bounds",
		},
		{
			name:    "ratio above one",
			entries: []SignatureEntry{{MassDelta: 1.0, Label: "X", Kind: KindIsotope, MaxRatio: 1.5}},
			errSub:  "ratio bounds",
		},
		{
			name:    "missing label",
			entries: []SignatureEntry{{MassDelta: 1.0, Kind: KindAdduct, MaxRatio: 1}},
			errSub:  "label is required",
		},
		{
			name:    "unknown kind",
			entries: []SignatureEntry{{MassDelta: 1.0, Label: "X", Kind: "fragment", MaxRatio: 1}},
			errSub:  "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSignatureTable(tt.entries, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestLoadSignaturesYAML(t *testing.T) {
	doc := `
positive:
  - label: M(13C)
    mass_delta: 1.003355
    kind: isotope
    min_ratio: 0
    max_ratio: 0.8
  - label: M+H[1+]
    mass_delta: 1.0073
    kind: adduct
    max_ratio: 1
`
	table, err := LoadSignaturesYAML(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Len(t, table.Lookup(Positive), 2)
	assert.Equal(t, DefaultNegativeSignatures(), table.Lookup(Negative), "negative mode keeps built-in entries")
}

func TestLoadSignaturesCSV(t *testing.T) {
	csv := `mode,label,mass_delta,kind,min_ratio,max_ratio
negative,M-H[-],-1.0073,adduct,0,1
# comment lines are skipped
negative,M(13C),1.003355,isotope,0,0.8

`
	table, err := LoadSignaturesCSV(strings.NewReader(csv))
	require.NoError(t, err)

	neg := table.Lookup(Negative)
	require.Len(t, neg, 2)
	assert.Equal(t, "M-H[-]", neg[0].Label)
	assert.InDelta(t, -1.0073, neg[0].MassDelta, 1e-9)
	assert.Equal(t, DefaultPositiveSignatures(), table.Lookup(Positive))

	_, err = LoadSignaturesCSV(strings.NewReader("header\npositive,X,abc,adduct,0,1\n"))
	assert.Error(t, err)

	_, err = LoadSignaturesCSV(strings.NewReader("header\npositive,X,1.0\n"))
	assert.Error(t, err)
}
