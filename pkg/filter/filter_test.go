package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

func ions() []core.Ion {
	return []core.Ion{
		{ID: "a", MZ: 300, RetentionTime: 10, Intensity: 100, Mode: core.Positive},
		{ID: "b", MZ: 100, RetentionTime: 50, Intensity: 1000, Mode: core.Positive},
		{ID: "c", MZ: 200, RetentionTime: 90, Intensity: 5, Mode: core.Positive},
		{ID: "d", MZ: 150, RetentionTime: 50, Intensity: 20, Mode: core.Negative},
	}
}

func ids(in []core.Ion) []string {
	out := make([]string, len(in))
	for i, ion := range in {
		out[i] = ion.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"no filters sorts by m/z", Config{}, []string{"b", "d", "c", "a"}},
		{"intensity floor", Config{MinIntensity: 50}, []string{"b", "a"}},
		{"cutoff is per mode", Config{IntensityCutoff: 5}, []string{"b", "d", "a"}},
		{"top-n per mode", Config{TopN: 1}, []string{"b", "d"}},
		{"retention window", Config{RTMin: 20, RTMax: 60}, []string{"b", "d"}},
		{"open-ended window", Config{RTMin: 60}, []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ions()
			got := tt.cfg.Apply(in)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, "a", in[0].ID, "input must not be reordered")
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{IntensityCutoff: 1, TopN: 10, RTMin: 1, RTMax: 5}).Validate())
	assert.Error(t, (&Config{MinIntensity: -1}).Validate())
	assert.Error(t, (&Config{IntensityCutoff: 150}).Validate())
	assert.Error(t, (&Config{TopN: -2}).Validate())
	assert.Error(t, (&Config{RTMin: 10, RTMax: 5}).Validate())
}

func TestIsZero(t *testing.T) {
	assert.True(t, Config{}.IsZero())
	assert.False(t, Config{TopN: 3}.IsZero())
	assert.True(t, (&Config{}).IsZero())

	convert := func() Config { return Config{RTMax: 60} }
	assert.False(t, convert().IsZero())
}
