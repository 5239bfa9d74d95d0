// Package filter provides ion pre-filtering before matching
package filter

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	MinIntensity    float64 // Drop ions below this absolute intensity (0 = no floor)
	IntensityCutoff float64 // Keep only ions above this % of the most intense ion of the same mode (0 = no cutoff)
	TopN            int     // Keep only the N most intense ions per mode (0 = no limit)
	RTMin           float64 // Retention time window start in seconds (0 = open)
	RTMax           float64 // Retention time window end in seconds (0 = open)
}

// Validate checks the filter settings.
func (c *Config) Validate() error {
	if c.MinIntensity < 0 {
		return fmt.Errorf("min intensity must be non-negative")
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return fmt.Errorf("intensity cutoff must be between 0 and 100 percent")
	}
	if c.TopN < 0 {
		return fmt.Errorf("top-n must be non-negative")
	}
	if c.RTMax > 0 && c.RTMin > c.RTMax {
		return fmt.Errorf("retention time window [%g, %g] is inverted", c.RTMin, c.RTMax)
	}
	return nil
}

// IsZero reports whether the config filters nothing.
func (c Config) IsZero() bool {
	return c == Config{}
}

// Apply returns the ions that pass all configured filters, sorted by m/z.
// The input slice is not modified.
func (c *Config) Apply(ions []core.Ion) []core.Ion {
	out := make([]core.Ion, 0, len(ions))
	for _, ion := range ions {
		if c.RTMin > 0 && ion.RetentionTime < c.RTMin {
			continue
		}
		if c.RTMax > 0 && ion.RetentionTime > c.RTMax {
			continue
		}
		if ion.Intensity < c.MinIntensity {
			continue
		}
		out = append(out, ion)
	}

	if c.IntensityCutoff > 0 {
		out = c.filterByIntensity(out)
	}
	if c.TopN > 0 {
		out = c.filterTopN(out)
	}

	core.SortIonsByMZ(out)
	return out
}

// filterByIntensity removes ions below the cutoff percentage of their mode's base intensity
func (c *Config) filterByIntensity(ions []core.Ion) []core.Ion {
	maxIntensity := map[core.Mode]float64{}
	for _, ion := range ions {
		if ion.Intensity > maxIntensity[ion.Mode] {
			maxIntensity[ion.Mode] = ion.Intensity
		}
	}

	var filtered []core.Ion
	for _, ion := range ions {
		threshold := (c.IntensityCutoff / 100.0) * maxIntensity[ion.Mode]
		if ion.Intensity >= threshold {
			filtered = append(filtered, ion)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense ions of each mode
func (c *Config) filterTopN(ions []core.Ion) []core.Ion {
	sorted := make([]core.Ion, len(ions))
	copy(sorted, ions)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Intensity > sorted[j].Intensity
	})

	kept := map[core.Mode]int{}
	var filtered []core.Ion
	for _, ion := range sorted {
		if kept[ion.Mode] >= c.TopN {
			continue
		}
		kept[ion.Mode]++
		filtered = append(filtered, ion)
	}
	return filtered
}
