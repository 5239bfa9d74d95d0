// Package core provides the record models and validation logic
// for ion measurements used by the empirical compound pipeline.
package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Mode is the ionization mode of a measurement.
type Mode string

const (
	Positive Mode = "positive"
	Negative Mode = "negative"
)

// ParseMode accepts the common spellings of an ionization mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "+":
		return Positive, nil
	case "negative", "neg", "-":
		return Negative, nil
	default:
		return "", fmt.Errorf("unknown ionization mode '%s', must be positive or negative", s)
	}
}

// Sign returns +1 for positive mode and -1 for negative mode.
func (m Mode) Sign() float64 {
	if m == Negative {
		return -1
	}
	return 1
}

// ErrInvalidMeasurement marks an ion record rejected at ingestion.
var ErrInvalidMeasurement = errors.New("invalid measurement")

// Ion is a single observed mass spectrometry feature.
type Ion struct {
	// Required fields
	ID            string  // Feature or peak reference, unique within a run
	MZ            float64 // Observed mass
	RetentionTime float64 // Seconds
	Intensity     float64
	Mode          Mode

	// Optional metadata
	Sample string
}

// ValidationError represents an error found during ion validation.
type ValidationError struct {
	ID      string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error in %s of %s: %s", e.Field, e.ID, e.Message)
}

// Unwrap lets callers test with errors.Is(err, ErrInvalidMeasurement).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidMeasurement
}

// Validate checks that an ion meets all requirements for matching.
func (ion *Ion) Validate() error {
	var errs []string
	field := "Ion"

	if ion.ID == "" {
		errs = append(errs, "id is required")
	}
	if math.IsNaN(ion.MZ) || math.IsInf(ion.MZ, 0) {
		errs = append(errs, "m/z is not a finite number")
		field = "MZ"
	} else if ion.MZ <= 0 {
		errs = append(errs, "m/z must be positive")
		field = "MZ"
	}
	if math.IsNaN(ion.RetentionTime) || math.IsInf(ion.RetentionTime, 0) {
		errs = append(errs, "retention time is not a finite number")
		field = "RetentionTime"
	} else if ion.RetentionTime < 0 {
		errs = append(errs, "retention time must be non-negative")
		field = "RetentionTime"
	}
	if math.IsNaN(ion.Intensity) || ion.Intensity < 0 {
		errs = append(errs, "intensity must be non-negative")
		field = "Intensity"
	}
	if ion.Mode != Positive && ion.Mode != Negative {
		errs = append(errs, fmt.Sprintf("unknown ionization mode '%s'", ion.Mode))
		field = "Mode"
	}

	if len(errs) > 0 {
		if len(errs) > 1 {
			field = "Ion"
		}
		return &ValidationError{
			ID:      ion.ID,
			Field:   field,
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// SortIonsByMZ sorts ions by m/z ascending, then by ID.
func SortIonsByMZ(ions []Ion) {
	sort.SliceStable(ions, func(i, j int) bool {
		if ions[i].MZ != ions[j].MZ {
			return ions[i].MZ < ions[j].MZ
		}
		return ions[i].ID < ions[j].ID
	})
}
