package core

import (
	"math"
	"testing"
)

func TestPPMTolerance(t *testing.T) {
	tests := []struct {
		name      string
		mass      float64
		ppm       float64
		want      float64
		tolerance float64
	}{
		{"5 ppm at 200", 200.0, 5, 0.001, 1e-12},
		{"10 ppm at 1000", 1000.0, 10, 0.01, 1e-12},
		{"scales with mass", 2000.0, 10, 0.02, 1e-12},
		{"zero ppm floors at minimum", 169.0013, 0, minAbsTolerance, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PPMTolerance(tt.mass, tt.ppm)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("PPMTolerance() = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestPPMError(t *testing.T) {
	got := PPMError(169.0013, 168.9940)
	if math.Abs(got-43.2) > 0.1 {
		t.Errorf("PPMError() = %.2f, want about 43.2", got)
	}

	if !math.IsInf(PPMError(1.0, 0), 1) {
		t.Error("PPMError() against zero mass should be +Inf")
	}
}

func TestIsotopeShifts(t *testing.T) {
	tests := []struct {
		name  string
		shift float64
		want  float64
	}{
		{"13C", MassC13 - MassC, 1.003355},
		{"15N", MassN15 - MassN, 0.997035},
		{"18O", MassO18 - MassO, 2.004245},
		{"34S", MassS34 - MassS, 1.995796},
		{"33S", MassS33 - MassS, 0.999388},
		{"water", MassWater, 18.010565},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.shift-tt.want) > 1e-6 {
				t.Errorf("shift = %.7f, want %.6f", tt.shift, tt.want)
			}
		})
	}
}
