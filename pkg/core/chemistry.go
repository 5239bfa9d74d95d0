// Package core provides mass arithmetic shared by the empirical compound pipeline
package core

import "math"

// Atomic and particle masses (monoisotopic)
const (
	MassH    = 1.0078250321
	MassC    = 12.0000000000
	MassC13  = 13.0033548378
	MassN    = 14.0030740052
	MassN15  = 15.0001088984
	MassO    = 15.9949146221
	MassO18  = 17.9991596129
	MassNa   = 22.9897692809
	MassS    = 31.9720710000
	MassS33  = 32.9714587600
	MassS34  = 33.9678669000
	MassCl   = 34.9688527300
	MassCl37 = 36.9659025900

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
	// Electron mass, the difference between M and M[1+]
	ElectronMass = 0.00054857990946

	MassWater = 2*MassH + MassO
)

// minAbsTolerance keeps exact-delta matches stable against float rounding when ppm is 0.
const minAbsTolerance = 1e-9

// PPMTolerance returns the absolute tolerance in Da for ppm at the given mass.
func PPMTolerance(mass, ppm float64) float64 {
	tol := math.Abs(mass) * ppm * 1e-6
	if tol < minAbsTolerance {
		return minAbsTolerance
	}
	return tol
}

// PPMError returns the signed error of observed against expected, in ppm of expected.
func PPMError(observed, expected float64) float64 {
	if expected == 0 {
		return math.Inf(1)
	}
	return (observed - expected) / expected * 1e6
}
