// Package core provides reference compound records
package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CompoundSchemaVersion is the current compound record layout.
const CompoundSchemaVersion = 2

// ErrNotAvailable is returned by capabilities that have no data source yet.
var ErrNotAvailable = errors.New("not available")

// Compound is a known chemical entity from a reference knowledge base.
type Compound struct {
	SchemaVersion   int               `json:"schema_version"`
	InternalID      string            `json:"internal_id"`
	Name            string            `json:"name"`
	DBIDs           map[string]string `json:"db_ids,omitempty"` // KEGG, HMDB, PubChem, ...
	NeutralFormula  string            `json:"neutral_formula"`
	NeutralMonoMass float64           `json:"neutral_mono_mass"`
	SMILES          string            `json:"smiles,omitempty"`
	InChI           string            `json:"inchi,omitempty"`
}

// CompoundV1 is the legacy layout keyed by azimuth_id with mass stored as mw.
type CompoundV1 struct {
	AzimuthID string            `json:"azimuth_id"`
	Name      string            `json:"name"`
	OtherIDs  map[string]string `json:"other_ids"`
	Formula   string            `json:"formula"`
	InChI     string            `json:"inchi"`
	MW        float64           `json:"mw"`
}

// NewCompound creates a current-schema compound with its own DBIDs map.
func NewCompound(id, name, formula string, mass float64) *Compound {
	return &Compound{
		SchemaVersion:   CompoundSchemaVersion,
		InternalID:      id,
		Name:            name,
		DBIDs:           make(map[string]string),
		NeutralFormula:  formula,
		NeutralMonoMass: mass,
	}
}

// MigrateCompoundV1 converts a legacy record. Identifier maps are copied, never shared.
func MigrateCompoundV1(old CompoundV1) Compound {
	c := NewCompound(old.AzimuthID, old.Name, old.Formula, old.MW)
	for k, v := range old.OtherIDs {
		if v != "" {
			c.DBIDs[k] = v
		}
	}
	c.InChI = old.InChI
	return *c
}

// DecodeCompound parses either schema version and returns a current-schema record.
func DecodeCompound(data []byte) (Compound, error) {
	var probe struct {
		SchemaVersion int     `json:"schema_version"`
		AzimuthID     *string `json:"azimuth_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Compound{}, fmt.Errorf("failed to decode compound: %w", err)
	}

	switch {
	case probe.SchemaVersion == CompoundSchemaVersion:
		var c Compound
		if err := json.Unmarshal(data, &c); err != nil {
			return Compound{}, fmt.Errorf("failed to decode compound: %w", err)
		}
		if c.DBIDs == nil {
			c.DBIDs = make(map[string]string)
		}
		return c, nil
	case probe.SchemaVersion == 1 || (probe.SchemaVersion == 0 && probe.AzimuthID != nil):
		var old CompoundV1
		if err := json.Unmarshal(data, &old); err != nil {
			return Compound{}, fmt.Errorf("failed to decode legacy compound: %w", err)
		}
		return MigrateCompoundV1(old), nil
	default:
		return Compound{}, fmt.Errorf("unsupported compound schema version %d", probe.SchemaVersion)
	}
}

// Validate checks that a compound can be indexed by mass.
func (c *Compound) Validate() error {
	if c.InternalID == "" {
		return &ValidationError{Field: "InternalID", Message: "compound id is required"}
	}
	if c.NeutralMonoMass <= 0 {
		return &ValidationError{ID: c.InternalID, Field: "NeutralMonoMass", Message: "neutral mass must be positive"}
	}
	return nil
}

// PredictedIons returns the expected m/z of each isotope, adduct and composite form in a mode.
func (c *Compound) PredictedIons(table *SignatureTable, mode Mode) map[string]float64 {
	ions := make(map[string]float64)
	for _, e := range table.Lookup(mode) {
		if e.Kind == KindDoubleCharge {
			continue
		}
		ions[e.Label] = c.NeutralMonoMass + e.MassDelta
	}
	return ions
}

// Peak is an m/z, intensity pair of a reference spectrum.
type Peak struct {
	MZ        float64
	Intensity float64
}

// CCS returns the collision cross section. No source provides it yet.
func (c *Compound) CCS() (float64, error) {
	return 0, fmt.Errorf("collision cross section of %s: %w", c.InternalID, ErrNotAvailable)
}

// MS2 returns a reference fragmentation spectrum. No source provides it yet.
func (c *Compound) MS2(mode Mode) ([]Peak, error) {
	return nil, fmt.Errorf("%s MS2 spectrum of %s: %w", mode, c.InternalID, ErrNotAvailable)
}
