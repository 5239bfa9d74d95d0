// Package core provides the empirical compound record and its serialization
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EmpCpdSchemaVersion is the serialized layout version written by MarshalEmpCpd.
const EmpCpdSchemaVersion = 1

// MassConfidence records how a neutral base mass was derived.
type MassConfidence string

const (
	// MassFromPrimary means the mass was implied by the primary adduct (M+H[1+] or M-H[-]).
	MassFromPrimary MassConfidence = "primary"
	// MassInferred means the lowest-mass member was assumed to be the bare ion form.
	MassInferred MassConfidence = "inferred"
	// MassUnknown marks singletons; the mass is a guess from one unmatched ion.
	MassUnknown MassConfidence = "unknown"
)

// ScoreKind tags how an identity score should be read.
type ScoreKind string

const (
	ScoreProbability ScoreKind = "probability"
	ScoreRaw         ScoreKind = "score"
)

// IonRelation is a matched pair of ions.
// IonB carries the signature relative to IonA, the anchor: ObservedDelta = mz(IonB) - mz(IonA).
type IonRelation struct {
	IonA            string  `json:"ion_a"`
	IonB            string  `json:"ion_b"`
	Signature       string  `json:"signature"`
	ObservedDelta   float64 `json:"observed_delta"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// Member is one observed ion of an empirical compound.
type Member struct {
	ID            string  `json:"id_number"`
	MZ            float64 `json:"mz"`
	RetentionTime float64 `json:"rtime"`
	Intensity     float64 `json:"intensity"`
	IonRelation   string  `json:"ion_relation"`
	Sample        string  `json:"sample,omitempty"`
}

// IdentityEntry is one row of the identity table: one compound, or several
// isobaric/isomeric compounds that cannot be told apart by mass.
type IdentityEntry struct {
	Compounds []string  `json:"compounds"`
	Score     float64   `json:"score"`
	Kind      ScoreKind `json:"score_kind"`
}

// Key returns the joined compound identifiers used for ordering.
func (e IdentityEntry) Key() string {
	return strings.Join(e.Compounds, ",")
}

// EmpiricalCompound is a cluster of ions hypothesized to come from one neutral molecule.
// It has exactly one neutral base mass.
type EmpiricalCompound struct {
	SchemaVersion     int             `json:"schema_version"`
	InterimID         string          `json:"interim_id"`
	Mode              Mode            `json:"ionization_mode"`
	NeutralBaseMass   float64         `json:"neutral_base_mass"`
	MassConfidence    MassConfidence  `json:"mass_confidence"`
	PrimaryIonPresent bool            `json:"primary_ion_present"`
	Members           []Member        `json:"MS1_pseudo_Spectra"`
	Relations         []IonRelation   `json:"ion_relations"`
	Identity          []IdentityEntry `json:"identity"`
	EvidenceScore     float64         `json:"evidence_score"`
}

// Member returns the member with the given ion ID.
func (e *EmpiricalCompound) Member(id string) (Member, bool) {
	for _, m := range e.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// Signatures returns the distinct signature labels supporting the cluster, sorted.
func (e *EmpiricalCompound) Signatures() []string {
	seen := make(map[string]struct{}, len(e.Relations))
	for _, r := range e.Relations {
		seen[r.Signature] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// TopIdentity returns the highest ranked identity entry, if any.
func (e *EmpiricalCompound) TopIdentity() (IdentityEntry, bool) {
	if len(e.Identity) == 0 {
		return IdentityEntry{}, false
	}
	return e.Identity[0], true
}

// SortIdentity orders entries by descending score, ties by compound identifiers.
func SortIdentity(entries []IdentityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Key() < entries[j].Key()
	})
}

// MarshalEmpCpd serializes a record to its flat JSON form.
func MarshalEmpCpd(e *EmpiricalCompound) ([]byte, error) {
	rec := *e
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = EmpCpdSchemaVersion
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal empirical compound %s: %w", e.InterimID, err)
	}
	return data, nil
}

// UnmarshalEmpCpd parses a record produced by MarshalEmpCpd.
func UnmarshalEmpCpd(data []byte) (*EmpiricalCompound, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var e EmpiricalCompound
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal empirical compound: %w", err)
	}
	if e.SchemaVersion != EmpCpdSchemaVersion {
		return nil, fmt.Errorf("unsupported empirical compound schema version %d", e.SchemaVersion)
	}
	return &e, nil
}
