// Package core provides the mass-difference signature tables
package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SignatureKind classifies what a mass difference represents.
type SignatureKind string

const (
	KindIsotope      SignatureKind = "isotope"
	KindAdduct       SignatureKind = "adduct"
	KindComposite    SignatureKind = "composite"
	KindDoubleCharge SignatureKind = "double_charge"
)

// Labels with a fixed role in base-mass derivation
const (
	PrimaryPositiveLabel = "M+H[1+]"
	PrimaryNegativeLabel = "M-H[-]"
	BarePositiveLabel    = "M[1+]"
	BareNegativeLabel    = "M[-]"
)

// SignatureEntry is a recognized mass shift of an ion form relative to its anchor ion.
//
// MassDelta follows one convention everywhere: m/z(ion form) - mass(anchor).
// M+H[1+] is +1.0073 and M-H[-] is -1.0073, so the anchor mass implied by an
// ion carrying the signature is mz - MassDelta.
type SignatureEntry struct {
	MassDelta float64       `yaml:"mass_delta" json:"mass_delta"`
	Label     string        `yaml:"label" json:"label"`
	Kind      SignatureKind `yaml:"kind" json:"kind"`
	MinRatio  float64       `yaml:"min_ratio" json:"min_ratio"`
	MaxRatio  float64       `yaml:"max_ratio" json:"max_ratio"`
}

// HasRatioBounds reports whether intensity ratios are meaningful for this entry.
func (e SignatureEntry) HasRatioBounds() bool {
	return e.Kind == KindIsotope || e.Kind == KindDoubleCharge
}

// RatioWithin reports whether an observed intensity ratio falls inside the entry's bounds.
func (e SignatureEntry) RatioWithin(ratio float64) bool {
	return ratio >= e.MinRatio && ratio <= e.MaxRatio
}

func (e SignatureEntry) validate() error {
	if e.Label == "" {
		return fmt.Errorf("signature label is required")
	}
	if math.IsNaN(e.MassDelta) || math.IsInf(e.MassDelta, 0) {
		return fmt.Errorf("signature %s has invalid mass delta", e.Label)
	}
	if e.MinRatio < 0 || e.MaxRatio > 1 || e.MinRatio > e.MaxRatio {
		return fmt.Errorf("signature %s ratio bounds [%g, %g] must satisfy 0 <= min <= max <= 1", e.Label, e.MinRatio, e.MaxRatio)
	}
	switch e.Kind {
	case KindIsotope, KindAdduct, KindComposite, KindDoubleCharge:
	default:
		return fmt.Errorf("signature %s has unknown kind '%s'", e.Label, e.Kind)
	}
	return nil
}

// SignatureTable stores the signature entries of both ionization modes.
// It is read-only once constructed.
type SignatureTable struct {
	entries map[Mode][]SignatureEntry
	byLabel map[Mode]map[string]int
}

// NewSignatureTable validates and freezes the given per-mode entries.
func NewSignatureTable(positive, negative []SignatureEntry) (*SignatureTable, error) {
	t := &SignatureTable{
		entries: make(map[Mode][]SignatureEntry, 2),
		byLabel: make(map[Mode]map[string]int, 2),
	}
	for mode, list := range map[Mode][]SignatureEntry{Positive: positive, Negative: negative} {
		idx := make(map[string]int, len(list))
		for i, e := range list {
			if err := e.validate(); err != nil {
				return nil, fmt.Errorf("%s table: %w", mode, err)
			}
			if _, dup := idx[e.Label]; dup {
				return nil, fmt.Errorf("%s table: duplicate signature label '%s'", mode, e.Label)
			}
			idx[e.Label] = i
		}
		t.entries[mode] = append([]SignatureEntry(nil), list...)
		t.byLabel[mode] = idx
	}
	return t, nil
}

// Lookup returns a copy of the ordered entries for a mode.
func (t *SignatureTable) Lookup(mode Mode) []SignatureEntry {
	return append([]SignatureEntry(nil), t.entries[mode]...)
}

// Entry returns the entry with the given label in a mode.
func (t *SignatureTable) Entry(mode Mode, label string) (SignatureEntry, bool) {
	i, ok := t.byLabel[mode][label]
	if !ok {
		return SignatureEntry{}, false
	}
	return t.entries[mode][i], true
}

// PrimaryLabel returns the label of the primary adduct for a mode.
func PrimaryLabel(mode Mode) string {
	if mode == Negative {
		return PrimaryNegativeLabel
	}
	return PrimaryPositiveLabel
}

// BareLabel returns the label of the bare ionized form for a mode.
func BareLabel(mode Mode) string {
	if mode == Negative {
		return BareNegativeLabel
	}
	return BarePositiveLabel
}

// Isotope mass shifts
const (
	shift13C = MassC13 - MassC
	shift15N = MassN15 - MassN
	shift18O = MassO18 - MassO
	shift34S = MassS34 - MassS
	shift33S = MassS33 - MassS
)

// Adduct mass shifts, m/z of the ion form minus the neutral mass
const (
	shiftBarePos  = -ElectronMass
	shiftH        = ProtonMass
	shiftH2OH     = MassWater + ProtonMass
	shiftNa       = MassNa - ElectronMass
	shiftBareNeg  = ElectronMass
	shiftLossH    = -ProtonMass
	shiftLossH2OH = -(MassWater + ProtonMass)
	shiftCl       = MassCl + ElectronMass
	shiftCl37     = MassCl37 + ElectronMass
)

// Isotope shifts with natural-abundance ratio bounds, shared by both modes
var isotopeSignatures = []SignatureEntry{
	{shift13C, "M(13C)", KindIsotope, 0, 0.8}, // 12C ~99%, 13C ~1%
	{shift15N, "M(15N)", KindIsotope, 0, 0.2}, // 14N ~99.64%, 15N ~0.36%
	{shift18O, "M(18O)", KindIsotope, 0, 0.2}, // 16O ~99.76%, 18O ~0.2%
	{shift34S, "M(34S)", KindIsotope, 0, 0.4}, // 32S 95.02%, 34S 4.21%
	{shift33S, "M(33S)", KindIsotope, 0, 0.1}, // 33S 0.75%
}

var doubleChargeSignatures = []SignatureEntry{
	{shift13C / 2, "double charged with C13", KindDoubleCharge, 0, 0.8},
	{shift15N / 2, "double charged with N15", KindDoubleCharge, 0, 0.2},
}

// The bare ion forms only serve labelling and base-mass derivation.
var positiveAdducts = []SignatureEntry{
	{shiftBarePos, "M[1+]", KindAdduct, 0, 1},
	{shiftH, "M+H[1+]", KindAdduct, 0, 1},
	{shiftH2OH, "M+H2O+H[1+]", KindAdduct, 0, 1},
	{shiftNa, "M+Na", KindAdduct, 0, 1},
	{shift13C + shiftH, "M(13C),M+H[1+]", KindComposite, 0, 1},
	{shift13C + shiftH2OH, "M(13C),M+H2O+H[1+]", KindComposite, 0, 1},
	{shift13C + shiftNa, "M(13C),M+Na", KindComposite, 0, 1},
	{shift13C + shift15N, "M(13C),M(15N)", KindComposite, 0, 1},
	{shift13C + shift34S, "M(13C),M(34S)", KindComposite, 0, 1},
	{shift15N + shiftH, "M(15N),M+H[1+]", KindComposite, 0, 1},
	{shift15N + shiftH2OH, "M(15N),M+H2O+H[1+]", KindComposite, 0, 1},
	{shift15N + shiftNa, "M(15N),M+Na", KindComposite, 0, 1},
}

var negativeAdducts = []SignatureEntry{
	{shiftBareNeg, "M[-]", KindAdduct, 0, 1},
	{shiftLossH, "M-H[-]", KindAdduct, 0, 1},
	{shiftLossH2OH, "M-H2O-H[-]", KindAdduct, 0, 1},
	{shiftCl, "M+Cl[-]", KindAdduct, 0, 1},
	{shiftCl37, "M+Cl37[-]", KindAdduct, 0, 1}, // 35Cl 75.77%, 37Cl 24.23%
	{shift13C + shiftCl, "M(13C),M+Cl[-]", KindComposite, 0, 1},
	{shift13C + shift15N, "M(13C),M(15N)", KindComposite, 0, 1},
	{shift13C + shift34S, "M(13C),M(34S)", KindComposite, 0, 1},
}

func concatEntries(lists ...[]SignatureEntry) []SignatureEntry {
	var out []SignatureEntry
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// DefaultPositiveSignatures returns the built-in positive mode entries.
func DefaultPositiveSignatures() []SignatureEntry {
	return concatEntries(isotopeSignatures, positiveAdducts, doubleChargeSignatures)
}

// DefaultNegativeSignatures returns the built-in negative mode entries.
func DefaultNegativeSignatures() []SignatureEntry {
	return concatEntries(isotopeSignatures, negativeAdducts, doubleChargeSignatures)
}

// DefaultSignatureTable returns a SignatureTable pre-loaded with the built-in entries
func DefaultSignatureTable() *SignatureTable {
	t, err := NewSignatureTable(DefaultPositiveSignatures(), DefaultNegativeSignatures())
	if err != nil {
		panic(fmt.Sprintf("built-in signature table is invalid: %v", err))
	}
	return t
}

// signatureFile is the YAML layout of an override table.
type signatureFile struct {
	Positive []SignatureEntry `yaml:"positive"`
	Negative []SignatureEntry `yaml:"negative"`
}

// LoadSignaturesYAML builds a table from YAML. A mode absent from the document keeps the built-in entries.
func LoadSignaturesYAML(r io.Reader) (*SignatureTable, error) {
	var doc signatureFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode signature YAML: %w", err)
	}
	pos, neg := doc.Positive, doc.Negative
	if pos == nil {
		pos = DefaultPositiveSignatures()
	}
	if neg == nil {
		neg = DefaultNegativeSignatures()
	}
	return NewSignatureTable(pos, neg)
}

// LoadSignaturesCSV builds a table from CSV (format: mode,label,mass_delta,kind,min_ratio,max_ratio).
// A mode without rows keeps the built-in entries.
func LoadSignaturesCSV(r io.Reader) (*SignatureTable, error) {
	scanner := bufio.NewScanner(r)

	// Skip header line
	if scanner.Scan() {
		// header line
	}

	lists := map[Mode][]SignatureEntry{}
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			return nil, fmt.Errorf("line %d: invalid format, expected 6 comma-separated fields", lineNum)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		mode, err := ParseMode(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		var nums [3]float64
		for i, s := range []string{parts[2], parts[4], parts[5]} {
			nums[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number '%s': %w", lineNum, s, err)
			}
		}

		lists[mode] = append(lists[mode], SignatureEntry{
			Label:     parts[1],
			MassDelta: nums[0],
			Kind:      SignatureKind(parts[3]),
			MinRatio:  nums[1],
			MaxRatio:  nums[2],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}

	pos, neg := lists[Positive], lists[Negative]
	if pos == nil {
		pos = DefaultPositiveSignatures()
	}
	if neg == nil {
		neg = DefaultNegativeSignatures()
	}
	return NewSignatureTable(pos, neg)
}
