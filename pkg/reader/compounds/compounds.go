// Package compounds loads reference compound records from CSV, JSON and SQLite sources
package compounds

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// CSV column names accepted for each compound field, matched case-insensitively.
var columnAliases = map[string][]string{
	"id":      {"internal_id", "id", "azimuth_id", "compound_id"},
	"name":    {"name"},
	"formula": {"neutral_formula", "formula"},
	"mass":    {"neutral_mono_mass", "monoisotopic_mass", "mass", "mw"},
	"smiles":  {"smiles"},
	"inchi":   {"inchi"},
}

// Columns copied into Compound.DBIDs when present.
var dbIDColumns = []string{"hmdb", "kegg", "pubchem", "chebi", "cas"}

// Load reads compounds from path, choosing the format by extension:
// .csv/.tsv, .json/.jsonl, or .db/.sqlite/.sqlite3.
func Load(ctx context.Context, path string) ([]core.Compound, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f, ',')
	case ".tsv", ".txt":
		return ReadCSV(f, '\t')
	case ".json", ".jsonl", ".ndjson":
		return ReadJSON(f)
	default:
		return nil, fmt.Errorf("unsupported reference format '%s'", filepath.Ext(path))
	}
}

// ReadCSV reads a delimited table with a header row. Any malformed row fails the load.
func ReadCSV(r io.Reader, delim rune) ([]core.Compound, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read compound header: %w", err)
	}

	columns := make(map[string]int)
	dbCols := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for field, aliases := range columnAliases {
			if _, seen := columns[field]; seen {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[field] = i
				}
			}
		}
		for _, db := range dbIDColumns {
			if name == db || name == db+"_id" {
				dbCols[db] = i
			}
		}
	}
	for _, required := range []string{"id", "mass"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("compound header is missing column '%s'", required)
		}
	}

	var out []core.Compound
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read compound table: %w", err)
		}
		line, _ := cr.FieldPos(0)

		get := func(field string) string {
			i, ok := columns[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		massStr := get("mass")
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass '%s'", line, massStr)
		}

		c := core.NewCompound(get("id"), get("name"), get("formula"), mass)
		c.SMILES = get("smiles")
		c.InChI = get("inchi")
		for db, i := range dbCols {
			if i < len(record) {
				if v := strings.TrimSpace(record[i]); v != "" {
					c.DBIDs[db] = v
				}
			}
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, *c)
	}

	return out, nil
}

// ReadJSON reads either a JSON array of compound records or one record per line.
// Each record may use the current or the legacy schema.
func ReadJSON(r io.Reader) ([]core.Compound, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(br)

	var out []core.Compound
	add := func(raw json.RawMessage) error {
		c, err := core.DecodeCompound(raw)
		if err != nil {
			return fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		out = append(out, c)
		return nil
	}

	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("failed to read compound array: %w", err)
		}
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("failed to read compound array: %w", err)
			}
			if err := add(raw); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read compound records: %w", err)
		}
		if err := add(raw); err != nil {
			return nil, err
		}
	}
}

// firstNonSpace skips leading whitespace and returns the next byte without
// consuming it. An empty input yields 0.
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read compounds: %w", err)
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// LoadSQLite reads CompoundTable from a SQLite reference database.
func LoadSQLite(ctx context.Context, path string) ([]core.Compound, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return ReadSQL(ctx, db)
}

// ReadSQL reads CompoundTable through an open connection.
func ReadSQL(ctx context.Context, db *sql.DB) ([]core.Compound, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT CompoundId, Name, Formula, MonoisotopicMass,
			HMDBId, KEGGId, PubChemId, SmilesDescription, InChi
		FROM CompoundTable
		ORDER BY CompoundId
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query compounds: %w", err)
	}
	defer rows.Close()

	var out []core.Compound
	for rows.Next() {
		var (
			id                          string
			name, formula               sql.NullString
			mass                        sql.NullFloat64
			hmdb, kegg, pubchem, smiles sql.NullString
			inchi                       sql.NullString
		)
		if err := rows.Scan(&id, &name, &formula, &mass, &hmdb, &kegg, &pubchem, &smiles, &inchi); err != nil {
			return nil, fmt.Errorf("failed to scan compound: %w", err)
		}

		c := core.NewCompound(id, name.String, formula.String, mass.Float64)
		for db, v := range map[string]sql.NullString{"hmdb": hmdb, "kegg": kegg, "pubchem": pubchem} {
			if v.String != "" {
				c.DBIDs[db] = v.String
			}
		}
		c.SMILES = smiles.String
		c.InChI = inchi.String
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("compound %s: %w", id, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read compounds: %w", err)
	}

	return out, nil
}
