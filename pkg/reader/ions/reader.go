// Package ions provides streaming readers for delimited ion (feature) tables
package ions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// Column names accepted for each field, matched case-insensitively.
var columnAliases = map[string][]string{
	"id":        {"id", "id_number", "feature", "feature_id"},
	"mz":        {"mz", "m/z"},
	"rtime":     {"rtime", "rt", "retention_time"},
	"intensity": {"intensity", "height"},
	"mode":      {"mode", "ionization_mode"},
	"sample":    {"sample"},
}

var requiredColumns = []string{"id", "mz", "rtime", "intensity"}

// Rejection reports a record that could not be parsed.
type Rejection struct {
	Line int    // 1-based line in the input, header included
	ID   string // Record ID, if it could be read
	Err  error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("line %d: %v", r.Line, r.Err)
}

// Options configures a Reader.
type Options struct {
	Delimiter   rune      // Field separator; 0 detects tab or comma from the header line
	DefaultMode core.Mode // Mode for tables without a mode column
}

// Reader provides streaming access to ion tables
type Reader struct {
	src      io.Reader
	opts     Options
	csv      *csv.Reader
	columns  map[string]int
	current  core.Ion
	curLine  int
	rejected []Rejection
	err      error
}

// NewReader creates a new ion table reader
func NewReader(r io.Reader, opts Options) *Reader {
	if opts.DefaultMode == "" {
		opts.DefaultMode = core.Positive
	}
	return &Reader{src: r, opts: opts}
}

// Next advances to the next well-formed ion. Malformed records are recorded
// as rejections and skipped. Returns false at end of input or on error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	if r.csv == nil {
		if err := r.readHeader(); err != nil {
			r.err = err
			return false
		}
	}

	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				r.rejected = append(r.rejected, Rejection{Line: perr.StartLine, Err: perr.Err})
				continue
			}
			r.err = fmt.Errorf("failed to read ion table: %w", err)
			return false
		}
		if isBlank(record) {
			continue
		}
		line, _ := r.csv.FieldPos(0)

		ion, err := r.parseRecord(record)
		if err != nil {
			r.rejected = append(r.rejected, Rejection{Line: line, ID: ion.ID, Err: err})
			continue
		}
		r.current = ion
		r.curLine = line
		return true
	}
}

// Ion returns the current ion
func (r *Reader) Ion() core.Ion {
	return r.current
}

// Line returns the input line of the current ion
func (r *Reader) Line() int {
	return r.curLine
}

// Rejected returns the records skipped so far
func (r *Reader) Rejected() []Rejection {
	return r.rejected
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readHeader sniffs the delimiter and maps column names to positions
func (r *Reader) readHeader() error {
	delim := r.opts.Delimiter
	src := r.src
	if delim == 0 {
		peek := make([]byte, 4096)
		n, err := io.ReadFull(src, peek)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return fmt.Errorf("failed to read ion table header: %w", err)
		}
		peek = peek[:n]
		delim = detectDelimiter(peek)
		src = io.MultiReader(strings.NewReader(string(peek)), src)
	}

	r.csv = csv.NewReader(src)
	r.csv.Comma = delim
	r.csv.Comment = '#'
	r.csv.FieldsPerRecord = -1
	r.csv.TrimLeadingSpace = true
	r.csv.ReuseRecord = true

	header, err := r.csv.Read()
	if err == io.EOF {
		return fmt.Errorf("ion table is empty")
	}
	if err != nil {
		return fmt.Errorf("failed to read ion table header: %w", err)
	}
	r.columns = make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for field, aliases := range columnAliases {
			if _, seen := r.columns[field]; seen {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					r.columns[field] = i
				}
			}
		}
	}

	var missing []string
	for _, field := range requiredColumns {
		if _, ok := r.columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("ion table header is missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// detectDelimiter picks tab when the first line contains one, comma otherwise
func detectDelimiter(data []byte) rune {
	first := string(data)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if strings.Contains(first, "\t") {
		return '\t'
	}
	return ','
}

// parseRecord converts one row into an ion
func (r *Reader) parseRecord(record []string) (core.Ion, error) {
	field := func(name string) (string, bool) {
		i, ok := r.columns[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	var ion core.Ion
	id, _ := field("id")
	ion.ID = id

	number := func(name string) (float64, error) {
		s, ok := field(name)
		if !ok || s == "" {
			return 0, fmt.Errorf("missing %s", name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s '%s'", name, s)
		}
		return v, nil
	}

	var err error
	if ion.MZ, err = number("mz"); err != nil {
		return ion, err
	}
	if ion.RetentionTime, err = number("rtime"); err != nil {
		return ion, err
	}
	if ion.Intensity, err = number("intensity"); err != nil {
		return ion, err
	}

	ion.Mode = r.opts.DefaultMode
	if s, ok := field("mode"); ok && s != "" {
		m, err := core.ParseMode(s)
		if err != nil {
			return ion, err
		}
		ion.Mode = m
	}
	if s, ok := field("sample"); ok {
		ion.Sample = s
	}

	return ion, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ReadAll reads every well-formed ion from r.
func ReadAll(r io.Reader, opts Options) ([]core.Ion, []Rejection, error) {
	reader := NewReader(r, opts)
	var out []core.Ion
	for reader.Next() {
		out = append(out, reader.Ion())
	}
	if err := reader.Err(); err != nil {
		return nil, reader.Rejected(), err
	}
	return out, reader.Rejected(), nil
}
