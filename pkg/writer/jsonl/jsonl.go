// Package jsonl writes and reads empirical compounds as JSON Lines
package jsonl

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ChrisMcGann/empcpd/pkg/core"
)

// maxLineSize bounds one serialized empirical compound.
const maxLineSize = 16 * 1024 * 1024

// Writer writes one empirical compound record per line
type Writer struct {
	w       *bufio.Writer
	written int
}

// NewWriter creates a new JSONL writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends a single record
func (w *Writer) Write(c *core.EmpiricalCompound) error {
	data, err := core.MarshalEmpCpd(c)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.InterimID, err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.InterimID, err)
	}
	w.written++
	return nil
}

// Count returns the number of records written
func (w *Writer) Count() int {
	return w.written
}

// Flush writes buffered records to the underlying writer
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// Reader provides streaming access to JSONL result files
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
	current *core.EmpiricalCompound
	err     error
}

// NewReader creates a new JSONL reader
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: s}
}

// Next advances to the next record. Returns false when no more records or error.
func (r *Reader) Next() bool {
	r.current = nil
	for r.scanner.Scan() {
		r.lineNum++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		c, err := core.UnmarshalEmpCpd(line)
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
			return false
		}
		r.current = c
		return true
	}
	if err := r.scanner.Err(); err != nil {
		r.err = err
	}
	return false
}

// EmpCpd returns the current record
func (r *Reader) EmpCpd() *core.EmpiricalCompound {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}
