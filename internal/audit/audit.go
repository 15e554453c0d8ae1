// Package audit records link rewrites: the line-oriented run output and a
// JSONL journal that can be shipped to object storage after the run.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/thesavant42/fix-download-links/internal/models"
)

// Printer writes the run output: one line per format, one JSON line per
// attempted rewrite, and the final count. A nil Printer discards everything.
type Printer struct {
	w io.Writer
}

// attemptLine is the structured line printed for every attempted rewrite
type attemptLine struct {
	ID     any    `json:"id"`
	Field  string `json:"field"`
	Old    string `json:"old"`
	New    string `json:"new"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// NewPrinter writes run output lines to w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Processing announces the format about to be processed
func (p *Printer) Processing(format string) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.w, "processing: %s\n", format)
}

// Attempt prints a rewrite before it is applied
func (p *Printer) Attempt(rw models.Rewrite) error {
	if p == nil {
		return nil
	}
	line, err := encodeLine(attemptLine{
		ID:     rw.ID,
		Field:  rw.Field,
		Old:    rw.Old,
		New:    rw.New,
		DryRun: rw.DryRun,
	})
	if err != nil {
		return fmt.Errorf("failed to encode rewrite of %s: %w", rw.Field, err)
	}
	_, err = p.w.Write(line)
	return err
}

// Summary prints the run counter
func (p *Printer) Summary(done int) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.w, "count_done: %d\n", done)
}

// Journal keeps every rewrite outcome as JSON lines, in memory and
// optionally in a file
type Journal struct {
	buf  bytes.Buffer
	file *os.File
	n    int
}

// NewJournal returns an in-memory journal
func NewJournal() *Journal {
	return &Journal{}
}

// CreateJournal returns a journal that also appends to the file at path
func CreateJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &Journal{file: f}, nil
}

// Record appends one rewrite outcome
func (j *Journal) Record(rw models.Rewrite) error {
	if j == nil {
		return nil
	}
	line, err := encodeLine(rw)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	j.buf.Write(line)
	if j.file != nil {
		if _, err := j.file.Write(line); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	j.n++
	return nil
}

// Len returns the number of records written
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return j.n
}

// Bytes returns the JSONL content recorded by this journal
func (j *Journal) Bytes() []byte {
	if j == nil {
		return nil
	}
	return j.buf.Bytes()
}

// Close closes the backing file, if any
func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}

// encodeLine marshals v as a single JSON line without HTML escaping so URLs stay readable
func encodeLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
