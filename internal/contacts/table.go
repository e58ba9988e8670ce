// Package contacts reads and rewrites the input contact table.
package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrMissingColumn = errors.New("column not found")
	ErrEmptyTable    = errors.New("contact table has no header")
)

// Contact is one row of the input table. Phone is the raw cell value.
type Contact struct {
	Phone string
	Name  string
	Row   int // index into Table.Rows
}

// Table is the full CSV, kept so rows can be written back unchanged.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	phoneIdx int
	nameIdx  int
}

// Load reads path and locates the phone column (required) and the name
// column (optional).
func Load(path, phoneCol, nameCol string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts: %w", err)
	}
	defer f.Close()

	t, err := Read(f, phoneCol, nameCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Path = path
	return t, nil
}

// Read parses a contact table from r.
func Read(r io.Reader, phoneCol, nameCol string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{
		Header:   header,
		Rows:     records[1:],
		phoneIdx: columnIndex(header, phoneCol),
		nameIdx:  columnIndex(header, nameCol),
	}
	if t.phoneIdx < 0 {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrMissingColumn, phoneCol, strings.Join(header, ", "))
	}
	return t, nil
}

func columnIndex(header []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx := columnIndex(t.Header, name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrMissingColumn, name, strings.Join(t.Header, ", "))
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = cell(row, idx)
	}
	return out, nil
}

// HasNames reports whether the table has the name column.
func (t *Table) HasNames() bool { return t.nameIdx >= 0 }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Contacts returns every row in file order.
func (t *Table) Contacts() []Contact {
	out := make([]Contact, 0, len(t.Rows))
	for i, row := range t.Rows {
		out = append(out, Contact{
			Phone: cell(row, t.phoneIdx),
			Name:  cell(row, t.nameIdx),
			Row:   i,
		})
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Drop removes every row for which drop returns true and reports how many
// were removed.
func (t *Table) Drop(drop func(Contact) bool) int {
	kept := t.Rows[:0:0]
	removed := 0
	for _, c := range t.Contacts() {
		if drop(c) {
			removed++
			continue
		}
		kept = append(kept, t.Rows[c.Row])
	}
	t.Rows = kept
	return removed
}

// DropRows removes rows by index.
func (t *Table) DropRows(rows map[int]bool) int {
	return t.Drop(func(c Contact) bool { return rows[c.Row] })
}

// Save writes the table back to its own path.
func (t *Table) Save() error {
	if t.Path == "" {
		return errors.New("contact table has no path")
	}
	return t.SaveAs(t.Path)
}

// SaveAs writes the table to path through a temp file and rename, so an
// interrupted write never leaves a truncated table behind.
func (t *Table) SaveAs(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := t.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Write encodes the header and rows as CSV.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
