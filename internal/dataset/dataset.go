// Package dataset holds the named tables exchanged with services: an ordered
// list of columns and rows keyed by column name.
package dataset

import (
	"errors"
	"fmt"
	"slices"
)

var ErrLengthMismatch = errors.New("dataset: column length does not match row count")

// Row maps column names to values. A column absent from a row reads as nil.
type Row map[string]any

// Dataset is an ordered table. Methods that change shape return a new
// Dataset and leave the receiver untouched.
type Dataset struct {
	columns []string
	rows    []Row
}

// New builds a dataset with the given columns. Keys in rows that are not
// listed in columns are appended as columns in order of first appearance.
func New(columns []string, rows []Row) *Dataset {
	d := &Dataset{columns: slices.Clone(columns), rows: make([]Row, 0, len(rows))}
	seen := make(map[string]bool, len(columns))
	for _, c := range d.columns {
		seen[c] = true
	}
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				d.columns = append(d.columns, k)
			}
		}
		d.rows = append(d.rows, cloneRow(r))
	}
	return d
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

func (d *Dataset) HasColumn(name string) bool { return slices.Contains(d.columns, name) }

func (d *Dataset) Len() int { return len(d.rows) }

// Row returns row i. The returned map must not be modified.
func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Column returns the values of column name, one per row.
func (d *Dataset) Column(name string) ([]any, bool) {
	if !d.HasColumn(name) {
		return nil, false
	}
	out := make([]any, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[name]
	}
	return out, true
}

// WithoutColumn returns a copy with column name removed.
func (d *Dataset) WithoutColumn(name string) *Dataset {
	out := &Dataset{rows: make([]Row, len(d.rows))}
	for _, c := range d.columns {
		if c != name {
			out.columns = append(out.columns, c)
		}
	}
	for i, r := range d.rows {
		nr := cloneRow(r)
		delete(nr, name)
		out.rows[i] = nr
	}
	return out
}

// WithColumn returns a copy with column name set to values. An existing
// column keeps its position; a new one is appended.
func (d *Dataset) WithColumn(name string, values []any) (*Dataset, error) {
	if len(values) != len(d.rows) {
		return nil, fmt.Errorf("%w: %q has %d values for %d rows", ErrLengthMismatch, name, len(values), len(d.rows))
	}
	out := &Dataset{columns: slices.Clone(d.columns), rows: make([]Row, len(d.rows))}
	if !d.HasColumn(name) {
		out.columns = append(out.columns, name)
	}
	for i, r := range d.rows {
		nr := cloneRow(r)
		nr[name] = values[i]
		out.rows[i] = nr
	}
	return out, nil
}
