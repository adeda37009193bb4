package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrFormat = errors.New("dataset: expected a records array or a split object")

// MarshalJSON writes the records form, keys in column order.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range d.rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range d.columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(r[c])
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", c, i, err)
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either records, [{"Id":1,"Text":"a"}], or split
// form, {"columns":["Id","Text"],"data":[[1,"a"]]}. Numbers are kept as
// json.Number and record keys keep their order of first appearance.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ErrFormat
	}
	switch b[0] {
	case '[':
		return d.decodeRecords(b)
	case '{':
		return d.decodeSplit(b)
	default:
		return ErrFormat
	}
}

func (d *Dataset) decodeRecords(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return err
	}
	var (
		columns []string
		rows    []Row
		seen    = map[string]bool{}
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return fmt.Errorf("%w: record %d is not an object", ErrFormat, len(rows))
		}
		row := Row{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key := tok.(string)
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("record %d key %q: %w", len(rows), key, err)
			}
			row[key] = v
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrFormat)
	}
	d.columns, d.rows = columns, rows
	return nil
}

type splitForm struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func (d *Dataset) decodeSplit(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var s splitForm
	if err := dec.Decode(&s); err != nil {
		return err
	}
	if s.Columns == nil {
		return fmt.Errorf("%w: split object has no columns", ErrFormat)
	}
	nd, err := fromSplit(s.Columns, s.Data)
	if err != nil {
		return err
	}
	*d = *nd
	return nil
}

func fromSplit(columns []string, data [][]any) (*Dataset, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrFormat, c)
		}
		seen[c] = true
	}
	rows := make([]Row, 0, len(data))
	for i, values := range data {
		if len(values) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns", ErrFormat, i, len(values), len(columns))
		}
		r := make(Row, len(columns))
		for j, c := range columns {
			r[c] = values[j]
		}
		rows = append(rows, r)
	}
	return &Dataset{columns: append([]string(nil), columns...), rows: rows}, nil
}
