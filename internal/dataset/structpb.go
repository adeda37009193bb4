package dataset

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct encodes d in split form for transports that carry
// google.protobuf.Struct. Numbers become doubles, except integers a double
// cannot hold exactly, which travel as their decimal string.
func ToStruct(d *Dataset) (*structpb.Struct, error) {
	columns := make([]any, len(d.columns))
	for i, c := range d.columns {
		columns[i] = c
	}
	data := make([]any, len(d.rows))
	for i, r := range d.rows {
		values := make([]any, len(d.columns))
		for j, c := range d.columns {
			values[j] = plain(r[c])
		}
		data[i] = values
	}
	s, err := structpb.NewStruct(map[string]any{"columns": columns, "data": data})
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return s, nil
}

// FromStruct decodes the split form written by ToStruct.
func FromStruct(s *structpb.Struct) (*Dataset, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil struct", ErrFormat)
	}
	colsVal, ok := s.Fields["columns"]
	if !ok || colsVal.GetListValue() == nil {
		return nil, fmt.Errorf("%w: missing columns list", ErrFormat)
	}
	var columns []string
	for i, v := range colsVal.GetListValue().GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: column %d is not a string", ErrFormat, i)
		}
		columns = append(columns, sv.StringValue)
	}

	var data [][]any
	for i, rv := range s.Fields["data"].GetListValue().GetValues() {
		lv := rv.GetListValue()
		if lv == nil {
			return nil, fmt.Errorf("%w: row %d is not a list", ErrFormat, i)
		}
		data = append(data, lv.AsSlice())
	}
	return fromSplit(columns, data)
}

const maxExactInt = 1 << 53

// plain converts json.Number, which structpb does not know, recursively.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			if i > maxExactInt || i < -maxExactInt {
				return t.String()
			}
			return float64(i)
		}
		if !strings.ContainsAny(t.String(), ".eE") {
			return t.String()
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case Row:
		return plain(map[string]any(t))
	default:
		return v
	}
}
