package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d := New([]string{"Id"}, []Row{{"Id": 1, "Text": "a"}, {"Id": 2, "Extra": true}})

	assert.Equal(t, []string{"Id", "Text", "Extra"}, d.Columns())
	assert.Equal(t, 2, d.Len())
	assert.Nil(t, d.Row(1)["Text"])
}

func TestWithoutColumn(t *testing.T) {
	d := New([]string{"Id", "Text", "Lang"}, []Row{{"Id": 1, "Text": "a", "Lang": "x"}})

	out := d.WithoutColumn("Text")

	assert.Equal(t, []string{"Id", "Lang"}, out.Columns())
	assert.NotContains(t, out.Row(0), "Text")
	assert.True(t, d.HasColumn("Text"), "receiver must be unchanged")
	assert.Equal(t, "a", d.Row(0)["Text"])
}

func TestWithColumn(t *testing.T) {
	d := New([]string{"Id"}, []Row{{"Id": 1}, {"Id": 2}})

	out, err := d.WithColumn("Vector", []any{"[1]", "[2]"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Vector"}, out.Columns())
	assert.Equal(t, "[2]", out.Row(1)["Vector"])
	assert.False(t, d.HasColumn("Vector"))

	replaced, err := out.WithColumn("Id", []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Vector"}, replaced.Columns())
	assert.Equal(t, "a", replaced.Row(0)["Id"])

	_, err = d.WithColumn("Vector", []any{"only one"})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestColumn(t *testing.T) {
	d := New(nil, []Row{{"Text": "a"}, {"Text": "b"}})

	values, ok := d.Column("Text")
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, values)

	_, ok = d.Column("Id")
	assert.False(t, ok)
}

func TestUnmarshalRecords(t *testing.T) {
	var d Dataset
	err := json.Unmarshal([]byte(`[{"Text":"hello","Id":7},{"Id":12345678901234567890,"Text":"x","More":{"a":[1,2]}}]`), &d)

	require.NoError(t, err)
	assert.Equal(t, []string{"Text", "Id", "More"}, d.Columns())
	assert.Equal(t, json.Number("7"), d.Row(0)["Id"])
	assert.Equal(t, json.Number("12345678901234567890"), d.Row(1)["Id"])
	assert.Nil(t, d.Row(0)["More"])
}

func TestUnmarshalEmptyRecords(t *testing.T) {
	var d Dataset
	require.NoError(t, json.Unmarshal([]byte(`[]`), &d))

	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Columns())
	assert.False(t, d.HasColumn("Text"))
}

func TestUnmarshalSplit(t *testing.T) {
	var d Dataset
	err := json.Unmarshal([]byte(`{"columns":["Id","Text"],"index":[0],"data":[[1,"bonjour"]]}`), &d)

	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Text"}, d.Columns())
	assert.Equal(t, "bonjour", d.Row(0)["Text"])
}

func TestUnmarshalErrors(t *testing.T) {
	cases := map[string]string{
		"scalar":          `"text"`,
		"non-object row":  `[1]`,
		"ragged split":    `{"columns":["a","b"],"data":[[1]]}`,
		"no columns":      `{"data":[[1]]}`,
		"duplicate names": `{"columns":["a","a"],"data":[]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var d Dataset
			assert.Error(t, json.Unmarshal([]byte(in), &d))
		})
	}
}

func TestMarshalKeepsColumnOrder(t *testing.T) {
	d := New([]string{"Id", "Label", "Score"}, []Row{{"Score": 0.5, "Id": json.Number("1"), "Label": "fr"}})

	b, err := json.Marshal(d)

	require.NoError(t, err)
	assert.JSONEq(t, `[{"Id":1,"Label":"fr","Score":0.5}]`, string(b))
	assert.Equal(t, `[{"Id":1,"Label":"fr","Score":0.5}]`, string(b))
}

func TestStructRoundTrip(t *testing.T) {
	var in Dataset
	require.NoError(t, json.Unmarshal([]byte(`[{"Id":1,"Text":"bonjour","Tags":["a"]},{"Id":2.5,"Text":null,"Tags":[]}]`), &in))

	s, err := ToStruct(&in)
	require.NoError(t, err)
	out, err := FromStruct(s)
	require.NoError(t, err)

	assert.Equal(t, in.Columns(), out.Columns())
	assert.Equal(t, float64(1), out.Row(0)["Id"])
	assert.Equal(t, 2.5, out.Row(1)["Id"])
	assert.Equal(t, "bonjour", out.Row(0)["Text"])
	assert.Nil(t, out.Row(1)["Text"])
	assert.Equal(t, []any{"a"}, out.Row(0)["Tags"])
}

func TestStructKeepsLargeIntegerDigits(t *testing.T) {
	var in Dataset
	require.NoError(t, json.Unmarshal([]byte(
		`[{"Id":9007199254740992},{"Id":9007199254740993},{"Id":-9007199254740993},{"Id":18446744073709551616},{"Id":1e3}]`), &in))

	s, err := ToStruct(&in)
	require.NoError(t, err)
	out, err := FromStruct(s)
	require.NoError(t, err)

	assert.Equal(t, float64(1<<53), out.Row(0)["Id"])
	assert.Equal(t, "9007199254740993", out.Row(1)["Id"])
	assert.Equal(t, "-9007199254740993", out.Row(2)["Id"])
	assert.Equal(t, "18446744073709551616", out.Row(3)["Id"])
	assert.Equal(t, float64(1000), out.Row(4)["Id"])
}

func TestFromStructErrors(t *testing.T) {
	_, err := FromStruct(nil)
	assert.ErrorIs(t, err, ErrFormat)

	empty, err := ToStruct(New([]string{"Text"}, nil))
	require.NoError(t, err)
	d, err := FromStruct(empty)
	require.NoError(t, err)
	assert.True(t, d.HasColumn("Text"))
	assert.Equal(t, 0, d.Len())
}
