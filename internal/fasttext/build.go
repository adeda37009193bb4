package fasttext

import "fmt"

// Entry is one dictionary entry of a model assembled with New.
type Entry struct {
	Word  string
	Count int64
	Label bool
}

// Params describes a dense model in memory. Word entries must precede label
// entries, and labels are expected in decreasing count order.
type Params struct {
	Args    Args
	Entries []Entry
	Input   [][]float32
	Output  [][]float32
}

// New assembles a model from explicit weights.
func New(p Params) (*Model, error) {
	m := &Model{args: p.Args}
	if m.args.Dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidModel, m.args.Dim)
	}

	d := &dictionary{args: &m.args, pruneIdxSize: -1, pruneIdx: map[int32]int32{}}
	for _, e := range p.Entries {
		typ := entryWord
		if e.Label {
			typ = entryLabel
			d.nlabels++
		} else {
			if d.nlabels > 0 {
				return nil, fmt.Errorf("%w: word %q follows a label", ErrInvalidModel, e.Word)
			}
			d.nwords++
		}
		d.ntokens += e.Count
		d.words = append(d.words, entry{word: e.Word, count: e.Count, typ: typ})
	}
	d.init()
	m.dict = d

	var err error
	if m.input, err = denseFromRows(p.Input, m.args.Dim); err != nil {
		return nil, err
	}
	if m.output, err = denseFromRows(p.Output, m.args.Dim); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.IsSupervised() {
		m.layer = newOutputLayer(m.args.Loss, m.output, d.labelCounts())
	}
	return m, nil
}

func denseFromRows(rows [][]float32, dim int32) (*denseMatrix, error) {
	mat := &denseMatrix{m: int64(len(rows)), n: int64(dim)}
	mat.data = make([]float32, 0, len(rows)*int(dim))
	for i, row := range rows {
		if len(row) != int(dim) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidModel, i, len(row), dim)
		}
		mat.data = append(mat.data, row...)
	}
	return mat, nil
}
