// Package fasttext reads fastText binary models and runs inference on them:
// sentence vectors for unsupervised and supervised models, and top-k label
// prediction for supervised classifiers.
//
// Only dense (non-quantized) models are supported. A loaded Model is never
// mutated, so it is safe for concurrent use.
package fasttext

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

const (
	magic   int32 = 793712314
	version int32 = 12
)

var (
	ErrInvalidModel  = errors.New("fasttext: invalid model file")
	ErrQuantized     = errors.New("fasttext: quantized models are not supported")
	ErrNotSupervised = errors.New("fasttext: model has no labels")
	ErrNewline       = errors.New("fasttext: text must not contain newline characters")
)

// Prediction is one predicted label with its probability.
type Prediction struct {
	Label       string
	Probability float64
}

// Model is a loaded fastText model.
type Model struct {
	args   Args
	dict   *dictionary
	input  *denseMatrix
	output *denseMatrix
	layer  outputLayer
}

// LoadFile opens and decodes the model at path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	m, err := load(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// Load decodes a model from r.
func Load(r io.Reader) (*Model, error) {
	return load(r, -1)
}

func load(r io.Reader, size int64) (*Model, error) {
	br := newBinReader(r, size)

	gotMagic := br.int32()
	gotVersion := br.int32()
	if br.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, br.err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: bad magic %d", ErrInvalidModel, gotMagic)
	}
	if gotVersion > version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidModel, gotVersion)
	}

	m := &Model{}
	m.args.read(br)
	if br.err != nil {
		return nil, fmt.Errorf("%w: args: %v", ErrInvalidModel, br.err)
	}
	// Version 11 supervised models were trained without character n-grams.
	if gotVersion == 11 && m.args.Model == ModelSupervised {
		m.args.Maxn = 0
	}
	if m.args.Dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidModel, m.args.Dim)
	}

	m.dict = &dictionary{args: &m.args}
	if err := m.dict.read(br); err != nil {
		return nil, wrapInvalid("dictionary", err)
	}

	if br.bool() {
		return nil, ErrQuantized
	}
	m.input = &denseMatrix{}
	if err := m.input.read(br); err != nil {
		return nil, wrapInvalid("input matrix", err)
	}

	if br.bool() {
		return nil, ErrQuantized
	}
	m.output = &denseMatrix{}
	if err := m.output.read(br); err != nil {
		return nil, wrapInvalid("output matrix", err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.IsSupervised() {
		m.layer = newOutputLayer(m.args.Loss, m.output, m.dict.labelCounts())
	}
	return m, nil
}

func wrapInvalid(section string, err error) error {
	if errors.Is(err, ErrInvalidModel) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidModel, section, err)
}

func (m *Model) validate() error {
	dim := int64(m.args.Dim)
	if m.input.n != dim {
		return fmt.Errorf("%w: input matrix has %d columns, want %d", ErrInvalidModel, m.input.n, dim)
	}
	if m.input.m < int64(m.dict.nwords) {
		return fmt.Errorf("%w: input matrix has %d rows for %d words", ErrInvalidModel, m.input.m, m.dict.nwords)
	}
	if !m.IsSupervised() {
		return nil
	}
	if m.output.n != dim {
		return fmt.Errorf("%w: output matrix has %d columns, want %d", ErrInvalidModel, m.output.n, dim)
	}
	want := int64(m.dict.nlabels)
	if m.args.Loss == LossHierarchicalSoftmax {
		want = max(want-1, 0)
	}
	if m.output.m != want {
		return fmt.Errorf("%w: output matrix has %d rows, want %d", ErrInvalidModel, m.output.m, want)
	}
	return nil
}

// Save writes the model in the binary format Load reads.
func (m *Model) Save(w io.Writer) error {
	bw := newBinWriter(w)
	bw.int32(magic)
	bw.int32(version)
	m.args.write(bw)
	m.dict.write(bw)
	bw.bool(false)
	m.input.write(bw)
	bw.bool(false)
	m.output.write(bw)
	return bw.flush()
}

// Args returns a copy of the model hyperparameters.
func (m *Model) Args() Args { return m.args }

// Dimension is the length of every vector the model produces.
func (m *Model) Dimension() int { return int(m.args.Dim) }

// IsSupervised reports whether the model carries labels and can Predict.
func (m *Model) IsSupervised() bool {
	return m.args.Model == ModelSupervised && m.dict.nlabels > 0
}

// Labels lists the label names, most frequent first.
func (m *Model) Labels() []string {
	out := make([]string, 0, m.dict.nlabels)
	for i := int32(0); i < m.dict.nlabels; i++ {
		out = append(out, m.dict.label(i))
	}
	return out
}

// WordCount is the number of in-vocabulary words.
func (m *Model) WordCount() int { return int(m.dict.nwords) }

// WordVector returns the vector of word, built from its character n-grams when
// the word is out of vocabulary.
func (m *Model) WordVector(word string) []float32 {
	vec := make([]float32, m.args.Dim)
	ids := m.dict.subwords(word)
	for _, id := range ids {
		m.input.addRowTo(vec, id)
	}
	if len(ids) > 0 {
		scale(vec, 1/float32(len(ids)))
	}
	return vec
}

// SentenceVector embeds a single line of text. Supervised models average the
// input rows of the tokenized line; other models average the unit-normalized
// word vectors.
func (m *Model) SentenceVector(text string) ([]float32, error) {
	if strings.ContainsRune(text, '\n') {
		return nil, ErrNewline
	}
	svec := make([]float32, m.args.Dim)

	if m.args.Model == ModelSupervised {
		ids, _ := m.dict.line(text)
		for _, id := range ids {
			m.input.addRowTo(svec, id)
		}
		if len(ids) > 0 {
			scale(svec, 1/float32(len(ids)))
		}
		return svec, nil
	}

	count := 0
	for _, word := range spaceFields(text) {
		vec := m.WordVector(word)
		norm := l2norm(vec)
		if norm > 0 {
			scale(vec, 1/norm)
			for i, v := range vec {
				svec[i] += v
			}
			count++
		}
	}
	if count > 0 {
		scale(svec, 1/float32(count))
	}
	return svec, nil
}

// Predict returns up to k labels whose probability is at least threshold,
// highest first. k <= 0 asks for every label. A line with no known tokens
// yields no predictions.
func (m *Model) Predict(text string, k int, threshold float32) ([]Prediction, error) {
	if !m.IsSupervised() {
		return nil, ErrNotSupervised
	}
	if strings.ContainsRune(text, '\n') {
		return nil, ErrNewline
	}
	if k <= 0 {
		k = int(m.dict.nlabels)
	}

	ids, _ := m.dict.line(text)
	if len(ids) == 0 {
		return nil, nil
	}
	hidden := make([]float32, m.args.Dim)
	for _, id := range ids {
		m.input.addRowTo(hidden, id)
	}
	scale(hidden, 1/float32(len(ids)))

	best := m.layer.predict(hidden, k, threshold)
	out := make([]Prediction, 0, len(best))
	for _, s := range best {
		out = append(out, Prediction{
			Label:       m.dict.label(s.idx),
			Probability: math.Exp(s.logp),
		})
	}
	return out, nil
}

func scale(vec []float32, a float32) {
	for i := range vec {
		vec[i] *= a
	}
}

func l2norm(vec []float32) float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}
