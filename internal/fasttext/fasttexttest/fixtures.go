// Package fasttexttest builds tiny fastText models for tests.
package fasttexttest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kennethnrk/fasttext-services/internal/fasttext"
)

// LanguageModel is a three-label softmax classifier over a handful of
// English, French and Spanish words. Each language owns one axis of the
// hidden space, so "bonjour le monde" predicts __label__fr.
func LanguageModel() *fasttext.Model {
	m, err := fasttext.New(fasttext.Params{
		Args: fasttext.Args{
			Dim: 3, WS: 5, Epoch: 5, MinCount: 1, Neg: 5, WordNgrams: 1,
			Loss: fasttext.LossSoftmax, Model: fasttext.ModelSupervised,
			LRUpdateRate: 100, T: 1e-4,
		},
		Entries: []fasttext.Entry{
			{Word: fasttext.EOS, Count: 10},
			{Word: "hello", Count: 3},
			{Word: "world", Count: 3},
			{Word: "bonjour", Count: 2},
			{Word: "le", Count: 2},
			{Word: "monde", Count: 2},
			{Word: "hola", Count: 1},
			{Word: "mundo", Count: 1},
			{Word: "__label__en", Count: 5, Label: true},
			{Word: "__label__fr", Count: 4, Label: true},
			{Word: "__label__es", Count: 3, Label: true},
		},
		Input: [][]float32{
			{0, 0, 0},
			{1, 0, 0},
			{1, 0, 0},
			{0, 1, 0},
			{0, 1, 0},
			{0, 1, 0},
			{0, 0, 1},
			{0, 0, 1},
		},
		Output: [][]float32{
			{4, 0, 0},
			{0, 4, 0},
			{0, 0, 4},
		},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// VectorDim is the dimension of VectorModel.
const VectorDim = 4

// VectorBucket is the number of hashed n-gram rows in VectorModel.
const VectorBucket = 16

// VectorModel is a skipgram model with character trigrams. Every hashed
// n-gram row points along the third axis, so out-of-vocabulary words still
// get a non-zero vector.
func VectorModel() *fasttext.Model {
	input := [][]float32{
		{0, 0, 0, 0},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	}
	for i := 0; i < VectorBucket; i++ {
		input = append(input, []float32{0, 0, 1, 0})
	}
	m, err := fasttext.New(fasttext.Params{
		Args: fasttext.Args{
			Dim: VectorDim, WS: 5, Epoch: 5, MinCount: 1, Neg: 5, WordNgrams: 1,
			Loss: fasttext.LossNegativeSampling, Model: fasttext.ModelSkipgram,
			Bucket: VectorBucket, Minn: 3, Maxn: 3, LRUpdateRate: 100, T: 1e-4,
		},
		Entries: []fasttext.Entry{
			{Word: fasttext.EOS, Count: 4},
			{Word: "hello", Count: 2},
			{Word: "world", Count: 2},
		},
		Input: input,
	})
	if err != nil {
		panic(err)
	}
	return m
}

// Bytes serializes m.
func Bytes(tb testing.TB, m *fasttext.Model) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		tb.Fatalf("save model: %v", err)
	}
	return buf.Bytes()
}

// WriteFile serializes m to path, creating parent directories.
func WriteFile(tb testing.TB, m *fasttext.Model, path string) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, Bytes(tb, m), 0o644); err != nil {
		tb.Fatalf("write model: %v", err)
	}
}
