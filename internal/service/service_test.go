package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/fasttext"
	"github.com/kennethnrk/fasttext-services/internal/fasttext/fasttexttest"
	"github.com/kennethnrk/fasttext-services/internal/provision"
)

type fakeLoader struct {
	model *fasttext.Model
	err   error
	got   provision.ModelReference
}

func (l *fakeLoader) Load(_ context.Context, ref provision.ModelReference) (*fasttext.Model, provision.Artifact, error) {
	l.got = ref
	if l.err != nil {
		return nil, provision.Artifact{}, l.err
	}
	return l.model, provision.Artifact{ID: "artifact-" + ref.Path, Path: ref.Path}, nil
}

type memCache struct {
	mu       sync.Mutex
	data     map[string][]float32
	gets     int
	hits     int
	failGets bool
}

func newMemCache() *memCache { return &memCache{data: map[string][]float32{}} }

func (c *memCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGets {
		return nil, false, errors.New("cache down")
	}
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = vec
	return nil
}

func records(t *testing.T, s string) Inputs {
	t.Helper()
	var d dataset.Dataset
	require.NoError(t, json.Unmarshal([]byte(s), &d))
	return Inputs{constants.DatasetData: &d}
}

func vectorModel() Model { return NewModel(fasttexttest.VectorModel(), "vec-artifact") }

func TestVectorizerProcess(t *testing.T) {
	v := NewVectorizer(&fakeLoader{})

	out, err := v.Process(context.Background(), vectorModel(), records(t, `[{"Id":1,"Text":"hello world"},{"Id":2,"Text":"hello"}]`))
	require.NoError(t, err)

	results := out[constants.DatasetResults]
	require.NotNil(t, results)
	assert.Equal(t, []string{"Id", "Vector"}, results.Columns())
	assert.False(t, results.HasColumn(constants.FieldText))
	require.Equal(t, 2, results.Len())
	assert.Equal(t, json.Number("1"), results.Row(0)["Id"])
	assert.Equal(t, json.Number("2"), results.Row(1)["Id"])

	vecs, err := Vectors(results)
	require.NoError(t, err)
	for _, vec := range vecs {
		assert.Len(t, vec, fasttexttest.VectorDim)
	}
	want, err := fasttexttest.VectorModel().SentenceVector("hello")
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, vecs[1], 1e-6)
}

func TestVectorizerStripsNewlines(t *testing.T) {
	v := NewVectorizer(&fakeLoader{})

	out, err := v.Process(context.Background(), vectorModel(), records(t, `[{"Text":"hel\nlo\n"}]`))
	require.NoError(t, err)

	vecs, err := Vectors(out[constants.DatasetResults])
	require.NoError(t, err)
	want, _ := fasttexttest.VectorModel().SentenceVector("hello")
	assert.InDeltaSlice(t, want, vecs[0], 1e-6)
}

func TestVectorizerInputErrors(t *testing.T) {
	v := NewVectorizer(&fakeLoader{})
	ctx := context.Background()

	t.Run("missing text column", func(t *testing.T) {
		_, err := v.Process(ctx, vectorModel(), records(t, `[{"Id":1}]`))

		var mf *MissingFieldError
		require.ErrorAs(t, err, &mf)
		assert.Equal(t, "Data", mf.Dataset)
		assert.Equal(t, "Text", mf.Field)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("empty batch has no columns", func(t *testing.T) {
		_, err := v.Process(ctx, vectorModel(), records(t, `[]`))

		var mf *MissingFieldError
		assert.ErrorAs(t, err, &mf)
	})

	t.Run("missing dataset", func(t *testing.T) {
		_, err := v.Process(ctx, vectorModel(), Inputs{"Other": dataset.New(nil, nil)})

		assert.ErrorIs(t, err, ErrMissingDataset)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("non-string text fails the whole batch", func(t *testing.T) {
		_, err := v.Process(ctx, vectorModel(), records(t, `[{"Text":"ok"},{"Text":42}]`))

		var inv *InvalidFieldError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, 1, inv.Row)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := v.Process(cctx, vectorModel(), records(t, `[{"Text":"hello"}]`))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsInvalidInput(err))
	})
}

func TestVectorizerEmptyRowsKeepColumns(t *testing.T) {
	v := NewVectorizer(&fakeLoader{})
	in := Inputs{constants.DatasetData: dataset.New([]string{"Id", "Text"}, nil)}

	out, err := v.Process(context.Background(), vectorModel(), in)

	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Vector"}, out[constants.DatasetResults].Columns())
	assert.Equal(t, 0, out[constants.DatasetResults].Len())
}

func TestVectorizerCache(t *testing.T) {
	c := newMemCache()
	v := NewVectorizer(&fakeLoader{}, WithCache(c))
	in := records(t, `[{"Text":"hello"},{"Text":"hello"}]`)

	first, err := v.Process(context.Background(), vectorModel(), in)
	require.NoError(t, err)
	second, err := v.Process(context.Background(), vectorModel(), in)
	require.NoError(t, err)

	assert.Equal(t, 4, c.gets)
	assert.Equal(t, 3, c.hits)
	assert.Len(t, c.data, 1)
	assert.Equal(t, first[constants.DatasetResults].Row(0), second[constants.DatasetResults].Row(1))
}

func TestVectorizerCacheFailureFallsBackToModel(t *testing.T) {
	c := newMemCache()
	c.failGets = true
	v := NewVectorizer(&fakeLoader{}, WithCache(c))

	out, err := v.Process(context.Background(), vectorModel(), records(t, `[{"Text":"hello"}]`))

	require.NoError(t, err)
	assert.Equal(t, 1, out[constants.DatasetResults].Len())
}

func TestVectorizerLoad(t *testing.T) {
	l := &fakeLoader{model: fasttexttest.VectorModel()}
	v := NewVectorizer(l)

	m, err := v.Load(context.Background(), config.ServiceConfig{
		ModelPath: "/models/v.bin", ModelURL: "https://example.com/v.bin", ModelSHA256: "abc",
	})

	require.NoError(t, err)
	assert.Equal(t, provision.ModelReference{Path: "/models/v.bin", URL: "https://example.com/v.bin", SHA256: "abc"}, l.got)
	assert.Equal(t, "artifact-/models/v.bin", m.ArtifactID())
	assert.Equal(t, fasttexttest.VectorDim, m.Dimension())
	assert.Equal(t, constants.ServiceKindVectorizer, v.Kind())
}

func TestVectorizerLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewVectorizer(&fakeLoader{err: boom}).Load(context.Background(), config.ServiceConfig{})

	assert.ErrorIs(t, err, boom)
}

func languageModel() Model { return NewModel(fasttexttest.LanguageModel(), "lid-artifact") }

func TestLanguageDetectorProcess(t *testing.T) {
	d := NewLanguageDetector(&fakeLoader{})

	in := Inputs{constants.DatasetData: dataset.New(nil, []dataset.Row{
		{"Id": 1, "Text": "bonjour le monde"},
		{"Id": "b", "Text": "hola\nmundo"},
		{"Id": 3, "Text": "hello world", "Extra": true},
	})}
	out, err := d.Process(context.Background(), languageModel(), in)
	require.NoError(t, err)

	results := out[constants.DatasetResults]
	assert.Equal(t, []string{"Id", "Label", "Score"}, results.Columns())
	require.Equal(t, 3, results.Len())

	wantLabels := []string{"fr", "es", "en"}
	wantIDs := []any{1, "b", 3}
	for i := 0; i < results.Len(); i++ {
		row := results.Row(i)
		assert.Equal(t, wantIDs[i], row["Id"])
		assert.Equal(t, wantLabels[i], row["Label"])
		assert.False(t, strings.Contains(row["Label"].(string), constants.LabelPrefix))
		score := row["Score"].(float64)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
	assert.InDelta(t, 0.9094, results.Row(0)["Score"], 1e-3)
}

func TestLanguageDetectorMissingFields(t *testing.T) {
	d := NewLanguageDetector(&fakeLoader{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input string
		field string
	}{
		{"both missing reports text", `[{"Other":1}]`, "Text"},
		{"text missing", `[{"Id":1}]`, "Text"},
		{"id missing", `[{"Text":"bonjour"}]`, "Id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Process(ctx, languageModel(), records(t, tc.input))

			var mf *MissingFieldError
			require.ErrorAs(t, err, &mf)
			assert.Equal(t, "Data", mf.Dataset)
			assert.Equal(t, tc.field, mf.Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestLanguageDetectorNullText(t *testing.T) {
	d := NewLanguageDetector(&fakeLoader{})

	_, err := d.Process(context.Background(), languageModel(), records(t, `[{"Id":1,"Text":null}]`))

	var inv *InvalidFieldError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "Text", inv.Field)
}

func TestLanguageDetectorLoadUsesFixedURL(t *testing.T) {
	l := &fakeLoader{model: fasttexttest.LanguageModel()}
	d := NewLanguageDetector(l)

	_, err := d.Load(context.Background(), config.ServiceConfig{
		ModelPath: "/models/lid.176.bin",
		ModelURL:  "https://example.com/ignored.bin",
	})

	require.NoError(t, err)
	assert.Equal(t, constants.LanguageIDModelURL, l.got.URL)
	assert.Equal(t, "/models/lid.176.bin", l.got.Path)
}

func TestLanguageDetectorLoadRejectsUnsupervisedModel(t *testing.T) {
	d := NewLanguageDetector(&fakeLoader{model: fasttexttest.VectorModel()})

	_, err := d.Load(context.Background(), config.ServiceConfig{ModelPath: "/models/cc.bin"})

	assert.ErrorIs(t, err, ErrNotClassifier)
}

type emptyPredictor struct{ Model }

func (emptyPredictor) Predict(string, int, float32) ([]fasttext.Prediction, error) { return nil, nil }

func TestLanguageDetectorNoPrediction(t *testing.T) {
	d := NewLanguageDetector(&fakeLoader{})

	_, err := d.Process(context.Background(), emptyPredictor{languageModel()}, records(t, `[{"Id":1,"Text":"x"}]`))

	assert.ErrorIs(t, err, ErrNoPrediction)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 1.0, clamp01(1.00001))
	assert.Equal(t, 0.0, clamp01(-0.1))
	assert.Equal(t, 0.5, clamp01(0.5))
}

func TestVectorsErrors(t *testing.T) {
	_, err := Vectors(dataset.New([]string{"Id"}, nil))
	var mf *MissingFieldError
	assert.ErrorAs(t, err, &mf)

	_, err = Vectors(dataset.New(nil, []dataset.Row{{"Vector": "not json"}}))
	var inv *InvalidFieldError
	assert.ErrorAs(t, err, &inv)
}
