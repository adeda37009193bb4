package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kennethnrk/fasttext-services/internal/cache"
	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
	"github.com/kennethnrk/fasttext-services/internal/provision"
)

// Vectorizer replaces the Text column with Vector, the sentence embedding of
// the text encoded as a JSON array.
type Vectorizer struct {
	loader  Loader
	cache   cache.VectorCache
	metrics *metrics.Metrics
	log     *zap.Logger
}

type VectorizerOption func(*Vectorizer)

// WithCache makes the vectorizer look vectors up in c before running the
// model. Cache errors are logged and otherwise ignored.
func WithCache(c cache.VectorCache) VectorizerOption {
	return func(v *Vectorizer) { v.cache = c }
}

func WithVectorizerMetrics(m *metrics.Metrics) VectorizerOption {
	return func(v *Vectorizer) { v.metrics = m }
}

func WithVectorizerLogger(l *zap.Logger) VectorizerOption {
	return func(v *Vectorizer) { v.log = l }
}

func NewVectorizer(loader Loader, opts ...VectorizerOption) *Vectorizer {
	v := &Vectorizer{loader: loader, log: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vectorizer) Kind() constants.ServiceKind { return constants.ServiceKindVectorizer }

func (v *Vectorizer) Load(ctx context.Context, cfg config.ServiceConfig) (Model, error) {
	return loadModel(ctx, v.loader, provision.ModelReference{
		Path:   cfg.ModelPath,
		URL:    cfg.ModelURL,
		SHA256: cfg.ModelSHA256,
	})
}

func (v *Vectorizer) Process(ctx context.Context, model Model, in Inputs) (Outputs, error) {
	data, err := inputData(in, constants.FieldText)
	if err != nil {
		return nil, err
	}

	vectors := make([]any, data.Len())
	for i := range vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := textAt(data, i)
		if err != nil {
			return nil, err
		}
		vec, err := v.vector(ctx, model, strings.ReplaceAll(text, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		b, err := json.Marshal(vec)
		if err != nil {
			return nil, fmt.Errorf("row %d: encode vector: %w", i, err)
		}
		vectors[i] = string(b)
	}

	results, err := data.WithoutColumn(constants.FieldText).WithColumn(constants.FieldVector, vectors)
	if err != nil {
		return nil, err
	}
	return Outputs{constants.DatasetResults: results}, nil
}

func (v *Vectorizer) vector(ctx context.Context, model Model, text string) ([]float32, error) {
	if v.cache == nil {
		return model.SentenceVector(text)
	}

	key := cache.Key(model.ArtifactID(), text)
	vec, hit, err := v.cache.Get(ctx, key)
	if err != nil {
		v.log.Warn("vector cache get", zap.Error(err))
	}
	if hit && len(vec) == model.Dimension() {
		v.metrics.CacheLookup(true)
		return vec, nil
	}
	v.metrics.CacheLookup(false)

	vec, err = model.SentenceVector(text)
	if err != nil {
		return nil, err
	}
	if err := v.cache.Set(ctx, key, vec); err != nil {
		v.log.Warn("vector cache set", zap.Error(err))
	}
	return vec, nil
}

// Vectors decodes the Vector column of a vectorizer result.
func Vectors(results *dataset.Dataset) ([][]float32, error) {
	col, ok := results.Column(constants.FieldVector)
	if !ok {
		return nil, &MissingFieldError{Dataset: constants.DatasetResults, Field: constants.FieldVector}
	}
	out := make([][]float32, len(col))
	for i, raw := range col {
		s, ok := raw.(string)
		if !ok {
			return nil, &InvalidFieldError{Dataset: constants.DatasetResults, Field: constants.FieldVector, Row: i, Reason: fmt.Sprintf("want a string, got %T", raw)}
		}
		if err := json.Unmarshal([]byte(s), &out[i]); err != nil {
			return nil, &InvalidFieldError{Dataset: constants.DatasetResults, Field: constants.FieldVector, Row: i, Reason: err.Error()}
		}
	}
	return out, nil
}
