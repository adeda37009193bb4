// Package service adapts fastText models to the dataset contract: each
// service reads the "Data" input dataset and produces a "Results" dataset.
package service

import (
	"context"
	"fmt"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/fasttext"
	"github.com/kennethnrk/fasttext-services/internal/provision"
)

// Inputs and Outputs map dataset names to datasets.
type (
	Inputs  map[string]*dataset.Dataset
	Outputs map[string]*dataset.Dataset
)

// Model is a loaded model handle. It is read-only and shared by every
// Process call of the instance that loaded it.
type Model interface {
	ArtifactID() string
	Dimension() int
	SentenceVector(text string) ([]float32, error)
	Predict(text string, k int, threshold float32) ([]fasttext.Prediction, error)
}

// Service is one prediction service. Load is called once per instance and
// its result is passed to every Process call.
type Service interface {
	Kind() constants.ServiceKind
	Load(ctx context.Context, cfg config.ServiceConfig) (Model, error)
	Process(ctx context.Context, model Model, in Inputs) (Outputs, error)
}

// Loader provisions and decodes a model file.
type Loader interface {
	Load(ctx context.Context, ref provision.ModelReference) (*fasttext.Model, provision.Artifact, error)
}

type loadedModel struct {
	*fasttext.Model
	artifactID string
}

func (m loadedModel) ArtifactID() string { return m.artifactID }

// NewModel wraps m as a handle identified by artifactID.
func NewModel(m *fasttext.Model, artifactID string) Model {
	return loadedModel{Model: m, artifactID: artifactID}
}

func loadModel(ctx context.Context, l Loader, ref provision.ModelReference) (Model, error) {
	m, art, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return NewModel(m, art.ID), nil
}

// inputData returns the Data dataset after checking it has every field, in
// order.
func inputData(in Inputs, fields ...string) (*dataset.Dataset, error) {
	data, ok := in[constants.DatasetData]
	if !ok || data == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingDataset, constants.DatasetData)
	}
	for _, f := range fields {
		if !data.HasColumn(f) {
			return nil, &MissingFieldError{Dataset: constants.DatasetData, Field: f}
		}
	}
	return data, nil
}

func textAt(data *dataset.Dataset, i int) (string, error) {
	switch v := data.Row(i)[constants.FieldText].(type) {
	case string:
		return v, nil
	case nil:
		return "", &InvalidFieldError{Dataset: constants.DatasetData, Field: constants.FieldText, Row: i, Reason: "value is null"}
	default:
		return "", &InvalidFieldError{Dataset: constants.DatasetData, Field: constants.FieldText, Row: i, Reason: fmt.Sprintf("want a string, got %T", v)}
	}
}
