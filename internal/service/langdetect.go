package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/provision"
)

// LanguageDetector predicts the language of each Text value with the
// lid.176 model, returning Id, Label and Score per row.
type LanguageDetector struct {
	loader Loader
}

func NewLanguageDetector(loader Loader) *LanguageDetector {
	return &LanguageDetector{loader: loader}
}

func (d *LanguageDetector) Kind() constants.ServiceKind {
	return constants.ServiceKindLanguageDetection
}

// Load always fetches from LanguageIDModelURL; cfg.ModelURL is ignored.
func (d *LanguageDetector) Load(ctx context.Context, cfg config.ServiceConfig) (Model, error) {
	m, err := loadModel(ctx, d.loader, provision.ModelReference{
		Path:   cfg.ModelPath,
		URL:    constants.LanguageIDModelURL,
		SHA256: cfg.ModelSHA256,
	})
	if err != nil {
		return nil, err
	}
	if _, err := m.Predict("", 1, 0); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", cfg.ModelPath, ErrNotClassifier, err)
	}
	return m, nil
}

func (d *LanguageDetector) Process(ctx context.Context, model Model, in Inputs) (Outputs, error) {
	data, err := inputData(in, constants.FieldText, constants.FieldID)
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, data.Len())
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := textAt(data, i)
		if err != nil {
			return nil, err
		}
		preds, err := model.Predict(strings.ReplaceAll(text, "\n", " "), 1, 0)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if len(preds) == 0 {
			return nil, fmt.Errorf("row %d: %w", i, ErrNoPrediction)
		}
		rows[i] = dataset.Row{
			constants.FieldID:    data.Row(i)[constants.FieldID],
			constants.FieldLabel: strings.ReplaceAll(preds[0].Label, constants.LabelPrefix, ""),
			constants.FieldScore: clamp01(preds[0].Probability),
		}
	}

	results := dataset.New([]string{constants.FieldID, constants.FieldLabel, constants.FieldScore}, rows)
	return Outputs{constants.DatasetResults: results}, nil
}

func clamp01(p float64) float64 {
	return min(max(p, 0), 1)
}
