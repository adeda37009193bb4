package service

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDataset = errors.New("missing input dataset")
	ErrNoPrediction   = errors.New("model returned no prediction")
	ErrNotClassifier  = errors.New("model has no labels to predict")
)

// MissingFieldError reports a required column absent from an input dataset.
type MissingFieldError struct {
	Dataset string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("dataset %q is missing required field %q", e.Dataset, e.Field)
}

// InvalidFieldError reports a value of the wrong type in an input row.
type InvalidFieldError struct {
	Dataset string
	Field   string
	Row     int
	Reason  string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("dataset %q row %d field %q: %s", e.Dataset, e.Row, e.Field, e.Reason)
}

// IsInvalidInput reports whether err was caused by the caller's input
// rather than by the service.
func IsInvalidInput(err error) bool {
	var mf *MissingFieldError
	var inv *InvalidFieldError
	return errors.Is(err, ErrMissingDataset) || errors.As(err, &mf) || errors.As(err, &inv)
}
