// Package model evaluates pre-trained PM2.5 regression models.
//
// Models are trained elsewhere and shipped as artifacts (see Load); this package only
// decodes and evaluates them.
package model

import "errors"

// ErrShapeMismatch is returned when a feature vector does not match the model's input width.
var ErrShapeMismatch = errors.New("feature vector shape mismatch")

// Predictor maps an ordered feature vector to a PM2.5 estimate.
type Predictor interface {
	Predict(vector []float64) (float64, error)
}

// PredictorFunc adapts a plain function to Predictor.
type PredictorFunc func(vector []float64) (float64, error)

// Predict calls f.
func (f PredictorFunc) Predict(vector []float64) (float64, error) {
	return f(vector)
}

// Artifact is a decoded model together with the training-time input layout.
type Artifact struct {
	Type string
	// Features is the ordered list of feature names the model consumes.
	Features []string
	// Cities is the one-hot city vocabulary, in indicator column order.
	Cities []string

	Predictor
}
