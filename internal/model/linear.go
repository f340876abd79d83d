package model

import "fmt"

// Linear is an ordinary linear regression: intercept + coefficients · x.
type Linear struct {
	Intercept    float64   `mapstructure:"intercept"`
	Coefficients []float64 `mapstructure:"coefficients"`
}

func (m *Linear) Predict(vector []float64) (float64, error) {
	if len(vector) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: linear model wants %d features, got %d", ErrShapeMismatch, len(m.Coefficients), len(vector))
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * vector[i]
	}
	return y, nil
}

func (m *Linear) validate(width int) error {
	if len(m.Coefficients) != width {
		return fmt.Errorf("%w: %d coefficients for %d features", ErrShapeMismatch, len(m.Coefficients), width)
	}
	return nil
}
