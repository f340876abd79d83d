package features

import (
	"errors"
	"fmt"
)

// ErrMissingFeature is returned when a row cannot supply a column the model expects.
var ErrMissingFeature = errors.New("missing feature")

// BaseColumns are the model inputs that do not depend on the city vocabulary, in training order.
var BaseColumns = []string{
	Year, Month, Day, DayOfWeek, MonthOfYear, Season,
	RollingMean3, RollingMean7, RollingMean14, EMA7, RollingStd7, Trend,
	TempHumidity, PressureHumidity, WindHumidity,
}

// Schema is the ordered list of feature names a model consumes.
type Schema struct {
	names []string
}

// NewSchema wraps an explicit column order, typically read from a model artifact.
func NewSchema(names []string) Schema {
	cp := make([]string, len(names))
	copy(cp, names)
	return Schema{names: cp}
}

// DefaultSchema is BaseColumns followed by one indicator column per vocabulary city.
func DefaultSchema(vocabulary []string) Schema {
	names := make([]string, 0, len(BaseColumns)+len(vocabulary))
	names = append(names, BaseColumns...)
	names = append(names, vocabulary...)
	return Schema{names: names}
}

// Names returns the column order.
func (s Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len is the vector width.
func (s Schema) Len() int { return len(s.names) }

// Vector lays out r's values in schema order.
func (s Schema) Vector(r Row) ([]float64, error) {
	vec := make([]float64, len(s.names))
	for i, name := range s.names {
		v, ok := r.Value(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingFeature, name)
		}
		vec[i] = v
	}
	return vec, nil
}
