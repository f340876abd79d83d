package features

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// ErrUnknownCity is returned when a city is not part of the model's city vocabulary.
var ErrUnknownCity = errors.New("city is not in the model vocabulary")

// Encoder one-hot encodes the city column against a fixed vocabulary.
// The vocabulary order is the indicator column order the model was trained with.
type Encoder struct {
	vocabulary []string
	index      map[string]int
}

// NewEncoder builds an Encoder. Blank and duplicate entries are dropped; order is kept.
func NewEncoder(vocabulary []string) *Encoder {
	e := &Encoder{index: make(map[string]int, len(vocabulary))}
	for _, city := range vocabulary {
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		if _, dup := e.index[city]; dup {
			continue
		}
		e.index[city] = len(e.vocabulary)
		e.vocabulary = append(e.vocabulary, city)
	}
	return e
}

// VocabularyOf returns the sorted distinct cities of a feature table.
func VocabularyOf(rows []Row) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.City]; ok {
			continue
		}
		seen[r.City] = struct{}{}
		out = append(out, r.City)
	}
	sort.Strings(out)
	return out
}

// Vocabulary returns a copy of the encoder's cities in column order.
func (e *Encoder) Vocabulary() []string {
	out := make([]string, len(e.vocabulary))
	copy(out, e.vocabulary)
	return out
}

// Has reports whether city is in the vocabulary.
func (e *Encoder) Has(city string) bool {
	_, ok := e.index[city]
	return ok
}

// Indicators returns the full indicator set for city: 1 for city, 0 for every other column.
func (e *Encoder) Indicators(city string) (map[string]float64, error) {
	if !e.Has(city) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, city)
	}
	out := make(map[string]float64, len(e.vocabulary))
	for _, c := range e.vocabulary {
		out[c] = 0
	}
	out[city] = 1
	return out, nil
}

// Encode restricts rows to city and sets the indicator columns on each of them.
// The input rows are not modified.
func (e *Encoder) Encode(rows []Row, city string) ([]Row, error) {
	ind, err := e.Indicators(city)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, r := range rows {
		if r.City != city {
			continue
		}
		c := r.Clone()
		c.Indicators = maps.Clone(ind)
		out = append(out, c)
	}
	return out, nil
}
