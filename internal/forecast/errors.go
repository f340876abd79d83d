package forecast

import (
	"errors"

	"github.com/i474232898/pm25-forecast/internal/features"
)

var (
	// ErrUnknownCity is returned for cities outside the model's city vocabulary.
	ErrUnknownCity = features.ErrUnknownCity
	// ErrEmptyHistory is returned when the city has no merged history to walk from.
	ErrEmptyHistory = errors.New("no history for city")
	// ErrForecastFetch is returned when the weather for a simulated day could not be fetched.
	ErrForecastFetch = errors.New("weather forecast fetch failed")
	// ErrModelInvocation is returned when the model cannot score a feature row.
	ErrModelInvocation = errors.New("model invocation failed")
)
