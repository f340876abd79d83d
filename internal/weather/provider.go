package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIncompleteReading is returned by providers whose payload lacks one of the daily metrics.
	ErrIncompleteReading = errors.New("incomplete weather reading")
	// ErrNoForecast is returned when no provider could supply the requested day.
	ErrNoForecast = errors.New("no weather forecast available")
)

// ProviderReading represents a single provider's normalized daily reading
// that can be aggregated into a DailyWeather.
type ProviderReading struct {
	ProviderName string
	Source       string
	Date         time.Time

	AvgHumidity   float64
	AvgTempC      float64
	AvgVisKm      float64
	MaxWindKph    float64
	TotalPrecipMm float64
	PressureMb    float64
}

// Provider abstracts a daily weather data source (e.g. WeatherAPI, Open-Meteo).
// FetchDay returns the weather for one calendar day; providers decide which of their
// endpoints (history, short-range forecast, long-range) serves that day.
type Provider interface {
	Name() string
	FetchDay(ctx context.Context, loc Location, date time.Time) (ProviderReading, error)
}

// Cache stores aggregated days keyed by city and date. Implementations must be safe for
// concurrent use; a failed lookup is a miss.
type Cache interface {
	Get(ctx context.Context, key string) (DailyWeather, bool)
	Set(ctx context.Context, key string, day DailyWeather)
}

// CacheKey is the cache key for a city and day.
func CacheKey(city string, date time.Time) string {
	return city + "|" + date.Format("2006-01-02")
}
