package weather

import (
	"time"
)

// Location represents a logical place for which we fetch weather.
// City must be provided; coordinates are optional and only used by coordinate-based providers.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for indexing this location.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// DailyWeather is the normalized, aggregated weather for one city and calendar day.
// Units follow the history table: percent, °C, km, km/h, mm, mb.
type DailyWeather struct {
	City          string    `json:"city"`
	Date          time.Time `json:"date"` // midnight UTC
	AvgHumidity   float64   `json:"avg_humidity"`
	AvgTempC      float64   `json:"avg_temp_c"`
	AvgVisKm      float64   `json:"avg_vis_km"`
	MaxWindKph    float64   `json:"max_wind_kph"`
	TotalPrecipMm float64   `json:"total_precip_mm"`
	PressureMb    float64   `json:"pressure_mb"`

	// Providers contributing to this day.
	Providers []ProviderContribution `json:"providers,omitempty"`
}

// ProviderContribution describes data coming from a single provider used in aggregation.
type ProviderContribution struct {
	ProviderName string `json:"provider"`
	Source       string `json:"source"` // e.g. forecast, future, history
}
