package airquality

import "time"

// WeatherHistory is one observed day of weather for a city, as stored in tbl_weather_history.
type WeatherHistory struct {
	City          string    `json:"city"`
	Date          time.Time `json:"date"`
	AvgHumidity   float64   `json:"avg_humidity"`
	AvgTempC      float64   `json:"avg_temp_c"`
	AvgVisKm      float64   `json:"avg_vis_km"`
	MaxWindKph    float64   `json:"max_wind_kph"`
	TotalPrecipMm float64   `json:"total_precip_mm"`
	PressureMb    float64   `json:"pressure_mb"`
}

// Measurement is a single sensor's PM2.5 reading over a period, as stored in tbl_measurements.
type Measurement struct {
	SensorID int64     `json:"sensor_id"`
	City     string    `json:"city"`
	DateFrom time.Time `json:"date_from"`
	DateTo   time.Time `json:"date_to"`
	PM25     float64   `json:"pm25"`
}

// HistoryRecord is the merged per-city, per-day view of weather and PM2.5.
// At most one record exists per (City, Date).
type HistoryRecord struct {
	City          string    `json:"city"`
	Date          time.Time `json:"date"`
	AvgHumidity   float64   `json:"avg_humidity"`
	AvgTempC      float64   `json:"avg_temp_c"`
	AvgVisKm      float64   `json:"avg_vis_km"`
	MaxWindKph    float64   `json:"max_wind_kph"`
	TotalPrecipMm float64   `json:"total_precip_mm"`
	PressureMb    float64   `json:"pressure_mb"`
	PM25          float64   `json:"pm25"`
}

// DateOf truncates t to its calendar date (in t's own location) and returns it at midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
