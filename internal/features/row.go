package features

import (
	"time"

	"github.com/i474232898/pm25-forecast/internal/airquality"
)

// Feature column names, as used by model artifacts.
const (
	Year        = "year"
	Month       = "month"
	Day         = "day"
	DayOfWeek   = "day_of_week"
	MonthOfYear = "month_of_year"
	Season      = "season"

	RollingMean3  = "pm25_rolling_mean_3"
	RollingMean7  = "pm25_rolling_mean_7"
	RollingMean14 = "pm25_rolling_mean_14"
	EMA7          = "pm25_ema_7"
	RollingStd7   = "pm25_rolling_std_7"
	Trend         = "pm25_trend"

	TempHumidity     = "temp_humidity"
	PressureHumidity = "pressure_humidity"
	WindHumidity     = "wind_humidity"

	AvgHumidity   = "avg_humidity"
	AvgTempC      = "avg_temp_c"
	AvgVisKm      = "avg_vis_km"
	MaxWindKph    = "max_wind_kph"
	TotalPrecipMm = "total_precip_mm"
	PressureMb    = "pressure_mb"
	PM25          = "pm25"
)

// Row is a HistoryRecord extended with engineered features.
type Row struct {
	airquality.HistoryRecord

	Year        int `json:"year"`
	Month       int `json:"month"`
	Day         int `json:"day"`
	DayOfWeek   int `json:"day_of_week"`
	MonthOfYear int `json:"month_of_year"`
	Season      int `json:"season"`

	RollingMean3  float64 `json:"pm25_rolling_mean_3"`
	RollingMean7  float64 `json:"pm25_rolling_mean_7"`
	RollingMean14 float64 `json:"pm25_rolling_mean_14"`
	EMA7          float64 `json:"pm25_ema_7"`
	RollingStd7   float64 `json:"pm25_rolling_std_7"`
	Trend         float64 `json:"pm25_trend"`

	TempHumidity     float64 `json:"temp_humidity"`
	PressureHumidity float64 `json:"pressure_humidity"`
	WindHumidity     float64 `json:"wind_humidity"`

	// Indicators holds one-hot city columns keyed by city name.
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Clone returns a copy of r that shares no mutable state with it.
func (r Row) Clone() Row {
	c := r
	if r.Indicators != nil {
		c.Indicators = make(map[string]float64, len(r.Indicators))
		for k, v := range r.Indicators {
			c.Indicators[k] = v
		}
	}
	return c
}

// SetCalendar derives the calendar columns from date and stores date on the row.
func (r *Row) SetCalendar(date time.Time) {
	r.Date = date
	r.Year = date.Year()
	r.Month = int(date.Month())
	r.Day = date.Day()
	// Monday=0 .. Sunday=6
	r.DayOfWeek = (int(date.Weekday()) + 6) % 7
	r.MonthOfYear = int(date.Month())
	r.Season = (int(date.Month())%12)/3 + 1
}

// SetInteractions recomputes the weather interaction terms from the current weather fields.
func (r *Row) SetInteractions() {
	r.TempHumidity = r.AvgTempC * r.AvgHumidity
	r.PressureHumidity = r.PressureMb * r.AvgHumidity
	r.WindHumidity = r.MaxWindKph * r.AvgHumidity
}

// SetWindowStats overwrites the rolling, smoothing and trend columns.
func (r *Row) SetWindowStats(s WindowStats) {
	r.RollingMean3 = s.Mean3
	r.RollingMean7 = s.Mean7
	r.RollingMean14 = s.Mean14
	r.EMA7 = s.EMA7
	r.RollingStd7 = s.Std7
	r.Trend = s.Trend
}

// Value looks up a numeric column by name. City indicator columns are resolved last.
func (r Row) Value(name string) (float64, bool) {
	switch name {
	case Year:
		return float64(r.Year), true
	case Month:
		return float64(r.Month), true
	case Day:
		return float64(r.Day), true
	case DayOfWeek:
		return float64(r.DayOfWeek), true
	case MonthOfYear:
		return float64(r.MonthOfYear), true
	case Season:
		return float64(r.Season), true
	case RollingMean3:
		return r.RollingMean3, true
	case RollingMean7:
		return r.RollingMean7, true
	case RollingMean14:
		return r.RollingMean14, true
	case EMA7:
		return r.EMA7, true
	case RollingStd7:
		return r.RollingStd7, true
	case Trend:
		return r.Trend, true
	case TempHumidity:
		return r.TempHumidity, true
	case PressureHumidity:
		return r.PressureHumidity, true
	case WindHumidity:
		return r.WindHumidity, true
	case AvgHumidity:
		return r.AvgHumidity, true
	case AvgTempC:
		return r.AvgTempC, true
	case AvgVisKm:
		return r.AvgVisKm, true
	case MaxWindKph:
		return r.MaxWindKph, true
	case TotalPrecipMm:
		return r.TotalPrecipMm, true
	case PressureMb:
		return r.PressureMb, true
	case PM25:
		return r.PM25, true
	}
	v, ok := r.Indicators[name]
	return v, ok
}
