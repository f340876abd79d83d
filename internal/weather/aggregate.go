package weather

import "time"

// AggregateReadings combines multiple provider readings for the same day into a DailyWeather.
// Numeric fields are averaged.
func AggregateReadings(city string, date time.Time, readings []ProviderReading) DailyWeather {
	day := DailyWeather{City: city, Date: date}
	if len(readings) == 0 {
		return day
	}

	var (
		sumHumidity float64
		sumTemp     float64
		sumVis      float64
		sumWind     float64
		sumPrecip   float64
		sumPressure float64
	)

	providers := make([]ProviderContribution, 0, len(readings))
	for _, r := range readings {
		sumHumidity += r.AvgHumidity
		sumTemp += r.AvgTempC
		sumVis += r.AvgVisKm
		sumWind += r.MaxWindKph
		sumPrecip += r.TotalPrecipMm
		sumPressure += r.PressureMb

		providers = append(providers, ProviderContribution{
			ProviderName: r.ProviderName,
			Source:       r.Source,
		})
	}

	n := float64(len(readings))

	day.AvgHumidity = sumHumidity / n
	day.AvgTempC = sumTemp / n
	day.AvgVisKm = sumVis / n
	day.MaxWindKph = sumWind / n
	day.TotalPrecipMm = sumPrecip / n
	day.PressureMb = sumPressure / n
	day.Providers = providers
	return day
}
