package airquality

import (
	"sort"
	"time"
)

type dayKey struct {
	city string
	date time.Time
}

type weatherSum struct {
	n                                           float64
	humidity, temp, vis, wind, precip, pressure float64
}

type pm25Sum struct {
	n, total float64
}

// Merge joins weather history with same-day PM2.5 measurements.
//
// Each measurement is attributed to the calendar date of its DateFrom. Weather rows and
// measurements that share a (city, date) are averaged, and only days present on both sides
// are kept. The result is ordered by city, then date. An empty input on either side yields
// an empty result.
func Merge(weather []WeatherHistory, measurements []Measurement) []HistoryRecord {
	if len(weather) == 0 || len(measurements) == 0 {
		return nil
	}

	weatherDays := make(map[dayKey]*weatherSum)
	for _, w := range weather {
		k := dayKey{city: w.City, date: DateOf(w.Date)}
		s, ok := weatherDays[k]
		if !ok {
			s = &weatherSum{}
			weatherDays[k] = s
		}
		s.n++
		s.humidity += w.AvgHumidity
		s.temp += w.AvgTempC
		s.vis += w.AvgVisKm
		s.wind += w.MaxWindKph
		s.precip += w.TotalPrecipMm
		s.pressure += w.PressureMb
	}

	pmDays := make(map[dayKey]*pm25Sum)
	for _, m := range measurements {
		k := dayKey{city: m.City, date: DateOf(m.DateFrom)}
		s, ok := pmDays[k]
		if !ok {
			s = &pm25Sum{}
			pmDays[k] = s
		}
		s.n++
		s.total += m.PM25
	}

	records := make([]HistoryRecord, 0, len(pmDays))
	for k, pm := range pmDays {
		w, ok := weatherDays[k]
		if !ok {
			continue
		}
		records = append(records, HistoryRecord{
			City:          k.city,
			Date:          k.date,
			AvgHumidity:   w.humidity / w.n,
			AvgTempC:      w.temp / w.n,
			AvgVisKm:      w.vis / w.n,
			MaxWindKph:    w.wind / w.n,
			TotalPrecipMm: w.precip / w.n,
			PressureMb:    w.pressure / w.n,
			PM25:          pm.total / pm.n,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].City != records[j].City {
			return records[i].City < records[j].City
		}
		return records[i].Date.Before(records[j].Date)
	})

	return records
}
