package features

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/i474232898/pm25-forecast/internal/airquality"
)

const (
	// EMASpan is the span of the PM2.5 exponential moving average.
	EMASpan = 7
	// TrailingWindow is the longest look-back any rolling column needs.
	TrailingWindow = 14
)

// WindowStats holds the rolling, smoothing and trend values of one row.
type WindowStats struct {
	Mean3  float64
	Mean7  float64
	Mean14 float64
	EMA7   float64
	Std7   float64
	Trend  float64
}

// emaAlpha is the smoothing factor for a span: 2 / (span + 1).
func emaAlpha(span int) float64 {
	return 2 / (float64(span) + 1)
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// RollingMean is the mean of the last w values, or of all values when fewer than w exist.
func RollingMean(values []float64, w int) float64 {
	window := tail(values, w)
	if len(window) == 0 {
		return 0
	}
	return stat.Mean(window, nil)
}

// RollingStd is the sample standard deviation of the last w values. It is 0 below two values.
func RollingStd(values []float64, w int) float64 {
	window := tail(values, w)
	if len(window) < 2 {
		return 0
	}
	return stat.StdDev(window, nil)
}

// EMA runs the span-based exponential moving average over values, seeded with the first value.
func EMA(values []float64, span int) float64 {
	if len(values) == 0 {
		return 0
	}
	alpha := emaAlpha(span)
	e := values[0]
	for _, v := range values[1:] {
		e = alpha*v + (1-alpha)*e
	}
	return e
}

// TrailingStats computes every window column for the last element of values, looking back at
// most TrailingWindow elements. The EMA is seeded with the first element of that trailing slice.
func TrailingStats(values []float64) WindowStats {
	window := tail(values, TrailingWindow)
	s := WindowStats{
		Mean3:  RollingMean(window, 3),
		Mean7:  RollingMean(window, 7),
		Mean14: RollingMean(window, 14),
		EMA7:   EMA(window, EMASpan),
		Std7:   RollingStd(window, 7),
	}
	s.Trend = s.Mean7 - s.Mean3
	return s
}

// Engineer derives calendar, rolling, smoothing and interaction features.
//
// Records are grouped by city and each group is stably sorted by date, so ties keep their
// input order. Rolling columns only ever see earlier rows of the same city. The returned rows
// follow that grouped order, cities in order of first appearance. Indicators are left unset;
// see Encoder.
func Engineer(records []airquality.HistoryRecord) []Row {
	if len(records) == 0 {
		return nil
	}

	var cities []string
	groups := make(map[string][]airquality.HistoryRecord)
	for _, rec := range records {
		if _, ok := groups[rec.City]; !ok {
			cities = append(cities, rec.City)
		}
		groups[rec.City] = append(groups[rec.City], rec)
	}

	rows := make([]Row, 0, len(records))
	for _, city := range cities {
		rows = append(rows, engineerCity(groups[city])...)
	}
	return rows
}

func engineerCity(records []airquality.HistoryRecord) []Row {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	alpha := emaAlpha(EMASpan)
	values := make([]float64, 0, len(records))
	rows := make([]Row, 0, len(records))

	var ema float64
	for i, rec := range records {
		values = append(values, rec.PM25)
		if i == 0 {
			ema = rec.PM25
		} else {
			ema = alpha*rec.PM25 + (1-alpha)*ema
		}

		row := Row{HistoryRecord: rec}
		row.SetCalendar(rec.Date)
		row.SetInteractions()

		s := WindowStats{
			Mean3:  RollingMean(values, 3),
			Mean7:  RollingMean(values, 7),
			Mean14: RollingMean(values, 14),
			EMA7:   ema,
			Std7:   RollingStd(values, 7),
		}
		s.Trend = s.Mean7 - s.Mean3
		row.SetWindowStats(s)

		rows = append(rows, row)
	}
	return rows
}
