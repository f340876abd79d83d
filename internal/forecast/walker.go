// Package forecast extends a city's PM2.5 history to a target date one predicted day at a time.
package forecast

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/i474232898/pm25-forecast/internal/airquality"
	"github.com/i474232898/pm25-forecast/internal/features"
	"github.com/i474232898/pm25-forecast/internal/metrics"
	"github.com/i474232898/pm25-forecast/internal/model"
	"github.com/i474232898/pm25-forecast/internal/weather"
)

// WeatherForecaster supplies the weather for one city and day. The implementation picks its
// short- or long-range source from how far ahead date is.
type WeatherForecaster interface {
	GetFutureWeather(ctx context.Context, city string, date time.Time) (weather.DailyWeather, error)
}

// WalkResult is the last row of the walked window and the number of simulated days.
type WalkResult struct {
	Row   features.Row
	Steps int
}

// Walker runs the walk-forward forecast.
type Walker struct {
	weather WeatherForecaster
	model   model.Predictor
	encoder *features.Encoder
	schema  features.Schema
	metrics *metrics.Metrics
}

// NewWalker creates a Walker. schema must list the model's inputs in training order; m may be nil.
func NewWalker(forecaster WeatherForecaster, predictor model.Predictor, encoder *features.Encoder, schema features.Schema, m *metrics.Metrics) *Walker {
	return &Walker{
		weather: forecaster,
		model:   predictor,
		encoder: encoder,
		schema:  schema,
		metrics: m,
	}
}

// Encoder returns the city vocabulary the walker encodes with.
func (w *Walker) Encoder() *features.Encoder {
	return w.encoder
}

// Walk extends series, the encoded date-ordered history of city, until target.
//
// Each simulated day copies the newest row, takes that day's weather and calendar, is scored
// by the model and then appended; its rolling, EMA, std and trend columns are recomputed over
// the trailing window, which now includes the prediction. While the last date is not before
// target no step runs and the last historical row is returned as is. A failed weather fetch
// aborts the walk since every later rolling value would depend on the missing day.
// series is not modified.
func (w *Walker) Walk(ctx context.Context, series []features.Row, city string, target time.Time) (WalkResult, error) {
	indicators, err := w.encoder.Indicators(city)
	if err != nil {
		return WalkResult{}, err
	}
	if len(series) == 0 {
		return WalkResult{}, fmt.Errorf("%w: %q", ErrEmptyHistory, city)
	}

	window := make([]features.Row, len(series), len(series)+8)
	values := make([]float64, len(series), len(series)+8)
	for i, r := range series {
		window[i] = r.Clone()
		values[i] = r.PM25
	}

	target = airquality.DateOf(target)
	current := airquality.DateOf(window[len(window)-1].Date)
	span := trace.SpanFromContext(ctx)

	steps := 0
	for current.Before(target) {
		if err := ctx.Err(); err != nil {
			return WalkResult{}, err
		}
		current = current.AddDate(0, 0, 1)
		day := current.Format("2006-01-02")

		daily, err := w.weather.GetFutureWeather(ctx, city, current)
		if err != nil {
			return WalkResult{}, fmt.Errorf("%w for %s on %s: %w", ErrForecastFetch, city, day, err)
		}

		row := window[len(window)-1].Clone()
		row.City = city
		row.AvgHumidity = daily.AvgHumidity
		row.AvgTempC = daily.AvgTempC
		row.AvgVisKm = daily.AvgVisKm
		row.MaxWindKph = daily.MaxWindKph
		row.TotalPrecipMm = daily.TotalPrecipMm
		row.PressureMb = daily.PressureMb
		row.SetCalendar(current)
		row.SetInteractions()
		row.Indicators = make(map[string]float64, len(indicators))
		for k, v := range indicators {
			row.Indicators[k] = v
		}

		pm25, err := w.predict(row)
		if err != nil {
			return WalkResult{}, fmt.Errorf("%w for %s on %s: %w", ErrModelInvocation, city, day, err)
		}
		row.PM25 = pm25

		values = append(values, pm25)
		row.SetWindowStats(features.TrailingStats(values))
		window = append(window, row)
		steps++

		span.AddEvent("walk.step", trace.WithAttributes(
			attribute.String("date", day),
			attribute.Float64("pm25", pm25),
		))
	}

	return WalkResult{Row: window[len(window)-1], Steps: steps}, nil
}

func (w *Walker) predict(row features.Row) (float64, error) {
	vec, err := w.schema.Vector(row)
	if err != nil {
		return 0, err
	}
	if w.metrics != nil {
		w.metrics.Predictions.Inc()
	}
	return w.model.Predict(vec)
}
