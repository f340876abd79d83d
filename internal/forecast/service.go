package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i474232898/pm25-forecast/internal/airquality"
	"github.com/i474232898/pm25-forecast/internal/aqi"
	"github.com/i474232898/pm25-forecast/internal/features"
	"github.com/i474232898/pm25-forecast/internal/metrics"
	"github.com/i474232898/pm25-forecast/internal/store"
)

// HistorySource loads the raw weather and PM2.5 rows of one city.
type HistorySource interface {
	LoadHistory(ctx context.Context, city string) ([]airquality.WeatherHistory, []airquality.Measurement, error)
}

// Prediction is the outcome of one forecast request.
type Prediction struct {
	RunID         string       `json:"run_id"`
	City          string       `json:"city"`
	Date          string       `json:"date"`
	PredictedPM25 float64      `json:"predicted_pm25"`
	Steps         int          `json:"steps"`
	AirQuality    aqi.Category `json:"air_quality"`
	// Features echoes the final day's model inputs and weather.
	Features map[string]float64 `json:"features"`
}

// echoed columns besides the model inputs
var weatherColumns = []string{
	features.AvgHumidity, features.AvgTempC, features.AvgVisKm,
	features.MaxWindKph, features.TotalPrecipMm, features.PressureMb,
}

// Service runs forecast requests end to end: load, merge, engineer, encode, walk.
type Service struct {
	history HistorySource
	walker  *Walker
	schema  features.Schema
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewService creates a Service. m may be nil.
func NewService(history HistorySource, walker *Walker, m *metrics.Metrics) *Service {
	return &Service{
		history: history,
		walker:  walker,
		schema:  walker.schema,
		metrics: m,
		tracer:  otel.Tracer("github.com/i474232898/pm25-forecast/internal/forecast"),
	}
}

// Cities returns the city vocabulary predictions can be requested for.
func (s *Service) Cities() []string {
	return s.walker.Encoder().Vocabulary()
}

// Forecast predicts PM2.5 for city on date.
func (s *Service) Forecast(ctx context.Context, city string, date time.Time) (Prediction, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "forecast.pm25", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("city", city),
		attribute.String("date", date.Format("2006-01-02")),
	))
	defer span.End()

	p, err := s.forecast(ctx, city, date)
	s.observe(outcomeOf(err), time.Since(start), p.Steps)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("ERROR: forecast %s for %s on %s failed: %v", runID, city, date.Format("2006-01-02"), err)
		return Prediction{}, err
	}

	p.RunID = runID
	span.SetAttributes(attribute.Int("steps", p.Steps), attribute.Float64("pm25", p.PredictedPM25))
	log.Printf("INFO: forecast %s for %s on %s: pm25=%.2f after %d steps", runID, city, p.Date, p.PredictedPM25, p.Steps)
	return p, nil
}

func (s *Service) forecast(ctx context.Context, city string, date time.Time) (Prediction, error) {
	// Reject unknown cities before touching storage or the model.
	if !s.walker.Encoder().Has(city) {
		return Prediction{}, fmt.Errorf("%w: %q", ErrUnknownCity, city)
	}

	weatherRows, measurements, err := s.history.LoadHistory(ctx, city)
	if errors.Is(err, store.ErrNotFound) {
		return Prediction{}, fmt.Errorf("%w: %q", ErrEmptyHistory, city)
	}
	if err != nil {
		return Prediction{}, fmt.Errorf("load history for %q: %w", city, err)
	}

	records := airquality.Merge(weatherRows, measurements)
	rows, err := s.walker.Encoder().Encode(features.Engineer(records), city)
	if err != nil {
		return Prediction{}, err
	}
	if len(rows) == 0 {
		return Prediction{}, fmt.Errorf("%w: %q", ErrEmptyHistory, city)
	}

	res, err := s.walker.Walk(ctx, rows, city, date)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		City:          city,
		Date:          res.Row.Date.Format("2006-01-02"),
		PredictedPM25: res.Row.PM25,
		Steps:         res.Steps,
		AirQuality:    aqi.Classify(res.Row.PM25),
		Features:      s.echo(res.Row),
	}, nil
}

func (s *Service) echo(r features.Row) map[string]float64 {
	out := make(map[string]float64, s.schema.Len()+len(weatherColumns))
	for _, name := range append(s.schema.Names(), weatherColumns...) {
		if v, ok := r.Value(name); ok {
			out[name] = v
		}
	}
	return out
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownCity):
		return "unknown_city"
	case errors.Is(err, ErrEmptyHistory):
		return "empty_history"
	case errors.Is(err, ErrForecastFetch):
		return "weather_fetch"
	case errors.Is(err, ErrModelInvocation):
		return "model"
	default:
		return "error"
	}
}

func (s *Service) observe(outcome string, elapsed time.Duration, steps int) {
	if s.metrics == nil {
		return
	}
	s.metrics.Forecasts.WithLabelValues(outcome).Inc()
	s.metrics.ForecastDuration.Observe(elapsed.Seconds())
	if outcome == "ok" {
		s.metrics.WalkSteps.Observe(float64(steps))
	}
}
