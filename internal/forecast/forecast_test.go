package forecast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm25-forecast/internal/airquality"
	"github.com/i474232898/pm25-forecast/internal/features"
	"github.com/i474232898/pm25-forecast/internal/metrics"
	"github.com/i474232898/pm25-forecast/internal/model"
	"github.com/i474232898/pm25-forecast/internal/store"
	"github.com/i474232898/pm25-forecast/internal/weather"
)

var (
	vocabulary   = []string{"Santiago", "Temuco"}
	santiagoPM25 = []float64{10, 12, 11, 9, 14, 13, 10, 8, 11, 12}
)

func jan(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func santiagoRaw() ([]airquality.WeatherHistory, []airquality.Measurement) {
	var weatherRows []airquality.WeatherHistory
	var measurements []airquality.Measurement
	for i, pm := range santiagoPM25 {
		d := jan(i + 1)
		weatherRows = append(weatherRows, airquality.WeatherHistory{
			City: "Santiago", Date: d,
			AvgHumidity: 50, AvgTempC: 20, AvgVisKm: 10, MaxWindKph: 12, TotalPrecipMm: 0, PressureMb: 1012,
		})
		measurements = append(measurements, airquality.Measurement{
			SensorID: 1, City: "Santiago", DateFrom: d.Add(2 * time.Hour), DateTo: d.Add(3 * time.Hour), PM25: pm,
		})
	}
	return weatherRows, measurements
}

func santiagoSeries(t *testing.T) []features.Row {
	t.Helper()
	weatherRows, measurements := santiagoRaw()
	rows, err := features.NewEncoder(vocabulary).Encode(features.Engineer(airquality.Merge(weatherRows, measurements)), "Santiago")
	require.NoError(t, err)
	require.Len(t, rows, len(santiagoPM25))
	return rows
}

type stubForecaster struct {
	mu     sync.Mutex
	dates  []time.Time
	failOn time.Time
}

func (f *stubForecaster) GetFutureWeather(_ context.Context, city string, date time.Time) (weather.DailyWeather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	if date.Equal(f.failOn) {
		return weather.DailyWeather{}, weather.ErrNoForecast
	}
	return weather.DailyWeather{
		City: city, Date: date,
		AvgHumidity: 60, AvgTempC: 25, AvgVisKm: 8, MaxWindKph: 10, TotalPrecipMm: 1, PressureMb: 1010,
	}, nil
}

// sequencePredictor returns outputs in order and records every vector it was given.
type sequencePredictor struct {
	outputs []float64
	vectors [][]float64
}

func (p *sequencePredictor) Predict(vec []float64) (float64, error) {
	p.vectors = append(p.vectors, vec)
	return p.outputs[len(p.vectors)-1], nil
}

func newWalker(fc WeatherForecaster, pred model.Predictor) *Walker {
	return NewWalker(fc, pred, features.NewEncoder(vocabulary), features.DefaultSchema(vocabulary), nil)
}

func schemaIndex(t *testing.T, name string) int {
	t.Helper()
	for i, n := range features.DefaultSchema(vocabulary).Names() {
		if n == name {
			return i
		}
	}
	t.Fatalf("column %s not in schema", name)
	return -1
}

func TestWalkSameDayReturnsLastRow(t *testing.T) {
	series := santiagoSeries(t)
	fc := &stubForecaster{}
	pred := &sequencePredictor{}

	res, err := newWalker(fc, pred).Walk(context.Background(), series, "Santiago", jan(10))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Steps)
	assert.Equal(t, series[len(series)-1], res.Row)
	assert.Empty(t, fc.dates)
	assert.Empty(t, pred.vectors)
}

func TestWalkTargetBeforeHistoryEnd(t *testing.T) {
	series := santiagoSeries(t)
	res, err := newWalker(&stubForecaster{}, &sequencePredictor{}).Walk(context.Background(), series, "Santiago", jan(5))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Steps)
	assert.Equal(t, jan(10), res.Row.Date)
}

func TestWalkSantiagoOneStep(t *testing.T) {
	series := santiagoSeries(t)
	fc := &stubForecaster{}
	pred := &sequencePredictor{outputs: []float64{15}}

	res, err := newWalker(fc, pred).Walk(context.Background(), series, "Santiago", jan(11).Add(18*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, []time.Time{jan(11)}, fc.dates)
	assert.Equal(t, jan(11), res.Row.Date)
	assert.InDelta(t, 15.0, res.Row.PM25, 1e-9)
	assert.InDelta(t, (11.0+12.0+15.0)/3, res.Row.RollingMean3, 1e-9)

	// The model saw the copied row: new calendar and weather, previous day's rolling values.
	require.Len(t, pred.vectors, 1)
	vec := pred.vectors[0]
	assert.Equal(t, 11.0, vec[schemaIndex(t, features.Day)])
	assert.Equal(t, 3.0, vec[schemaIndex(t, features.DayOfWeek)]) // Thursday
	assert.InDelta(t, 25.0*60, vec[schemaIndex(t, features.TempHumidity)], 1e-9)
	assert.InDelta(t, (8.0+11.0+12.0)/3, vec[schemaIndex(t, features.RollingMean3)], 1e-9)
	assert.Equal(t, 1.0, vec[schemaIndex(t, "Santiago")])
	assert.Equal(t, 0.0, vec[schemaIndex(t, "Temuco")])
}

func TestWalkThreeStepsRecomputesFromPredictions(t *testing.T) {
	series := santiagoSeries(t)
	original := series[len(series)-1].Clone()
	fc := &stubForecaster{}
	pred := &sequencePredictor{outputs: []float64{20, 30, 40}}

	res, err := newWalker(fc, pred).Walk(context.Background(), series, "Santiago", jan(13))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, []time.Time{jan(11), jan(12), jan(13)}, fc.dates)

	// Step 2 and 3 inputs carry the rolling values recomputed after the previous prediction.
	i3 := schemaIndex(t, features.RollingMean3)
	assert.InDelta(t, (11.0+12.0+20.0)/3, pred.vectors[1][i3], 1e-9)
	assert.InDelta(t, (12.0+20.0+30.0)/3, pred.vectors[2][i3], 1e-9)

	values := append(append([]float64{}, santiagoPM25...), 20, 30, 40)
	want := features.TrailingStats(values)
	assert.InDelta(t, 30.0, res.Row.RollingMean3, 1e-9)
	assert.InDelta(t, (10.0+8+11+12+20+30+40)/7, res.Row.RollingMean7, 1e-9)
	assert.InDelta(t, want.Mean14, res.Row.RollingMean14, 1e-9)
	assert.InDelta(t, want.EMA7, res.Row.EMA7, 1e-9)
	assert.InDelta(t, want.Std7, res.Row.RollingStd7, 1e-9)
	assert.InDelta(t, res.Row.RollingMean7-res.Row.RollingMean3, res.Row.Trend, 1e-9)

	assert.Equal(t, original, series[len(series)-1], "input series must not change")
}

func TestWalkUnknownCityBeforeModel(t *testing.T) {
	fc := &stubForecaster{}
	pred := &sequencePredictor{}
	_, err := newWalker(fc, pred).Walk(context.Background(), santiagoSeries(t), "Lima", jan(12))

	assert.ErrorIs(t, err, ErrUnknownCity)
	assert.Empty(t, fc.dates)
	assert.Empty(t, pred.vectors)
}

func TestWalkEmptySeries(t *testing.T) {
	_, err := newWalker(&stubForecaster{}, &sequencePredictor{}).Walk(context.Background(), nil, "Santiago", jan(12))
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestWalkFetchFailureAborts(t *testing.T) {
	fc := &stubForecaster{failOn: jan(12)}
	pred := &sequencePredictor{outputs: []float64{20, 30, 40}}

	_, err := newWalker(fc, pred).Walk(context.Background(), santiagoSeries(t), "Santiago", jan(14))
	assert.ErrorIs(t, err, ErrForecastFetch)
	assert.ErrorIs(t, err, weather.ErrNoForecast)
	assert.Len(t, pred.vectors, 1)
	assert.Equal(t, []time.Time{jan(11), jan(12)}, fc.dates)
}

func TestWalkModelFailure(t *testing.T) {
	failing := model.PredictorFunc(func([]float64) (float64, error) { return 0, model.ErrShapeMismatch })
	_, err := newWalker(&stubForecaster{}, failing).Walk(context.Background(), santiagoSeries(t), "Santiago", jan(11))
	assert.ErrorIs(t, err, ErrModelInvocation)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	w := NewWalker(&stubForecaster{}, failing, features.NewEncoder(vocabulary), features.NewSchema([]string{features.Year, "Lima"}), nil)
	_, err = w.Walk(context.Background(), santiagoSeries(t), "Santiago", jan(11))
	assert.ErrorIs(t, err, ErrModelInvocation)
	assert.ErrorIs(t, err, features.ErrMissingFeature)
}

func TestWalkHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newWalker(&stubForecaster{}, &sequencePredictor{}).Walk(ctx, santiagoSeries(t), "Santiago", jan(11))
	assert.ErrorIs(t, err, context.Canceled)
}

type countingHistory struct {
	HistorySource
	calls int
}

func (h *countingHistory) LoadHistory(ctx context.Context, city string) ([]airquality.WeatherHistory, []airquality.Measurement, error) {
	h.calls++
	return h.HistorySource.LoadHistory(ctx, city)
}

func newTestService(t *testing.T, outputs []float64) (*Service, *countingHistory, *metrics.Metrics) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.ReplaceAll(santiagoRaw())
	history := &countingHistory{HistorySource: mem}

	m := metrics.New(prometheus.NewRegistry())
	walker := NewWalker(&stubForecaster{}, &sequencePredictor{outputs: outputs}, features.NewEncoder(vocabulary), features.DefaultSchema(vocabulary), m)
	return NewService(history, walker, m), history, m
}

func TestServiceForecast(t *testing.T) {
	svc, _, m := newTestService(t, []float64{20, 40})

	p, err := svc.Forecast(context.Background(), "Santiago", jan(12))
	require.NoError(t, err)

	assert.NotEmpty(t, p.RunID)
	assert.Equal(t, "Santiago", p.City)
	assert.Equal(t, "2024-01-12", p.Date)
	assert.Equal(t, 2, p.Steps)
	assert.InDelta(t, 40.0, p.PredictedPM25, 1e-9)
	assert.True(t, p.AirQuality.AvoidOutdoor)
	assert.InDelta(t, (12.0+20+40)/3, p.Features[features.RollingMean3], 1e-9)
	assert.InDelta(t, 1010.0, p.Features[features.PressureMb], 1e-9)
	assert.Equal(t, 1.0, p.Features["Santiago"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions))
	assert.Equal(t, vocabulary, svc.Cities())
}

func TestServiceUnknownCityDoesNotLoadHistory(t *testing.T) {
	svc, history, m := newTestService(t, nil)

	_, err := svc.Forecast(context.Background(), "Lima", jan(12))
	assert.ErrorIs(t, err, ErrUnknownCity)
	assert.Equal(t, 0, history.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts.WithLabelValues("unknown_city")))
}

func TestServiceEmptyHistory(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	// Temuco is in the vocabulary but has no rows.
	_, err := svc.Forecast(context.Background(), "Temuco", jan(12))
	assert.ErrorIs(t, err, ErrEmptyHistory)

	mem := store.NewMemoryStore()
	weatherRows, _ := santiagoRaw()
	mem.ReplaceAll(weatherRows, nil)
	walker := newWalker(&stubForecaster{}, &sequencePredictor{})
	_, err = NewService(mem, walker, nil).Forecast(context.Background(), "Santiago", jan(12))
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestServiceHistoryError(t *testing.T) {
	walker := newWalker(&stubForecaster{}, &sequencePredictor{})
	_, err := NewService(brokenHistory{}, walker, nil).Forecast(context.Background(), "Santiago", jan(12))
	require.Error(t, err)
	assert.Equal(t, "error", outcomeOf(err))
}

type brokenHistory struct{}

func (brokenHistory) LoadHistory(context.Context, string) ([]airquality.WeatherHistory, []airquality.Measurement, error) {
	return nil, nil, errors.New("db down")
}
