package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm25-forecast/internal/airquality"
	"github.com/i474232898/pm25-forecast/internal/config"
	"github.com/i474232898/pm25-forecast/internal/features"
	"github.com/i474232898/pm25-forecast/internal/forecast"
	"github.com/i474232898/pm25-forecast/internal/model"
	"github.com/i474232898/pm25-forecast/internal/weather"
)

func TestResolveVocabulary(t *testing.T) {
	withCities := &model.Artifact{Features: []string{"year", "Santiago"}, Cities: []string{"Santiago"}}
	without := &model.Artifact{Features: []string{"year", "Lima", "Temuco"}}

	vocab, err := resolveVocabulary(withCities, []string{"Lima"}, []string{"Temuco"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Santiago"}, vocab)

	vocab, err = resolveVocabulary(without, []string{"Lima"}, []string{"Temuco"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lima"}, vocab)

	vocab, err = resolveVocabulary(without, nil, []string{"Temuco"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Temuco"}, vocab)
}

func TestResolveVocabularyDropsCitiesWithoutColumn(t *testing.T) {
	a := &model.Artifact{Features: append(append([]string{}, features.BaseColumns...), "Santiago")}

	vocab, err := resolveVocabulary(a, nil, []string{"Santiago", "Temuco"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Santiago"}, vocab)

	vocab, err = resolveVocabulary(a, []string{"Temuco", "Santiago"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Santiago"}, vocab)

	_, err = resolveVocabulary(a, []string{"Temuco", "Lima"}, []string{"Santiago"})
	assert.ErrorContains(t, err, "CITY_VOCABULARY")
	_, err = resolveVocabulary(a, nil, nil)
	assert.Error(t, err)
}

type noWeather struct{ calls int }

func (n *noWeather) GetFutureWeather(context.Context, string, time.Time) (weather.DailyWeather, error) {
	n.calls++
	return weather.DailyWeather{}, nil
}

// A city seen in history but absent from the model's indicator columns is rejected before any
// weather fetch or model call.
func TestUntrainedCityIsUnknownAtWalk(t *testing.T) {
	names := append(append([]string{}, features.BaseColumns...), "Santiago")
	doc, err := json.Marshal(map[string]any{
		"type":     "linear",
		"features": names,
		"params":   map[string]any{"intercept": 7, "coefficients": make([]float64, len(names))},
	})
	require.NoError(t, err)
	a, err := model.Parse(doc)
	require.NoError(t, err)

	vocab, err := resolveVocabulary(a, nil, []string{"Santiago", "Temuco"})
	require.NoError(t, err)

	calls := 0
	predictor := model.PredictorFunc(func(v []float64) (float64, error) {
		calls++
		return a.Predict(v)
	})
	fc := &noWeather{}
	walker := forecast.NewWalker(fc, predictor, features.NewEncoder(vocab), features.NewSchema(a.Features), nil)

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	series := []features.Row{{HistoryRecord: airquality.HistoryRecord{City: "Temuco", Date: day, PM25: 20}}}
	_, err = walker.Walk(context.Background(), series, "Temuco", day.AddDate(0, 0, 2))

	assert.ErrorIs(t, err, forecast.ErrUnknownCity)
	assert.Zero(t, fc.calls)
	assert.Zero(t, calls)
}

func TestBuildProviders(t *testing.T) {
	cfg := &config.AppConfig{WeatherAPIKey: "key", OpenMeteoEnabled: true, ShortRangeDays: 14, ProviderRateLimit: 2, ProviderBurst: 1}
	provs := buildProviders(cfg)
	if assert.Len(t, provs, 2) {
		assert.Equal(t, "weatherapi", provs[0].Name())
		assert.Equal(t, "openmeteo", provs[1].Name())
	}

	assert.Empty(t, buildProviders(&config.AppConfig{}))
}

func TestBuildCacheNone(t *testing.T) {
	c := &components{}
	cache, err := buildCache(&config.AppConfig{WeatherCacheBackend: config.CacheNone}, c)
	assert.NoError(t, err)
	assert.Nil(t, cache)
	assert.Nil(t, c.cleaner)
}
