package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm25-forecast/internal/weather"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pm25")
	t.Setenv("MODEL_PATH", "model.yaml")
	t.Setenv("WEATHERAPI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 14, cfg.ShortRangeDays)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Hour, cfg.HistoryRefreshInterval)
	assert.Equal(t, CacheMemory, cfg.WeatherCacheBackend)
	assert.Empty(t, cfg.Locations)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLocationsAndVocabulary(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_CITY", "Santiago, Lima")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "CL,PE")
	t.Setenv("CITY_VOCABULARY", "Santiago,,Temuco ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []weather.Location{{City: "Santiago", Country: "CL"}, {City: "Lima", Country: "PE"}}, cfg.Locations)
	assert.Equal(t, []string{"Santiago", "Temuco"}, cfg.CityVocabulary)
}

func TestLoadLocationsDefaultCountry(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_CITY", "Temuco")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []weather.Location{{City: "Temuco", Country: weather.DefaultCountry}}, cfg.Locations)
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("WEATHER_CACHE_TTL", "forever")
	t.Setenv("OTEL_SAMPLING_RATE", "half")
	t.Setenv("WEATHER_LOCATION_CITY", "Santiago,Lima")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "CL")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"HTTP_TIMEOUT", "WEATHER_CACHE_TTL", "OTEL_SAMPLING_RATE", "cities and countries"} {
		assert.ErrorContains(t, err, key)
	}
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{
		ShortRangeDays:         20,
		HTTPTimeout:            time.Second,
		HistoryRefreshInterval: time.Hour,
		WeatherCacheBackend:    "disk",
		OTelSamplingRate:       1,
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, msg := range []string{"DATABASE_URL", "MODEL_PATH", "no weather provider", "SHORT_RANGE_DAYS", "WEATHER_CACHE_BACKEND"} {
		assert.ErrorContains(t, err, msg)
	}

	cfg = &AppConfig{
		DatabaseURL:            "postgres://",
		ModelPath:              "gs://models/pm25.yaml",
		OpenMeteoEnabled:       true,
		ShortRangeDays:         14,
		HTTPTimeout:            time.Second,
		HistoryRefreshInterval: time.Hour,
		WeatherCacheBackend:    CacheRedis,
		RedisAddr:              "redis:6379",
		OTelSamplingRate:       0.5,
	}
	assert.NoError(t, cfg.Validate())
}
