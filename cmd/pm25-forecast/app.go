package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/i474232898/pm25-forecast/internal/config"
	"github.com/i474232898/pm25-forecast/internal/features"
	"github.com/i474232898/pm25-forecast/internal/forecast"
	"github.com/i474232898/pm25-forecast/internal/metrics"
	"github.com/i474232898/pm25-forecast/internal/model"
	"github.com/i474232898/pm25-forecast/internal/scheduler"
	"github.com/i474232898/pm25-forecast/internal/store"
	"github.com/i474232898/pm25-forecast/internal/weather"
	"github.com/i474232898/pm25-forecast/internal/weather/providers"
)

// components is everything a forecast needs, wired from configuration.
type components struct {
	db        *store.Postgres
	snapshot  *store.MemoryStore
	cleaner   scheduler.CacheCleaner
	metrics   *metrics.Metrics
	forecasts *forecast.Service

	closers []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("ERROR: close: %v", err)
		}
	}
}

func buildComponents(ctx context.Context, cfg *config.AppConfig, reg prometheus.Registerer) (*components, error) {
	c := &components{metrics: metrics.New(reg)}

	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	c.db = db
	c.closers = append(c.closers, db.Close)

	c.snapshot = store.NewMemoryStore()
	if err := c.snapshot.Refresh(ctx, db); err != nil {
		c.Close()
		return nil, fmt.Errorf("initial history load: %w", err)
	}

	var gcsOpts []option.ClientOption
	if cfg.ModelGCSAnonymous {
		gcsOpts = append(gcsOpts, option.WithoutAuthentication())
	}
	artifact, err := model.Load(ctx, cfg.ModelPath, gcsOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}

	vocabulary, err := resolveVocabulary(artifact, cfg.CityVocabulary, c.snapshot.Cities())
	if err != nil {
		c.Close()
		return nil, err
	}
	encoder := features.NewEncoder(vocabulary)
	schema := features.NewSchema(artifact.Features)
	log.Printf("INFO: loaded %s model with %d features and %d cities", artifact.Type, schema.Len(), len(encoder.Vocabulary()))

	cache, err := buildCache(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	weatherSvc := weather.NewService(buildProviders(cfg), cache, cfg.Locations, c.metrics)
	walker := forecast.NewWalker(weatherSvc, artifact, encoder, schema, c.metrics)
	c.forecasts = forecast.NewService(c.snapshot, walker, c.metrics)
	return c, nil
}

// resolveVocabulary prefers the artifact's city list, then the configured one, then the cities
// present in history. Cities without an indicator column in the model features are dropped, so
// they are rejected as unknown instead of reaching the model.
func resolveVocabulary(artifact *model.Artifact, configured, historical []string) ([]string, error) {
	if len(artifact.Cities) > 0 {
		return artifact.Cities, nil
	}

	candidates, source := configured, "CITY_VOCABULARY"
	if len(candidates) == 0 {
		candidates, source = historical, "history"
		log.Printf("INFO: model artifact has no city list; using the %d cities in history", len(historical))
	}

	columns := make(map[string]struct{}, len(artifact.Features))
	for _, name := range artifact.Features {
		columns[name] = struct{}{}
	}
	var vocabulary, dropped []string
	for _, city := range candidates {
		if _, ok := columns[city]; ok {
			vocabulary = append(vocabulary, city)
		} else {
			dropped = append(dropped, city)
		}
	}
	if len(dropped) > 0 {
		log.Printf("INFO: dropping cities from %s with no model feature column: %v", source, dropped)
	}
	if len(vocabulary) == 0 {
		return nil, fmt.Errorf("no city from %s has a feature column in the model", source)
	}
	return vocabulary, nil
}

func buildCache(cfg *config.AppConfig, c *components) (weather.Cache, error) {
	switch cfg.WeatherCacheBackend {
	case config.CacheRedis:
		rc, err := weather.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.WeatherCacheTTL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rc.Close)
		return rc, nil
	case config.CacheMemory:
		mc, err := weather.NewMemoryCache(cfg.WeatherCacheSize, cfg.WeatherCacheTTL)
		if err != nil {
			return nil, err
		}
		c.cleaner = mc
		return mc, nil
	default:
		return nil, nil
	}
}

func buildProviders(cfg *config.AppConfig) []weather.Provider {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	limiter := func() *rate.Limiter {
		if cfg.ProviderRateLimit <= 0 {
			return nil
		}
		return rate.NewLimiter(rate.Limit(cfg.ProviderRateLimit), cfg.ProviderBurst)
	}

	var provs []weather.Provider
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.ShortRangeDays, limiter()))
	}
	if cfg.OpenMeteoEnabled {
		// Open-Meteo does not require an API key, but geocoding requires a Google API key.
		var geocode providers.GeocodeFunc
		if cfg.GeocoderAPIKey != "" {
			geocode = providers.GoogleGeocoder(cfg.GeocoderAPIKey)
		}
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient, geocode, limiter()))
	}
	return provs
}
