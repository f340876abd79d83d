package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"github.com/i474232898/pm25-forecast/internal/common"
	"github.com/i474232898/pm25-forecast/internal/weather"
)

// Weather cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type AppConfig struct {
	Port string

	WeatherAPIKey    string
	GeocoderAPIKey   string
	OpenMeteoEnabled bool

	// HTTPTimeout bounds every outbound provider request.
	HTTPTimeout       time.Duration
	ProviderRateLimit float64 // requests per second per provider, 0 = unlimited
	ProviderBurst     int
	// ShortRangeDays is the last day ahead served by the short-range forecast source.
	ShortRangeDays int

	DatabaseURL string
	ModelPath   string
	// ModelGCSAnonymous reads gs:// model artifacts without credentials (public buckets).
	ModelGCSAnonymous bool
	// CityVocabulary overrides the one-hot city list when the model artifact has none.
	CityVocabulary []string

	// Locations pins the country (and so the provider query) of known cities.
	Locations []weather.Location

	// HistoryRefreshInterval controls how often the history snapshot is reloaded.
	HistoryRefreshInterval time.Duration

	WeatherCacheBackend string
	WeatherCacheSize    int
	WeatherCacheTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTelEndpoint     string
	OTelSamplingRate float64
}

// Load reads configuration from environment with sensible defaults.
// Every malformed value is reported, not just the first.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var errs *multierror.Error

	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getenvDefault(key, def))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return d
	}
	float := func(key string, def float64) float64 {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return f
	}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	openMeteo, err := strconv.ParseBool(getenvDefault("OPENMETEO_ENABLED", "false"))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid OPENMETEO_ENABLED: %w", err))
	}
	cfg.OpenMeteoEnabled = openMeteo

	cfg.HTTPTimeout = duration("HTTP_TIMEOUT", "10s")
	cfg.ProviderRateLimit = float("PROVIDER_RATE_LIMIT", 5)
	cfg.ProviderBurst = getenvInt("PROVIDER_BURST", 5)
	cfg.ShortRangeDays = getenvInt("SHORT_RANGE_DAYS", 14)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ModelPath = os.Getenv("MODEL_PATH")
	anonymous, err := strconv.ParseBool(getenvDefault("MODEL_GCS_ANONYMOUS", "false"))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid MODEL_GCS_ANONYMOUS: %w", err))
	}
	cfg.ModelGCSAnonymous = anonymous
	cfg.CityVocabulary = common.SplitList(os.Getenv("CITY_VOCABULARY"))

	locs, err := loadLocations()
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.Locations = locs

	cfg.HistoryRefreshInterval = duration("HISTORY_REFRESH_INTERVAL", "1h")

	cfg.WeatherCacheBackend = getenvDefault("WEATHER_CACHE_BACKEND", CacheMemory)
	cfg.WeatherCacheSize = getenvInt("WEATHER_CACHE_SIZE", 1024)
	cfg.WeatherCacheTTL = duration("WEATHER_CACHE_TTL", "3h")

	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)

	cfg.OTelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTelSamplingRate = float("OTEL_SAMPLING_RATE", 1.0)

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings needed to serve forecasts.
func (c *AppConfig) Validate() error {
	var errs *multierror.Error

	if c.DatabaseURL == "" {
		errs = multierror.Append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.ModelPath == "" {
		errs = multierror.Append(errs, errors.New("MODEL_PATH is required"))
	}
	if c.WeatherAPIKey == "" && !c.OpenMeteoEnabled {
		errs = multierror.Append(errs, errors.New("no weather provider: set WEATHERAPI_API_KEY or OPENMETEO_ENABLED"))
	}
	if c.ShortRangeDays < 1 || c.ShortRangeDays > 14 {
		errs = multierror.Append(errs, fmt.Errorf("SHORT_RANGE_DAYS must be within 1..14, got %d", c.ShortRangeDays))
	}
	if c.HTTPTimeout <= 0 {
		errs = multierror.Append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.ProviderRateLimit < 0 {
		errs = multierror.Append(errs, errors.New("PROVIDER_RATE_LIMIT must not be negative"))
	}
	if c.HistoryRefreshInterval < time.Minute {
		errs = multierror.Append(errs, errors.New("HISTORY_REFRESH_INTERVAL must be at least 1m"))
	}

	switch c.WeatherCacheBackend {
	case CacheMemory:
		if c.WeatherCacheSize <= 0 {
			errs = multierror.Append(errs, errors.New("WEATHER_CACHE_SIZE must be positive"))
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = multierror.Append(errs, errors.New("REDIS_ADDR is required for the redis cache"))
		}
	case CacheNone:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown WEATHER_CACHE_BACKEND %q", c.WeatherCacheBackend))
	}

	if c.OTelSamplingRate < 0 || c.OTelSamplingRate > 1 {
		errs = multierror.Append(errs, fmt.Errorf("OTEL_SAMPLING_RATE must be within [0,1], got %.2f", c.OTelSamplingRate))
	}

	return errs.ErrorOrNil()
}

// loadLocations pairs WEATHER_LOCATION_CITY with WEATHER_LOCATION_COUNTRY. The country list may
// be omitted, in which case cities use weather.DefaultCountry.
func loadLocations() ([]weather.Location, error) {
	cities := common.SplitList(os.Getenv("WEATHER_LOCATION_CITY"))
	countries := common.SplitList(os.Getenv("WEATHER_LOCATION_COUNTRY"))
	if len(countries) > 0 && len(cities) != len(countries) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}

	var locs []weather.Location
	for i := range cities {
		country := weather.DefaultCountry
		if len(countries) > 0 {
			country = countries[i]
		}
		locs = append(locs, weather.Location{
			City:    cities[i],
			Country: country,
		})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
