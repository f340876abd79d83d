package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the forecast service.
type Metrics struct {
	// Forecast requests by outcome (ok, unknown_city, empty_history, weather_fetch, model, error).
	Forecasts *prometheus.CounterVec
	// Simulated days per walk.
	WalkSteps prometheus.Histogram
	// Wall time of a full forecast request.
	ForecastDuration prometheus.Histogram
	// Model invocations.
	Predictions prometheus.Counter

	// Provider fetches by provider and outcome.
	ProviderFetches *prometheus.CounterVec
	// Weather cache lookups by result (hit, miss).
	WeatherCache *prometheus.CounterVec

	// History snapshot refreshes by outcome.
	HistoryRefreshes *prometheus.CounterVec
}

// New creates all collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pm25_forecasts_total",
				Help: "Forecast requests by outcome",
			},
			[]string{"outcome"},
		),
		WalkSteps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pm25_walk_steps",
			Help:    "Number of simulated days per forecast walk",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 14, 30, 60},
		}),
		ForecastDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pm25_forecast_duration_seconds",
			Help:    "Wall time of a forecast request",
			Buckets: prometheus.DefBuckets,
		}),
		Predictions: f.NewCounter(prometheus.CounterOpts{
			Name: "pm25_model_predictions_total",
			Help: "Number of model invocations",
		}),
		ProviderFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weather_provider_fetches_total",
				Help: "Weather provider daily fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		WeatherCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weather_cache_lookups_total",
				Help: "Weather forecast cache lookups by result",
			},
			[]string{"result"},
		),
		HistoryRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_refreshes_total",
				Help: "History snapshot refreshes by outcome",
			},
			[]string{"outcome"},
		),
	}
}
