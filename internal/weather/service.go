package weather

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/i474232898/pm25-forecast/internal/metrics"
)

// DefaultCountry is used for cities that have no configured location.
const DefaultCountry = "CL"

// Service fetches daily weather from every configured provider and aggregates the results.
type Service struct {
	providers []Provider
	cache     Cache
	locations map[string]Location
	metrics   *metrics.Metrics
}

// NewService creates a new Service. cache and m may be nil.
func NewService(providers []Provider, cache Cache, locations []Location, m *metrics.Metrics) *Service {
	locs := make(map[string]Location, len(locations))
	for _, l := range locations {
		locs[l.City] = l
	}
	return &Service{
		providers: providers,
		cache:     cache,
		locations: locs,
		metrics:   m,
	}
}

// Location resolves a city name to its configured Location, defaulting the country.
func (s *Service) Location(city string) Location {
	if l, ok := s.locations[city]; ok {
		return l
	}
	return Location{City: city, Country: DefaultCountry}
}

// GetFutureWeather returns the weather for city on date, which providers serve from their
// history, short-range or long-range sources depending on how far ahead date is.
//
// Providers are queried concurrently and successful readings are averaged. If every provider
// fails, the combined error wraps ErrNoForecast; there is no fallback to guessed values.
func (s *Service) GetFutureWeather(ctx context.Context, city string, date time.Time) (DailyWeather, error) {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	key := CacheKey(city, date)

	if s.cache != nil {
		if day, ok := s.cache.Get(ctx, key); ok {
			s.observeCache("hit")
			return day, nil
		}
		s.observeCache("miss")
	}

	if len(s.providers) == 0 {
		log.Printf("ERROR: No providers available to fetch weather for %s on %s", city, date.Format("2006-01-02"))
		return DailyWeather{}, fmt.Errorf("%w: no weather providers configured", ErrNoForecast)
	}

	loc := s.Location(city)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []ProviderReading
		errs     *multierror.Error
	)

	for _, p := range s.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.FetchDay(ctx, loc, date)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("provider %s fetch failed for %s on %s: %v", p.Name(), loc.Key(), date.Format("2006-01-02"), err)
				s.observeFetch(p.Name(), "error")
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				return
			}
			s.observeFetch(p.Name(), "ok")
			readings = append(readings, r)
		}()
	}

	wg.Wait()

	if len(readings) == 0 {
		return DailyWeather{}, fmt.Errorf("%w for %s on %s: %v", ErrNoForecast, city, date.Format("2006-01-02"), errs.ErrorOrNil())
	}

	// Stable aggregation regardless of which provider answered first.
	sort.Slice(readings, func(i, j int) bool { return readings[i].ProviderName < readings[j].ProviderName })

	day := AggregateReadings(city, date, readings)
	if s.cache != nil {
		s.cache.Set(ctx, key, day)
	}
	return day, nil
}

func (s *Service) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.WeatherCache.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeFetch(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.ProviderFetches.WithLabelValues(provider, outcome).Inc()
	}
}
