package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/pm25-forecast/internal/airquality"
)

var (
	// ErrNotFound is returned when no history is available for a given city.
	ErrNotFound = errors.New("no history for city")
)

// CityHistory holds the raw weather and PM2.5 rows for one city.
type CityHistory struct {
	Weather      []airquality.WeatherHistory
	Measurements []airquality.Measurement
}

// BulkLoader reads every city's history in one pass.
type BulkLoader interface {
	LoadAll(ctx context.Context) ([]airquality.WeatherHistory, []airquality.Measurement, error)
}

// MemoryStore is a concurrency-safe in-memory snapshot of the history tables.
// Readers always get copies, so a refresh never mutates a slice in use.
type MemoryStore struct {
	mu sync.RWMutex

	// key: city, value: raw history
	data     map[string]*CityHistory
	loadedAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*CityHistory),
	}
}

// ReplaceAll swaps the whole snapshot for the given rows.
func (s *MemoryStore) ReplaceAll(weather []airquality.WeatherHistory, measurements []airquality.Measurement) {
	data := make(map[string]*CityHistory)
	get := func(city string) *CityHistory {
		h, ok := data[city]
		if !ok {
			h = &CityHistory{}
			data[city] = h
		}
		return h
	}
	for _, w := range weather {
		h := get(w.City)
		h.Weather = append(h.Weather, w)
	}
	for _, m := range measurements {
		h := get(m.City)
		h.Measurements = append(h.Measurements, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.loadedAt = time.Now()
}

// Refresh reloads the snapshot from src. On error the previous snapshot is kept.
func (s *MemoryStore) Refresh(ctx context.Context, src BulkLoader) error {
	weather, measurements, err := src.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.ReplaceAll(weather, measurements)
	return nil
}

// LoadHistory returns copies of the raw rows for city.
func (s *MemoryStore) LoadHistory(_ context.Context, city string) ([]airquality.WeatherHistory, []airquality.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[city]
	if !ok {
		return nil, nil, ErrNotFound
	}

	weather := make([]airquality.WeatherHistory, len(h.Weather))
	copy(weather, h.Weather)
	measurements := make([]airquality.Measurement, len(h.Measurements))
	copy(measurements, h.Measurements)
	return weather, measurements, nil
}

// Cities returns the cities present in the snapshot, sorted.
func (s *MemoryStore) Cities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cities := make([]string, 0, len(s.data))
	for city := range s.data {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// LoadedAt is when the snapshot was last replaced; zero if never.
func (s *MemoryStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
