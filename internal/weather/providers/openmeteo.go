package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/pm25-forecast/internal/weather"
)

// GeocodeFunc resolves a location without coordinates to latitude and longitude.
type GeocodeFunc func(loc weather.Location) (lat, lon float64, err error)

// GoogleGeocoder resolves locations through the Google geocoding API.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	geocoder.ApiKey = apiKey
	return func(loc weather.Location) (float64, float64, error) {
		l, err := geocoder.Geocoding(geocoder.Address{City: loc.City, Country: loc.Country})
		if err != nil {
			return 0, 0, err
		}
		return l.Latitude, l.Longitude, nil
	}
}

const openMeteoDaily = "temperature_2m_mean,relative_humidity_2m_mean,wind_speed_10m_max,precipitation_sum,pressure_msl_mean,visibility_mean"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	geocode GeocodeFunc
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	mu     sync.Mutex
	coords map[string][2]float64
}

// NewOpenMeteoProvider creates the provider. geocode may be nil, in which case only
// locations with coordinates can be served.
func NewOpenMeteoProvider(client *http.Client, geocode GeocodeFunc, limiter *rate.Limiter) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		geocode: geocode,
		httpCfg: defaultHTTPConfig(client, limiter),
		circuit: newCircuit("openmeteo"),
		coords:  make(map[string][2]float64),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) resolve(loc weather.Location) (float64, float64, error) {
	if loc.Lat != nil && loc.Lon != nil {
		return *loc.Lat, *loc.Lon, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.coords[loc.Key()]; ok {
		return c[0], c[1], nil
	}
	if p.geocode == nil {
		return 0, 0, fmt.Errorf("openmeteo requires latitude and longitude for %s", loc.Key())
	}
	lat, lon, err := p.geocode(loc)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding %s: %w", loc.Key(), err)
	}
	p.coords[loc.Key()] = [2]float64{lat, lon}
	return lat, lon, nil
}

type openMeteoResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m_mean"`
		Humidity      []*float64 `json:"relative_humidity_2m_mean"`
		WindSpeedMax  []*float64 `json:"wind_speed_10m_max"`
		Precipitation []*float64 `json:"precipitation_sum"`
		Pressure      []*float64 `json:"pressure_msl_mean"`
		Visibility    []*float64 `json:"visibility_mean"`
	} `json:"daily"`
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func (p *OpenMeteoProvider) FetchDay(ctx context.Context, loc weather.Location, date time.Time) (weather.ProviderReading, error) {
	lat, lon, err := p.resolve(loc)
	if err != nil {
		return weather.ProviderReading{}, err
	}

	date = dateOf(date)
	dt := date.Format("2006-01-02")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("daily", openMeteoDaily)
		values.Set("start_date", dt)
		values.Set("end_date", dt)
		values.Set("timezone", "auto")
		// Open-Meteo defaults wind to km/h, matching the history table.
		values.Set("wind_speed_unit", "kmh")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, fmt.Errorf("openmeteo request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderReading{}, fmt.Errorf("openmeteo decode failed: %w", err)
	}

	idx := -1
	for i, t := range payload.Daily.Time {
		if strings.HasPrefix(t, dt) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return weather.ProviderReading{}, fmt.Errorf("%w: openmeteo returned no day for %s", weather.ErrIncompleteReading, dt)
	}

	d := payload.Daily
	fields := map[string]*float64{
		"temperature_2m_mean":       at(d.Temperature, idx),
		"relative_humidity_2m_mean": at(d.Humidity, idx),
		"wind_speed_10m_max":        at(d.WindSpeedMax, idx),
		"precipitation_sum":         at(d.Precipitation, idx),
		"pressure_msl_mean":         at(d.Pressure, idx),
		"visibility_mean":           at(d.Visibility, idx),
	}
	if missing := missingFields(fields); len(missing) > 0 {
		return weather.ProviderReading{}, incomplete(p.name, date, missing)
	}

	return weather.ProviderReading{
		ProviderName:  p.name,
		Source:        SourceForecast,
		Date:          date,
		AvgHumidity:   *d.Humidity[idx],
		AvgTempC:      *d.Temperature[idx],
		AvgVisKm:      *d.Visibility[idx] / 1000, // meters
		MaxWindKph:    *d.WindSpeedMax[idx],
		TotalPrecipMm: *d.Precipitation[idx],
		PressureMb:    *d.Pressure[idx], // hPa == mb
	}, nil
}
