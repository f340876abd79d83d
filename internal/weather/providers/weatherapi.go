package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/pm25-forecast/internal/weather"
)

// WeatherAPI sources, selected by how far the requested day is from today.
const (
	SourceHistory  = "history"
	SourceForecast = "forecast"
	SourceFuture   = "future"
)

// DefaultShortRangeDays is the farthest day ahead served by forecast.json.
const DefaultShortRangeDays = 14

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name           string
	apiKey         string
	baseURL        string
	shortRangeDays int
	now            func() time.Time
	httpCfg        HTTPClientConfig
	circuit        *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, shortRangeDays int, limiter *rate.Limiter) *WeatherAPIProvider {
	if shortRangeDays <= 0 {
		shortRangeDays = DefaultShortRangeDays
	}
	return &WeatherAPIProvider{
		name:           "weatherapi",
		apiKey:         apiKey,
		baseURL:        "https://api.weatherapi.com/v1",
		shortRangeDays: shortRangeDays,
		now:            time.Now,
		httpCfg:        defaultHTTPConfig(client, limiter),
		circuit:        newCircuit("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

// sourceFor picks the endpoint for date and the number of days it lies ahead of today.
func (p *WeatherAPIProvider) sourceFor(date time.Time) (string, int) {
	today := dateOf(p.now())
	daysAhead := int(dateOf(date).Sub(today).Hours() / 24)
	switch {
	case daysAhead < 0:
		return SourceHistory, daysAhead
	case daysAhead <= p.shortRangeDays:
		return SourceForecast, daysAhead
	default:
		return SourceFuture, daysAhead
	}
}

type weatherAPIResponse struct {
	Forecast struct {
		Forecastday []weatherAPIDay `json:"forecastday"`
	} `json:"forecast"`
}

type weatherAPIDay struct {
	Date string `json:"date"`
	Day  struct {
		AvgTempC      *float64 `json:"avgtemp_c"`
		AvgHumidity   *float64 `json:"avghumidity"`
		MaxWindKph    *float64 `json:"maxwind_kph"`
		AvgVisKm      *float64 `json:"avgvis_km"`
		TotalPrecipMm *float64 `json:"totalprecip_mm"`
	} `json:"day"`
	Hour []struct {
		PressureMb *float64 `json:"pressure_mb"`
	} `json:"hour"`
}

// meanPressure averages the hourly pressure readings; the daily summary carries none.
func (d weatherAPIDay) meanPressure() *float64 {
	var sum float64
	var n int
	for _, h := range d.Hour {
		if h.PressureMb != nil {
			sum += *h.PressureMb
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func (p *WeatherAPIProvider) FetchDay(ctx context.Context, loc weather.Location, date time.Time) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, fmt.Errorf("weatherapi api key is not configured")
	}

	date = dateOf(date)
	dt := date.Format("2006-01-02")
	source, daysAhead := p.sourceFor(date)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		if loc.Lat != nil && loc.Lon != nil {
			values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
		} else {
			q := loc.City
			if loc.Country != "" {
				q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
			}
			values.Set("q", q)
		}
		values.Set("dt", dt)
		if source == SourceForecast {
			values.Set("days", strconv.Itoa(daysAhead+1))
		}

		u := fmt.Sprintf("%s/%s.json?%s", p.baseURL, source, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, fmt.Errorf("weatherapi %s request failed: %w", source, err)
	}
	defer resp.Body.Close()

	var payload weatherAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderReading{}, fmt.Errorf("weatherapi decode failed: %w", err)
	}

	day, ok := pickDay(payload.Forecast.Forecastday, dt)
	if !ok {
		return weather.ProviderReading{}, fmt.Errorf("%w: weatherapi returned no day for %s", weather.ErrIncompleteReading, dt)
	}

	pressure := day.meanPressure()
	fields := map[string]*float64{
		"avgtemp_c":      day.Day.AvgTempC,
		"avghumidity":    day.Day.AvgHumidity,
		"maxwind_kph":    day.Day.MaxWindKph,
		"avgvis_km":      day.Day.AvgVisKm,
		"totalprecip_mm": day.Day.TotalPrecipMm,
		"pressure_mb":    pressure,
	}
	if missing := missingFields(fields); len(missing) > 0 {
		return weather.ProviderReading{}, incomplete(p.name, date, missing)
	}

	return weather.ProviderReading{
		ProviderName:  p.name,
		Source:        source,
		Date:          date,
		AvgHumidity:   *day.Day.AvgHumidity,
		AvgTempC:      *day.Day.AvgTempC,
		AvgVisKm:      *day.Day.AvgVisKm,
		MaxWindKph:    *day.Day.MaxWindKph,
		TotalPrecipMm: *day.Day.TotalPrecipMm,
		PressureMb:    *pressure,
	}, nil
}

// pickDay returns the entry for dt. forecast.json lists every day up to dt.
func pickDay(days []weatherAPIDay, dt string) (weatherAPIDay, bool) {
	for _, d := range days {
		if d.Date == dt {
			return d, true
		}
	}
	if len(days) == 1 && days[0].Date == "" {
		return days[0], true
	}
	return weatherAPIDay{}, false
}
