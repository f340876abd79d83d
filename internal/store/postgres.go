package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/i474232898/pm25-forecast/internal/airquality"
)

const (
	weatherColumns     = `ds_city, dt_date, qt_avg_humidity, qt_avg_temp_c, qt_avg_vis_km, qt_max_wind_kph, qt_total_precip_mm, qt_pressure_mb`
	measurementColumns = `id_sensor, ds_city, dt_date_from, dt_date_to, qt_pm25`

	weatherByCityQuery     = `SELECT ` + weatherColumns + ` FROM tbl_weather_history WHERE ds_city = $1 ORDER BY dt_date`
	weatherAllQuery        = `SELECT ` + weatherColumns + ` FROM tbl_weather_history ORDER BY ds_city, dt_date`
	measurementByCityQuery = `SELECT ` + measurementColumns + ` FROM tbl_measurements WHERE ds_city = $1 ORDER BY dt_date_from`
	measurementAllQuery    = `SELECT ` + measurementColumns + ` FROM tbl_measurements ORDER BY ds_city, dt_date_from`
)

// Postgres reads history from tbl_weather_history and tbl_measurements.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the pool for migrations.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// LoadHistory returns the raw rows for one city. ErrNotFound is returned when the city has
// neither weather nor measurements.
func (p *Postgres) LoadHistory(ctx context.Context, city string) ([]airquality.WeatherHistory, []airquality.Measurement, error) {
	weather, err := p.queryWeather(ctx, weatherByCityQuery, city)
	if err != nil {
		return nil, nil, err
	}
	measurements, err := p.queryMeasurements(ctx, measurementByCityQuery, city)
	if err != nil {
		return nil, nil, err
	}
	if len(weather) == 0 && len(measurements) == 0 {
		return nil, nil, ErrNotFound
	}
	return weather, measurements, nil
}

// LoadAll returns every city's raw rows.
func (p *Postgres) LoadAll(ctx context.Context) ([]airquality.WeatherHistory, []airquality.Measurement, error) {
	weather, err := p.queryWeather(ctx, weatherAllQuery)
	if err != nil {
		return nil, nil, err
	}
	measurements, err := p.queryMeasurements(ctx, measurementAllQuery)
	if err != nil {
		return nil, nil, err
	}
	return weather, measurements, nil
}

func (p *Postgres) queryWeather(ctx context.Context, query string, args ...any) ([]airquality.WeatherHistory, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query weather history: %w", err)
	}
	defer rows.Close()

	var out []airquality.WeatherHistory
	skipped := 0
	for rows.Next() {
		var w airquality.WeatherHistory
		var hum, temp, vis, wind, precip, pressure sql.NullFloat64
		if err := rows.Scan(&w.City, &w.Date, &hum, &temp, &vis, &wind, &precip, &pressure); err != nil {
			return nil, fmt.Errorf("scan weather history: %w", err)
		}
		if !(hum.Valid && temp.Valid && vis.Valid && wind.Valid && precip.Valid && pressure.Valid) {
			skipped++
			continue
		}
		w.Date = airquality.DateOf(w.Date)
		w.AvgHumidity, w.AvgTempC, w.AvgVisKm = hum.Float64, temp.Float64, vis.Float64
		w.MaxWindKph, w.TotalPrecipMm, w.PressureMb = wind.Float64, precip.Float64, pressure.Float64
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather history: %w", err)
	}
	if skipped > 0 {
		log.Printf("DEBUG: skipped %d weather history rows with null metrics", skipped)
	}
	return out, nil
}

func (p *Postgres) queryMeasurements(ctx context.Context, query string, args ...any) ([]airquality.Measurement, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []airquality.Measurement
	skipped := 0
	for rows.Next() {
		var (
			m    airquality.Measurement
			pm25 sql.NullFloat64
		)
		if err := rows.Scan(&m.SensorID, &m.City, &m.DateFrom, &m.DateTo, &pm25); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		if !pm25.Valid {
			skipped++
			continue
		}
		m.PM25 = pm25.Float64
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	if skipped > 0 {
		log.Printf("DEBUG: skipped %d measurements with null pm25", skipped)
	}
	return out, nil
}
