package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm25-forecast/internal/airquality"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func weatherRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"ds_city", "dt_date", "qt_avg_humidity", "qt_avg_temp_c", "qt_avg_vis_km", "qt_max_wind_kph", "qt_total_precip_mm", "qt_pressure_mb"})
}

func measurementRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id_sensor", "ds_city", "dt_date_from", "dt_date_to", "qt_pm25"})
}

func TestPostgresLoadHistory(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery(weatherByCityQuery).WithArgs("Santiago").WillReturnRows(
		weatherRows().
			AddRow("Santiago", day(1).Add(3*time.Hour), 50.0, 20.0, 10.0, 12.0, 0.0, 1012.0).
			AddRow("Santiago", day(2), nil, 21.0, 10.0, 12.0, 0.0, 1012.0),
	)
	mock.ExpectQuery(measurementByCityQuery).WithArgs("Santiago").WillReturnRows(
		measurementRows().
			AddRow(int64(7), "Santiago", day(1), day(1).Add(time.Hour), 10.0).
			AddRow(int64(8), "Santiago", day(1), day(1).Add(time.Hour), nil),
	)

	weather, measurements, err := pg.LoadHistory(context.Background(), "Santiago")
	require.NoError(t, err)
	require.Len(t, weather, 1)
	assert.Equal(t, day(1), weather[0].Date)
	assert.InDelta(t, 1012.0, weather[0].PressureMb, 1e-9)
	require.Len(t, measurements, 1)
	assert.Equal(t, int64(7), measurements[0].SensorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadHistoryUnknownCity(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(weatherByCityQuery).WithArgs("Atlantis").WillReturnRows(weatherRows())
	mock.ExpectQuery(measurementByCityQuery).WithArgs("Atlantis").WillReturnRows(measurementRows())

	_, _, err := pg.LoadHistory(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresQueryError(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(weatherAllQuery).WillReturnError(errors.New("connection reset"))

	_, _, err := pg.LoadAll(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestMemoryStoreRefreshFromPostgres(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(weatherAllQuery).WillReturnRows(
		weatherRows().
			AddRow("Santiago", day(1), 50.0, 20.0, 10.0, 12.0, 0.0, 1012.0).
			AddRow("Temuco", day(1), 80.0, 12.0, 8.0, 20.0, 4.0, 1008.0),
	)
	mock.ExpectQuery(measurementAllQuery).WillReturnRows(
		measurementRows().AddRow(int64(1), "Temuco", day(1), day(1), 40.0),
	)

	s := NewMemoryStore()
	assert.True(t, s.LoadedAt().IsZero())
	require.NoError(t, s.Refresh(context.Background(), pg))

	assert.Equal(t, []string{"Santiago", "Temuco"}, s.Cities())
	assert.False(t, s.LoadedAt().IsZero())

	weather, measurements, err := s.LoadHistory(context.Background(), "Temuco")
	require.NoError(t, err)
	assert.Len(t, weather, 1)
	assert.Len(t, measurements, 1)

	_, _, err = s.LoadHistory(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingLoader struct{}

func (failingLoader) LoadAll(context.Context) ([]airquality.WeatherHistory, []airquality.Measurement, error) {
	return nil, nil, errors.New("db down")
}

func TestMemoryStoreKeepsSnapshotOnFailedRefresh(t *testing.T) {
	s := NewMemoryStore()
	s.ReplaceAll([]airquality.WeatherHistory{{City: "Santiago", Date: day(1)}}, nil)

	assert.Error(t, s.Refresh(context.Background(), failingLoader{}))
	assert.Equal(t, []string{"Santiago"}, s.Cities())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	s.ReplaceAll([]airquality.WeatherHistory{{City: "Santiago", Date: day(1), AvgTempC: 20}}, nil)

	weather, _, err := s.LoadHistory(context.Background(), "Santiago")
	require.NoError(t, err)
	weather[0].AvgTempC = 99

	again, _, err := s.LoadHistory(context.Background(), "Santiago")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, again[0].AvgTempC, 1e-9)
}
