package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/pm25-forecast/internal/forecast"
)

var validate = validator.New()

// Forecaster is the forecast capability the handlers depend on.
type Forecaster interface {
	Forecast(ctx context.Context, city string, date time.Time) (forecast.Prediction, error)
	Cities() []string
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Centralized error response
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterOps adds the health and Prometheus endpoints.
func RegisterOps(app *fiber.App, service string, gatherer prometheus.Gatherer) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": service,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Forecaster) {
	v1 := app.Group("/api/v1")

	v1.Get("/forecast/pm25", func(c *fiber.Ctx) error {
		p, err := runForecast(c, svc)
		if err != nil {
			return err
		}
		return c.JSON(p)
	})

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"cities": svc.Cities()})
	})

	// Legacy endpoint: a one-element array of the final row, keyed like the history tables.
	app.Get("/forecast_pm25", func(c *fiber.Ctx) error {
		p, err := runForecast(c, svc)
		if err != nil {
			return err
		}

		row := fiber.Map{}
		for name, v := range p.Features {
			row[name] = v
		}
		row["ds_city"] = p.City
		row["dt_date"] = p.Date
		row["qt_pm25"] = p.PredictedPM25
		return c.JSON([]fiber.Map{row})
	})
}

// forecastQuery holds query parameters for the forecast endpoints.
type forecastQuery struct {
	City string `validate:"required"`
	Date string `validate:"required,datetime=2006-01-02"`
}

func runForecast(c *fiber.Ctx, svc Forecaster) (forecast.Prediction, error) {
	q := forecastQuery{
		City: c.Query("city"),
		Date: c.Query("date"),
	}
	if err := validate.Struct(q); err != nil {
		return forecast.Prediction{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	date, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return forecast.Prediction{}, fiber.NewError(fiber.StatusBadRequest, "invalid date; use YYYY-MM-DD")
	}

	p, err := svc.Forecast(c.UserContext(), q.City, date)
	if err != nil {
		return forecast.Prediction{}, forecastError(err)
	}
	return p, nil
}

func forecastError(err error) error {
	switch {
	case errors.Is(err, forecast.ErrUnknownCity), errors.Is(err, forecast.ErrEmptyHistory):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, forecast.ErrForecastFetch):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		return fiber.NewError(fiber.StatusRequestTimeout, "request canceled")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute forecast")
	}
}
