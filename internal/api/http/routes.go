package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-widget/internal/scheduler"
	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/widget"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, w *widget.Widget) {
	v1 := app.Group("/api/v1")

	v1.Get("/geocode", func(c *fiber.Ctx) error {
		q, err := parseLookupQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := w.Geocoder().Geocode(c.UserContext(), q.Q)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(res)
	})

	v1.Get("/geocode/search", func(c *fiber.Ctx) error {
		q, err := parseLookupQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := w.Geocoder().Search(c.UserContext(), q.Q)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"query":   q.Q,
			"results": results,
		})
	})

	v1.Get("/selection", func(c *fiber.Ctx) error {
		sel, ok := w.Selection()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no location selected")
		}
		return c.JSON(sel)
	})

	v1.Post("/selection", func(c *fiber.Ctx) error {
		var req selectionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := req.check(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var (
			sel widget.Selection
			err error
		)
		if req.Query != "" {
			sel, err = w.SelectQuery(c.UserContext(), req.Query)
		} else {
			sel, err = w.SelectCoordinates(req.Label, weather.Coordinates{Lat: *req.Lat, Lon: *req.Lon})
		}
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sel)
	})

	v1.Delete("/selection", func(c *fiber.Ctx) error {
		w.ClearSelection()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		unit, err := weather.ParseUnit(c.Query("unit"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(w.View(unit))
	})

	v1.Get("/weather/state", func(c *fiber.Ctx) error {
		return c.JSON(w.Service().State())
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		unit, err := weather.ParseUnit(c.Query("unit"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		sel, ok := w.Selection()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "no location selected")
		}

		coords := sel.Coordinates
		if _, err := w.Service().FetchWeather(c.UserContext(), &coords); err != nil {
			return toFiberError(err)
		}
		return c.JSON(w.View(unit))
	})

	v1.Get("/weather/city", func(c *fiber.Ctx) error {
		q := cityQuery{
			City: strings.TrimSpace(c.Query("city")),
			Lang: c.Query("lang"),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, err := w.Service().FetchWeatherByCity(c.UserContext(), q.City, q.Lang)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(snap)
	})

	v1.Get("/timezone/label", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"label": timezoneLabel(c.Query("offset")),
		})
	})
}

// RegisterMetrics exposes g in the Prometheus text format at /metrics.
func RegisterMetrics(app *fiber.App, g prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
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

// toFiberError maps domain errors to HTTP statuses.
func toFiberError(err error) error {
	if errors.Is(err, scheduler.ErrStopped) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	switch weather.KindOf(err) {
	case weather.KindValidation:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case weather.KindNotFound:
		return fiber.NewError(fiber.StatusNotFound, widget.MsgNotFound)
	case weather.KindTimeout:
		return fiber.NewError(fiber.StatusGatewayTimeout, widget.MsgUnavailable)
	default:
		return fiber.NewError(fiber.StatusBadGateway, widget.MsgUnavailable)
	}
}

// lookupQuery holds the free-text or postal code query parameter.
type lookupQuery struct {
	Q string `validate:"required,max=200"`
}

func parseLookupQuery(c *fiber.Ctx) (lookupQuery, error) {
	q := lookupQuery{Q: strings.TrimSpace(c.Query("q"))}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

type cityQuery struct {
	City string `validate:"required,max=200"`
	Lang string `validate:"omitempty,bcp47_language_tag"`
}

// selectionRequest selects either a query or an explicit coordinate pair.
type selectionRequest struct {
	Query string   `json:"query" validate:"omitempty,max=200"`
	Label string   `json:"label" validate:"omitempty,max=200"`
	Lat   *float64 `json:"lat" validate:"required_with=Lon,omitempty,latitude"`
	Lon   *float64 `json:"lon" validate:"required_with=Lat,omitempty,longitude"`
}

func (r *selectionRequest) check() error {
	r.Query = strings.TrimSpace(r.Query)
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Query == "" && (r.Lat == nil || r.Lon == nil) {
		return errors.New("either query or lat and lon are required")
	}
	return nil
}

// timezoneLabel formats an offset in seconds; absent or non-numeric input
// yields the unknown label.
func timezoneLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return weather.FormatTimezone(nil)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return weather.UnknownTimezone
	}
	return weather.FormatOffsetSeconds(v)
}
