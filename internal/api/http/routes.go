package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

// NewApp builds the Fiber app serving the read API, with CORS open to any origin.
func NewApp(service *weather.Service, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-data-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{Output: log}))
	app.Use(recover.New())
	app.Use(cors.New())

	RegisterRoutes(app, service, log)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, log zerolog.Logger) {
	api := app.Group("/api")

	// Liveness only; never touches the store.
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	api.Get("/latest", func(c *fiber.Ctx) error {
		m, err := service.GetLatest(c.UserContext())
		if err != nil {
			return storeError(log, err, "failed to fetch latest measurement")
		}
		// nil encodes as null
		return c.JSON(m)
	})

	api.Get("/hourly", func(c *fiber.Ctx) error {
		hours := weather.NormalizeHours(c.Query("hours"))

		window, err := service.GetHourly(c.UserContext(), hours)
		if err != nil {
			return storeError(log, err, "failed to fetch hourly series")
		}
		return c.JSON(window)
	})
}

func storeError(log zerolog.Logger, err error, message string) error {
	log.Error().Err(err).Msg(message)
	if errors.Is(err, weather.ErrStorageUnavailable) {
		return fiber.NewError(fiber.StatusServiceUnavailable, message+": storage unavailable")
	}
	return fiber.NewError(fiber.StatusInternalServerError, message)
}
