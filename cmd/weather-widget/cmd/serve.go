package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-widget/internal/api/http"
	"github.com/i474232898/weather-widget/internal/scheduler"
	"github.com/i474232898/weather-widget/internal/widget"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the widget API",
	Long: `Start the HTTP API. The selected location is refreshed in the background
every REFRESH_INTERVAL; DEFAULT_LOCATION (or --location) is selected at startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "Listen port (overrides PORT)")
	serveCmd.Flags().String("location", "", "Location selected at startup (overrides DEFAULT_LOCATION)")
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetString("port")
	location, _ := cmd.Flags().GetString("location")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port == "" {
		port = cfg.Port
	}
	if location == "" {
		location = cfg.DefaultLocation
	}

	st := newStack(cfg)

	// The widget owns the refresh scheduler and stops it on Close.
	w := widget.NewWithScheduler(st.geocoder, st.service, cfg.RefreshInterval, scheduler.WithMetrics(st.metrics))
	defer w.Close()

	if location != "" {
		selectCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout)
		if _, err := w.SelectQuery(selectCtx, location); err != nil {
			log.Printf("ERROR: default location %q: %v", location, err)
		}
		cancel()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-widget",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-widget",
		})
	})

	httpapi.RegisterRoutes(app, w)
	httpapi.RegisterMetrics(app, st.registry)

	go func() {
		log.Printf("INFO: listening on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}
