package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/config"
	"github.com/i474232898/sunshine-wear/internal/datalayer"
	"github.com/i474232898/sunshine-wear/internal/store"
	"github.com/i474232898/sunshine-wear/internal/weather"
	"github.com/i474232898/sunshine-wear/internal/weather/providers"
)

const shutdownTimeout = 10 * time.Second

type closableStore interface {
	weather.Store
	Close() error
}

// openStore opens the SQLite preference store, or an in-memory one when no path is set.
func openStore(cfg *config.AppConfig, logger *zap.Logger) (closableStore, error) {
	if cfg.StorePath == "" {
		logger.Info("using in-memory weather store")
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLite(cfg.StorePath, logger)
}

// buildProviders creates the upstream providers that have what they need to run.
func buildProviders(cfg *config.AppConfig, logger *zap.Logger) []weather.Provider {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.Units))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.Units))
	}

	// Open-Meteo needs no key but needs coordinates, configured or geocoded.
	hasCoords := cfg.Location.Lat != nil && cfg.Location.Lon != nil
	if hasCoords || cfg.GeocoderAPIKey != "" {
		var geocode providers.Geocoder
		if cfg.GeocoderAPIKey != "" {
			geocode = providers.GoogleGeocoder(cfg.GeocoderAPIKey)
		}
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient, cfg.Units, geocode))
	}

	names := make([]string, 0, len(provs))
	for _, p := range provs {
		names = append(names, p.Name())
	}
	logger.Info("weather providers configured", zap.Strings("providers", names))
	return provs
}

func localNode(cfg *config.AppConfig) datalayer.Node {
	return datalayer.Node{ID: cfg.NodeID, DisplayName: cfg.NodeName}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// serveFiber runs app on port until ctx is done, then shuts it down gracefully.
func serveFiber(ctx context.Context, app *fiber.App, port string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("port", port))
		errCh <- app.Listen(":" + port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}
