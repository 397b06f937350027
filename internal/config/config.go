package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

type AppConfig struct {
	LogLevel       string `validate:"oneof=debug info warn warning error"`
	LogDevelopment bool

	// Data layer identity and relay endpoints.
	NodeID    string `validate:"required"`
	NodeName  string
	RelayAddr string `validate:"required"`
	RelayURL  string `validate:"required,url"`

	Port string `validate:"required,numeric"`

	// StorePath is the SQLite preference file; empty keeps the store in memory.
	StorePath string

	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// Location the phone fetches weather for.
	Location weather.Location
	Units    weather.Units `validate:"oneof=metric imperial"`

	// FetchInterval controls how often the phone fetches and pushes.
	FetchInterval time.Duration `validate:"gte=1m"`
	HTTPTimeout   time.Duration `validate:"gt=0"`

	SyncPeerTimeout        time.Duration `validate:"gt=0"`
	ListenerConnectTimeout time.Duration `validate:"gt=0"`

	RenderInterval time.Duration `validate:"gte=1s"`
	// FramePath receives the latest watchface PNG; empty only logs frames.
	FramePath string
}

// Load reads configuration from .env and the environment with sensible defaults.
// It returns whether a .env file was read so the caller can log it.
func Load() (*AppConfig, bool, error) {
	dotenv := godotenv.Load() == nil

	cfg := &AppConfig{
		LogLevel:       strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogDevelopment: getenvBool("LOG_DEVELOPMENT", false),

		NodeID:    getenvDefault("NODE_ID", uuid.NewString()),
		NodeName:  os.Getenv("NODE_NAME"),
		RelayAddr: getenvDefault("RELAY_ADDR", ":7070"),
		RelayURL:  getenvDefault("RELAY_URL", "ws://localhost:7070/ws"),

		Port:      getenvDefault("PORT", "8080"),
		StorePath: os.Getenv("STORE_PATH"),

		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),
		GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),

		Location: weather.Location{
			City:    strings.TrimSpace(os.Getenv("WEATHER_LOCATION_CITY")),
			Country: strings.TrimSpace(os.Getenv("WEATHER_LOCATION_COUNTRY")),
		},
		Units:     weather.Units(strings.ToLower(getenvDefault("UNITS", string(weather.UnitsMetric)))),
		FramePath: os.Getenv("FRAME_PATH"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"FETCH_INTERVAL", "15m", &cfg.FetchInterval},
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"SYNC_PEER_TIMEOUT", "30s", &cfg.SyncPeerTimeout},
		{"LISTENER_CONNECT_TIMEOUT", "30s", &cfg.ListenerConnectTimeout},
		{"RENDER_INTERVAL", "1m", &cfg.RenderInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, dotenv, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = v
	}

	for _, c := range []struct {
		key  string
		dest **float64
	}{
		{"WEATHER_LOCATION_LAT", &cfg.Location.Lat},
		{"WEATHER_LOCATION_LON", &cfg.Location.Lon},
	} {
		v := os.Getenv(c.key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, dotenv, fmt.Errorf("invalid %s: %w", c.key, err)
		}
		*c.dest = &f
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, dotenv, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, dotenv, nil
}

// HasLocation reports whether a city to fetch weather for was configured.
func (c *AppConfig) HasLocation() bool {
	return c.Location.City != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
