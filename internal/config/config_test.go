package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NODE_ID", "")
	t.Setenv("WEATHER_LOCATION_CITY", "")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.NodeID)
	assert.Equal(t, ":7070", cfg.RelayAddr)
	assert.Equal(t, "ws://localhost:7070/ws", cfg.RelayURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, weather.UnitsMetric, cfg.Units)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 30*time.Second, cfg.SyncPeerTimeout)
	assert.Equal(t, 30*time.Second, cfg.ListenerConnectTimeout)
	assert.Equal(t, time.Minute, cfg.RenderInterval)
	assert.False(t, cfg.HasLocation())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NODE_ID", "watch-1")
	t.Setenv("NODE_NAME", "Wrist")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_DEVELOPMENT", "true")
	t.Setenv("WEATHER_LOCATION_CITY", " Mountain View ")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "US")
	t.Setenv("UNITS", "imperial")
	t.Setenv("SYNC_PEER_TIMEOUT", "5s")
	t.Setenv("WEATHER_LOCATION_LAT", "37.386")
	t.Setenv("WEATHER_LOCATION_LON", "-122.084")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "watch-1", cfg.NodeID)
	assert.Equal(t, "Wrist", cfg.NodeName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogDevelopment)
	assert.Equal(t, "Mountain View", cfg.Location.City)
	assert.Equal(t, "US", cfg.Location.Country)
	require.NotNil(t, cfg.Location.Lat)
	require.NotNil(t, cfg.Location.Lon)
	assert.InDelta(t, 37.386, *cfg.Location.Lat, 1e-9)
	assert.InDelta(t, -122.084, *cfg.Location.Lon, 1e-9)
	assert.Equal(t, weather.UnitsImperial, cfg.Units)
	assert.Equal(t, 5*time.Second, cfg.SyncPeerTimeout)
	assert.True(t, cfg.HasLocation())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":   {"FETCH_INTERVAL", "soon"},
		"short interval": {"FETCH_INTERVAL", "10s"},
		"units":          {"UNITS", "kelvin"},
		"log level":      {"LOG_LEVEL", "loud"},
		"relay url":      {"RELAY_URL", "not a url"},
		"port":           {"PORT", "http"},
		"latitude":       {"WEATHER_LOCATION_LAT", "north"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, _, err := Load()
			assert.Error(t, err)
		})
	}
}
