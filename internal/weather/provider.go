package weather

import (
	"context"
	"time"
)

// ProviderReading represents a single provider's normalized daily reading
// that can be aggregated into a Snapshot.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time

	ConditionCode int
	HighTemp      float64
	LowTemp       float64
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (ProviderReading, error)
}

// Store is the per-device Weather State Store. Replace swaps all four fields at once,
// so a reader never observes a mix of two snapshots.
type Store interface {
	// Load returns the stored snapshot, or DefaultSnapshot values for missing keys.
	Load(ctx context.Context) (Snapshot, error)
	Replace(ctx context.Context, s Snapshot) error

	// Watch registers fn to run after every successful Replace. Concurrent writers may have
	// their notifications delivered out of order; Load is authoritative. The returned func
	// unregisters it.
	Watch(fn func(Snapshot)) (cancel func())
}
