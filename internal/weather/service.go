package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoReadings is returned when every provider failed; the stored snapshot is left as is.
var ErrNoReadings = errors.New("no successful provider readings")

// Service orchestrates fetching from multiple providers and persisting the phone's snapshot.
type Service struct {
	store     Store
	providers []Provider
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, providers []Provider, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		providers: providers,
		logger:    logger.Named("weather"),
		now:       time.Now,
	}
}

// FetchAndStore fetches data from all providers concurrently for the given location,
// aggregates successful readings, and replaces the stored snapshot.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) (Snapshot, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []ProviderReading
	)

	s.logger.Debug("fetching weather", zap.String("location", loc.Key()), zap.Int("providers", len(s.providers)))
	if len(s.providers) == 0 {
		return Snapshot{}, fmt.Errorf("no weather providers configured")
	}

	for _, p := range s.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.Fetch(ctx, loc)
			if err != nil {
				// Log and continue; we want partial success when possible.
				s.logger.Warn("provider fetch failed",
					zap.String("provider", p.Name()),
					zap.String("location", loc.Key()),
					zap.Error(err))
				return
			}

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(readings) == 0 {
		s.logger.Warn("keeping last good snapshot", zap.String("location", loc.Key()))
		return Snapshot{}, ErrNoReadings
	}

	snapshot := AggregateReadings(readings, s.now())
	if err := s.store.Replace(ctx, snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}

	s.logger.Info("weather snapshot stored",
		zap.String("location", loc.Key()),
		zap.Int("readings", len(readings)),
		zap.Int("condition", snapshot.ConditionCode),
		zap.String("high", snapshot.HighTemp),
		zap.String("low", snapshot.LowTemp))
	return snapshot, nil
}

// Current delegates to the underlying store.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	return s.store.Load(ctx)
}

// Update replaces the stored snapshot with one supplied from outside the provider pipeline.
// An empty LastUpdated is stamped with the current time.
func (s *Service) Update(ctx context.Context, snapshot Snapshot) (Snapshot, error) {
	if snapshot.LastUpdated == "" {
		snapshot.LastUpdated = FormatUpdated(s.now())
	}
	if err := s.store.Replace(ctx, snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	return snapshot, nil
}
