package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

const (
	fetchTimeout       = 30 * time.Second
	defaultPushTimeout = time.Minute
)

// Fetcher refreshes the local snapshot from upstream providers.
type Fetcher interface {
	FetchAndStore(ctx context.Context, loc weather.Location) (weather.Snapshot, error)
}

// Pusher sends the local snapshot to the watch.
type Pusher interface {
	Push(ctx context.Context) error
}

// Scheduler periodically fetches weather for the configured location and pushes it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	fetcher   Fetcher
	pusher    Pusher
	location  weather.Location
	interval  time.Duration

	// pushTimeout bounds each push independently of the fetch.
	pushTimeout time.Duration
	logger      *zap.Logger
}

// New creates a new Scheduler. Each push gets its own pushTimeout budget.
func New(location weather.Location, interval, pushTimeout time.Duration, fetcher Fetcher, pusher Pusher, logger *zap.Logger) *Scheduler {
	if pushTimeout <= 0 {
		pushTimeout = defaultPushTimeout
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:   s,
		fetcher:     fetcher,
		pusher:      pusher,
		location:    location,
		interval:    interval,
		pushTimeout: pushTimeout,
		logger:      logger.Named("scheduler"),
	}
}

// Start schedules the periodic job, runs it once immediately and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.location.City == "" {
		s.logger.Info("no location configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce fetches and, when that succeeded, pushes. Failures are logged.
func (s *Scheduler) RunOnce() {
	s.logger.Info("running weather fetch job", zap.String("location", s.location.Key()))

	fetchCtx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	snap, err := s.fetcher.FetchAndStore(fetchCtx, s.location)
	cancel()
	if err != nil {
		s.logger.Warn("fetch failed, keeping last snapshot", zap.String("location", s.location.Key()), zap.Error(err))
		return
	}

	pushCtx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
	defer cancel()
	if err := s.pusher.Push(pushCtx); err != nil {
		s.logger.Warn("push failed", zap.Error(err))
		return
	}
	s.logger.Info("completed weather fetch job", zap.Int("conditionCode", snap.ConditionCode))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
