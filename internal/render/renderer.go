// Package render turns the watch's stored weather snapshot into watchface frames, redrawing
// on store changes, on display mode changes and on a wall-clock aligned timer while visible:
// every interval when interactive, once a minute in ambient mode.
package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// DefaultInterval is the interactive redraw cadence.
const DefaultInterval = time.Minute

// AmbientInterval is the redraw cadence in ambient mode, the once-a-minute time tick.
const AmbientInterval = time.Minute

// FrameSink receives rendered frames.
type FrameSink interface {
	Draw(ctx context.Context, f Frame) error
}

// Renderer owns the watchface redraw loop.
type Renderer struct {
	store           weather.Store
	sink            FrameSink
	interval        time.Duration
	ambientInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time

	wake chan struct{}
	// stale is set by store notifications; the loop reloads before the next draw.
	stale atomic.Bool

	mu       sync.Mutex
	snapshot weather.Snapshot
	visible  bool
	ambient  bool
	last     Frame
	drawn    bool
}

// New creates a visible, interactive renderer. A non-positive interval means DefaultInterval.
func New(store weather.Store, sink FrameSink, interval time.Duration, logger *zap.Logger) *Renderer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Renderer{
		store:           store,
		sink:            sink,
		interval:        interval,
		ambientInterval: AmbientInterval,
		logger:          logger.Named("renderer"),
		now:             time.Now,
		wake:            make(chan struct{}, 1),
		snapshot:        weather.DefaultSnapshot(),
		visible:         true,
	}
}

// Run draws until ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	// Notifications may arrive out of order under concurrent writers, so they only mark
	// the snapshot stale and the loop reads the store itself.
	cancel := r.store.Watch(func(weather.Snapshot) {
		r.stale.Store(true)
		r.invalidate()
	})
	defer cancel()

	r.stale.Store(true)
	r.draw(ctx)
	for {
		var (
			timer *time.Timer
			tick  <-chan time.Time
		)
		if period, ok := r.tickPeriod(); ok {
			timer = time.NewTimer(untilNextTick(r.now(), period))
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-r.wake:
		case <-tick:
		}
		if timer != nil {
			timer.Stop()
		}
		r.draw(ctx)
	}
}

// SetVisible records a visibility transition and redraws if it changed.
func (r *Renderer) SetVisible(visible bool) {
	r.mu.Lock()
	changed := r.visible != visible
	r.visible = visible
	r.mu.Unlock()

	if changed {
		r.invalidate()
	}
}

// SetAmbient records an ambient mode transition and redraws if it changed.
func (r *Renderer) SetAmbient(ambient bool) {
	r.mu.Lock()
	changed := r.ambient != ambient
	r.ambient = ambient
	r.mu.Unlock()

	if changed {
		r.invalidate()
	}
}

// Mode reports the current display mode.
func (r *Renderer) Mode() (visible, ambient bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible, r.ambient
}

// LastFrame returns the most recent frame; ok is false before the first draw.
func (r *Renderer) LastFrame() (f Frame, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.drawn
}

func (r *Renderer) invalidate() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// tickPeriod reports the timer cadence for the current mode; a hidden face does not tick.
func (r *Renderer) tickPeriod() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case !r.visible:
		return 0, false
	case r.ambient:
		return r.ambientInterval, true
	default:
		return r.interval, true
	}
}

// untilNextTick aligns ticks to period boundaries of the wall clock.
func untilNextTick(now time.Time, period time.Duration) time.Duration {
	return period - time.Duration(now.UnixNano()%int64(period))
}

func (r *Renderer) reload(ctx context.Context) {
	if !r.stale.Swap(false) {
		return
	}

	snap, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("failed to load weather snapshot, keeping previous", zap.Error(err))
		return
	}
	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()
}

func (r *Renderer) draw(ctx context.Context) {
	r.reload(ctx)

	r.mu.Lock()
	frame := Compose(r.now(), r.snapshot, r.ambient)
	r.last = frame
	r.drawn = true
	r.mu.Unlock()

	if err := r.sink.Draw(ctx, frame); err != nil {
		r.logger.Warn("failed to draw frame", zap.Error(err))
	}
}
