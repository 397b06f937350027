package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

type stubFetcher struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *stubFetcher) FetchAndStore(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return weather.Snapshot{}, f.err
	}
	return weather.Snapshot{ConditionCode: 500}, nil
}

type stubPusher struct {
	calls  atomic.Int32
	budget atomic.Int64
}

func (p *stubPusher) Push(ctx context.Context) error {
	p.calls.Add(1)
	if deadline, ok := ctx.Deadline(); ok {
		p.budget.Store(int64(time.Until(deadline)))
	}
	return nil
}

var mountainView = weather.Location{City: "Mountain View", Country: "US"}

func TestRunOnceFetchesThenPushes(t *testing.T) {
	f, p := &stubFetcher{}, &stubPusher{}
	New(mountainView, time.Minute, time.Minute, f, p, zap.NewNop()).RunOnce()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestRunOnceSkipsPushWhenFetchFails(t *testing.T) {
	f, p := &stubFetcher{err: errors.New("all providers down")}, &stubPusher{}
	New(mountainView, time.Minute, time.Minute, f, p, zap.NewNop()).RunOnce()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Zero(t, p.calls.Load())
}

func TestStartWithoutLocationSchedulesNothing(t *testing.T) {
	f, p := &stubFetcher{}, &stubPusher{}
	s := New(weather.Location{}, time.Minute, time.Minute, f, p, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Zero(t, f.calls.Load())
}

func TestStartRunsImmediately(t *testing.T) {
	f, p := &stubFetcher{}, &stubPusher{}
	s := New(mountainView, time.Minute, time.Minute, f, p, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPushGetsItsOwnBudget(t *testing.T) {
	f, p := &stubFetcher{delay: 100 * time.Millisecond}, &stubPusher{}
	New(mountainView, time.Minute, 500*time.Millisecond, f, p, zap.NewNop()).RunOnce()

	require.Equal(t, int32(1), p.calls.Load())
	budget := time.Duration(p.budget.Load())
	assert.Greater(t, budget, 450*time.Millisecond, "fetch time must not come out of the push budget")
	assert.LessOrEqual(t, budget, 500*time.Millisecond)
}
