package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

type closableStore interface {
	weather.Store
	Close() error
}

var stores = map[string]func(t *testing.T) closableStore{
	"memory": func(*testing.T) closableStore { return NewMemoryStore() },
	"sqlite": func(t *testing.T) closableStore {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "prefs.db"), zap.NewNop())
		require.NoError(t, err)
		return s
	},
}

func TestLoadDefaults(t *testing.T) {
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			got, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, weather.DefaultSnapshot(), got)
			assert.Equal(t, 800, got.ConditionCode)
		})
	}
}

func TestReplaceIsLastWriteWins(t *testing.T) {
	first := weather.Snapshot{ConditionCode: 500, HighTemp: "25", LowTemp: "16", LastUpdated: "21:42 - JUL 31 2016"}
	second := weather.Snapshot{ConditionCode: 801, HighTemp: "19", LowTemp: "9", LastUpdated: "06:10 - AUG 01 2016"}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.Replace(ctx, first))
			require.NoError(t, s.Replace(ctx, second))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, second, got)
		})
	}
}

func TestWatchNotifiesUntilCancelled(t *testing.T) {
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			var (
				mu   sync.Mutex
				seen []weather.Snapshot
			)
			cancel := s.Watch(func(snap weather.Snapshot) {
				mu.Lock()
				seen = append(seen, snap)
				mu.Unlock()
			})

			snap := weather.Snapshot{ConditionCode: 600, HighTemp: "1", LowTemp: "-3", LastUpdated: "x"}
			require.NoError(t, s.Replace(ctx, snap))
			cancel()
			cancel()
			require.NoError(t, s.Replace(ctx, weather.DefaultSnapshot()))

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []weather.Snapshot{snap}, seen)
		})
	}
}

func TestEmptyIconFallsBackToDefault(t *testing.T) {
	got := fromValues(map[string]string{KeyIcon: "", KeyHighTemp: "25"})

	assert.Equal(t, 800, got.ConditionCode)
	assert.Equal(t, "25", got.HighTemp)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()
	snap := weather.Snapshot{ConditionCode: 211, HighTemp: "30", LowTemp: "22", LastUpdated: "12:00 - JUN 01 2016"}

	s, err := NewSQLite(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Replace(ctx, snap))
	require.NoError(t, s.Close())

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrClosed)

	reopened, err := NewSQLite(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestConcurrentReadersNeverSeeMixedSnapshots(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := weather.Snapshot{ConditionCode: 500, HighTemp: "a", LowTemp: "a", LastUpdated: "a"}
	b := weather.Snapshot{ConditionCode: 600, HighTemp: "b", LowTemp: "b", LastUpdated: "b"}
	require.NoError(t, s.Replace(ctx, a))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				_ = s.Replace(ctx, b)
			} else {
				_ = s.Replace(ctx, a)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			got, err := s.Load(ctx)
			assert.NoError(t, err)
			assert.Contains(t, []weather.Snapshot{a, b}, got)
		}
	}()
	wg.Wait()
}
