// Package store holds the per-device Weather State Store implementations.
//
// Both stores keep the snapshot as four text-valued keys, matching the preference layout
// shared by the phone and the watch.
package store

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// Persisted keys.
const (
	KeyHighTemp = "LastHighTemp"
	KeyLowTemp  = "LastLowTemp"
	KeyIcon     = "LastIcon"
	KeyUpdate   = "LastUpdate"
)

var (
	// ErrClosed is returned when a closed store is used.
	ErrClosed = errors.New("store is closed")
)

// toValues flattens a snapshot into its persisted key/value form.
func toValues(s weather.Snapshot) map[string]string {
	return map[string]string{
		KeyHighTemp: s.HighTemp,
		KeyLowTemp:  s.LowTemp,
		KeyIcon:     s.ConditionText(),
		KeyUpdate:   s.LastUpdated,
	}
}

// fromValues rebuilds a snapshot. A missing, empty or unparsable LastIcon yields the default code.
func fromValues(values map[string]string) weather.Snapshot {
	s := weather.DefaultSnapshot()
	s.HighTemp = values[KeyHighTemp]
	s.LowTemp = values[KeyLowTemp]
	s.LastUpdated = values[KeyUpdate]

	if icon := strings.TrimSpace(values[KeyIcon]); icon != "" {
		if code, err := strconv.Atoi(icon); err == nil {
			s.ConditionCode = code
		}
	}
	return s
}

// watchers fans out change notifications to registered callbacks.
type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(weather.Snapshot)
}

func (w *watchers) add(fn func(weather.Snapshot)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]func(weather.Snapshot))
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) notify(s weather.Snapshot) {
	w.mu.Lock()
	fns := make([]func(weather.Snapshot), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
