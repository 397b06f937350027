package weather

import (
	"strconv"
	"time"
)

// DefaultConditionCode is the condition code assumed when none was stored (clear sky).
const DefaultConditionCode = 800

// UpdatedLayout is the producer-side format of Snapshot.LastUpdated, e.g. "21:42 - JUL 31 2016".
// The month is upper-cased after formatting.
const UpdatedLayout = "15:04 - Jan 02 2006"

// Snapshot is the four-field weather summary synchronized from the phone to the watch.
// It is always replaced as a whole.
type Snapshot struct {
	// ConditionCode is an OpenWeatherMap style condition id; it selects the icon.
	ConditionCode int `json:"conditionCode" validate:"gte=0"`

	// Temperatures are display-ready text, formatted once by the producer.
	HighTemp string `json:"highTemp" validate:"excludes=0x2C"`
	LowTemp  string `json:"lowTemp" validate:"excludes=0x2C"`

	// LastUpdated is opaque to the consumer and displayed verbatim.
	LastUpdated string `json:"lastUpdated" validate:"excludes=0x2C"`
}

// DefaultSnapshot is what a store reports before anything was written.
func DefaultSnapshot() Snapshot {
	return Snapshot{ConditionCode: DefaultConditionCode}
}

// Icon returns the icon for the snapshot's condition code.
func (s Snapshot) Icon() Icon {
	return IconForCondition(s.ConditionCode)
}

// ConditionText returns the condition code in its persisted text form.
func (s Snapshot) ConditionText() string {
	return strconv.Itoa(s.ConditionCode)
}

// Units selects how upstream providers report temperatures.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Location represents a logical place for which we track weather.
// City/Country must be provided; coordinates are optional.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// FormatUpdated renders t in the producer's LastUpdated format.
func FormatUpdated(t time.Time) string {
	return upper(t.Format(UpdatedLayout))
}
