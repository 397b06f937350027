package weather

import (
	"math"
	"strconv"
	"time"
)

// AggregateReadings combines multiple provider readings into a single Snapshot.
// Temperatures are averaged and rounded to whole degrees; the condition code is selected by
// majority, ties going to the code reported first.
func AggregateReadings(readings []ProviderReading, now time.Time) Snapshot {
	if len(readings) == 0 {
		s := DefaultSnapshot()
		s.LastUpdated = FormatUpdated(now)
		return s
	}

	var (
		sumHigh float64
		sumLow  float64
	)

	codeCounts := make(map[int]int)
	order := make([]int, 0, len(readings))

	for _, r := range readings {
		sumHigh += r.HighTemp
		sumLow += r.LowTemp

		if _, seen := codeCounts[r.ConditionCode]; !seen {
			order = append(order, r.ConditionCode)
		}
		codeCounts[r.ConditionCode]++
	}

	n := float64(len(readings))

	bestCode := order[0]
	for _, code := range order[1:] {
		if codeCounts[code] > codeCounts[bestCode] {
			bestCode = code
		}
	}

	return Snapshot{
		ConditionCode: bestCode,
		HighTemp:      formatTemp(sumHigh / n),
		LowTemp:       formatTemp(sumLow / n),
		LastUpdated:   FormatUpdated(now),
	}
}

func formatTemp(v float64) string {
	r := math.Round(v)
	if r == 0 {
		// avoid "-0"
		r = 0
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}
