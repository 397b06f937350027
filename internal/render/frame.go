package render

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// DateLayout is the watchface date line before upper-casing, e.g. "SUN, JUL 31 2016".
const DateLayout = "Mon, Jan 02 2006"

const degree = "°"

// Frame is everything the watchface shows at one instant.
type Frame struct {
	Time     string       `json:"time"`
	Date     string       `json:"date"`
	Icon     weather.Icon `json:"icon"`
	HighTemp string       `json:"highTemp"`
	LowTemp  string       `json:"lowTemp"`
	Updated  string       `json:"updated"`
	Ambient  bool         `json:"ambient"`

	RenderedAt time.Time `json:"renderedAt"`
}

// Compose builds the frame for snap at now.
func Compose(now time.Time, snap weather.Snapshot, ambient bool) Frame {
	upper := cases.Upper(language.English)
	return Frame{
		Time:       fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute()),
		Date:       upper.String(now.Format(DateLayout)),
		Icon:       snap.Icon(),
		HighTemp:   snap.HighTemp + degree,
		LowTemp:    snap.LowTemp + degree,
		Updated:    upper.String("Updated: " + snap.LastUpdated),
		Ambient:    ambient,
		RenderedAt: now,
	}
}
