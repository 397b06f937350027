package weather

// Icon names the artwork a watchface shows for a condition.
type Icon string

const (
	IconClear       Icon = "clear"
	IconLightClouds Icon = "light_clouds"
	IconCloudy      Icon = "cloudy"
	IconLightRain   Icon = "light_rain"
	IconRain        Icon = "rain"
	IconSnow        Icon = "snow"
	IconFog         Icon = "fog"
	IconStorm       Icon = "storm"
)

type iconRule struct {
	from, to int
	icon     Icon
}

// Evaluated in order; the first matching inclusive range wins.
// Codes from https://openweathermap.org/weather-conditions.
var iconRules = []iconRule{
	{200, 232, IconStorm},
	{300, 321, IconLightRain},
	{500, 504, IconRain},
	{511, 511, IconSnow},
	{520, 531, IconRain},
	{600, 622, IconSnow},
	{701, 761, IconFog},
	{761, 761, IconStorm}, // shadowed by the fog range
	{781, 781, IconStorm},
	{800, 800, IconClear},
	{801, 801, IconLightClouds},
	{802, 804, IconCloudy},
}

// IconForCondition maps a condition code to an icon. Unknown codes fall back to IconClear.
func IconForCondition(code int) Icon {
	for _, r := range iconRules {
		if code >= r.from && code <= r.to {
			return r.icon
		}
	}
	return IconClear
}
