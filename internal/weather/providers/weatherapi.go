package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	units   weather.Units
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, units weather.Units) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("days", "1")
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	if loc.Lat != nil && loc.Lon != nil {
		values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}

	type day struct {
		MaxTempC float64 `json:"maxtemp_c"`
		MinTempC float64 `json:"mintemp_c"`
		MaxTempF float64 `json:"maxtemp_f"`
		MinTempF float64 `json:"mintemp_f"`
	}

	var payload struct {
		Location struct {
			LocaltimeEpoch int64 `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
		Forecast struct {
			ForecastDay []struct {
				Day day `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.ProviderReading{}, err
	}
	if len(payload.Forecast.ForecastDay) == 0 {
		return weather.ProviderReading{}, errors.New("weatherapi: response has no forecast day")
	}

	ts := time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	if payload.Location.LocaltimeEpoch == 0 {
		ts = time.Now().UTC()
	}

	d := payload.Forecast.ForecastDay[0].Day
	high, low := d.MaxTempC, d.MinTempC
	if p.units == weather.UnitsImperial {
		high, low = d.MaxTempF, d.MinTempF
	}

	return weather.ProviderReading{
		ProviderName:  p.name,
		Timestamp:     ts,
		ConditionCode: mapWeatherAPICondition(payload.Current.Condition.Text),
		HighTemp:      high,
		LowTemp:       low,
	}, nil
}

// mapWeatherAPICondition picks a representative OpenWeatherMap id for a WeatherAPI condition text.
func mapWeatherAPICondition(text string) int {
	switch {
	case text == "":
		return weather.DefaultConditionCode
	case hasAny(text, "thunder", "storm"):
		return 211
	case hasAny(text, "sleet", "ice pellets", "freezing rain"):
		return 511
	case hasAny(text, "snow", "blizzard"):
		return 601
	case hasAny(text, "drizzle"):
		return 301
	case hasAny(text, "light rain", "patchy rain"):
		return 500
	case hasAny(text, "shower"):
		return 521
	case hasAny(text, "rain"):
		return 501
	case hasAny(text, "fog", "mist"):
		return 741
	case hasAny(text, "partly cloudy"):
		return 801
	case hasAny(text, "cloud", "overcast"):
		return 804
	case hasAny(text, "sunny", "clear"):
		return 800
	default:
		return weather.DefaultConditionCode
	}
}
