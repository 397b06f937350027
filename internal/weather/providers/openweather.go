package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// Its condition ids are the ones the watchface icons are keyed on, so no mapping is needed.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	units   weather.Units
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, units weather.Units) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", string(p.units))
	if loc.Lat != nil && loc.Lon != nil {
		values.Set("lat", fmt.Sprintf("%f", *loc.Lat))
		values.Set("lon", fmt.Sprintf("%f", *loc.Lon))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMax float64 `json:"temp_max"`
			TempMin float64 `json:"temp_min"`
		} `json:"main"`
		Weather []struct {
			ID int `json:"id"`
		} `json:"weather"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.ProviderReading{}, err
	}

	ts := time.Unix(payload.Dt, 0).UTC()
	if payload.Dt == 0 {
		ts = time.Now().UTC()
	}

	code := weather.DefaultConditionCode
	if len(payload.Weather) > 0 {
		code = payload.Weather[0].ID
	}

	return weather.ProviderReading{
		ProviderName:  p.name,
		Timestamp:     ts,
		ConditionCode: code,
		HighTemp:      payload.Main.TempMax,
		LowTemp:       payload.Main.TempMin,
	}, nil
}
