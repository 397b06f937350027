package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// Geocoder resolves a city to coordinates.
type Geocoder func(loc weather.Location) (lat, lon float64, err error)

// GoogleGeocoder returns a Geocoder backed by the Google geocoding API.
func GoogleGeocoder(apiKey string) Geocoder {
	return func(loc weather.Location) (float64, float64, error) {
		if apiKey == "" {
			return 0, 0, fmt.Errorf("geocoder: %w", errMissingAPIKey)
		}
		geocoder.ApiKey = apiKey
		l, err := geocoder.Geocoding(geocoder.Address{City: loc.City, Country: loc.Country})
		if err != nil {
			return 0, 0, err
		}
		return l.Latitude, l.Longitude, nil
	}
}

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// Open-Meteo needs coordinates; locations without them are geocoded once and cached.
type OpenMeteoProvider struct {
	name     string
	units    weather.Units
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	geocode  Geocoder
	mu       sync.Mutex
	resolved map[string][2]float64
}

func NewOpenMeteoProvider(client *http.Client, units weather.Units, geocode Geocoder) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:     "openmeteo",
		units:    units,
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		httpCfg:  defaultHTTPConfig(client),
		circuit:  newBreaker("openmeteo"),
		geocode:  geocode,
		resolved: make(map[string][2]float64),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) coordinates(loc weather.Location) (float64, float64, error) {
	if loc.Lat != nil && loc.Lon != nil {
		return *loc.Lat, *loc.Lon, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.resolved[loc.Key()]; ok {
		return c[0], c[1], nil
	}
	if p.geocode == nil {
		return 0, 0, errors.New("openmeteo requires latitude and longitude")
	}

	lat, lon, err := p.geocode(loc)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %s: %w", loc.Key(), err)
	}
	p.resolved[loc.Key()] = [2]float64{lat, lon}
	return lat, lon, nil
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	lat, lon, err := p.coordinates(loc)
	if err != nil {
		return weather.ProviderReading{}, err
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("current_weather", "true")
	values.Set("daily", "temperature_2m_max,temperature_2m_min")
	values.Set("forecast_days", "1")
	values.Set("timezone", "auto")
	if p.units == weather.UnitsImperial {
		values.Set("temperature_unit", "fahrenheit")
	}

	var payload struct {
		CurrentWeather struct {
			Time        string `json:"time"`
			WeatherCode int    `json:"weathercode"`
		} `json:"current_weather"`
		Daily struct {
			Max []float64 `json:"temperature_2m_max"`
			Min []float64 `json:"temperature_2m_min"`
		} `json:"daily"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.ProviderReading{}, err
	}
	if len(payload.Daily.Max) == 0 || len(payload.Daily.Min) == 0 {
		return weather.ProviderReading{}, errors.New("openmeteo: response has no daily temperatures")
	}

	// current_weather.time has no seconds or zone, e.g. "2016-07-31T21:00".
	ts, err := time.Parse("2006-01-02T15:04", payload.CurrentWeather.Time)
	if err != nil {
		ts = time.Now()
	}

	return weather.ProviderReading{
		ProviderName:  p.name,
		Timestamp:     ts.UTC(),
		ConditionCode: mapWMOCode(payload.CurrentWeather.WeatherCode),
		HighTemp:      payload.Daily.Max[0],
		LowTemp:       payload.Daily.Min[0],
	}, nil
}

// mapWMOCode translates a WMO weather interpretation code into the closest
// OpenWeatherMap condition id.
func mapWMOCode(code int) int {
	switch code {
	case 0:
		return 800
	case 1:
		return 801
	case 2:
		return 802
	case 3:
		return 804
	case 45, 48:
		return 741
	case 51, 53, 55:
		return 301
	case 56, 57:
		return 311
	case 61:
		return 500
	case 63:
		return 501
	case 65:
		return 502
	case 66, 67:
		return 511
	case 71:
		return 600
	case 73:
		return 601
	case 75:
		return 602
	case 77:
		return 611
	case 80:
		return 520
	case 81:
		return 521
	case 82:
		return 522
	case 85:
		return 621
	case 86:
		return 622
	case 95:
		return 211
	case 96, 99:
		return 202
	default:
		return weather.DefaultConditionCode
	}
}
