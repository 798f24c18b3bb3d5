package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	weatherCacheTTL = 5 * time.Minute
)

// WeatherClient fetches current conditions and city matches from Open-Meteo.
// Neither endpoint requires an API key.
type WeatherClient struct {
	http        *resty.Client
	geocodeURL  string
	forecastURL string
	cache       *Cache
}

// NewWeatherClient creates a weather client with a shared result cache.
func NewWeatherClient() *WeatherClient {
	return &WeatherClient{
		http:        resty.New().SetTimeout(15 * time.Second),
		geocodeURL:  defaultGeocodeURL,
		forecastURL: defaultForecastURL,
		cache:       NewCache(),
	}
}

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
}

type forecastResponse struct {
	Current struct {
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity    int     `json:"relative_humidity_2m"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
}

// weatherDescriptions maps WMO weather codes to human-readable conditions.
var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func describeWeatherCode(code int) string {
	if desc, ok := weatherDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("Weather code %d", code)
}

func (c *WeatherClient) geocode(ctx context.Context, query string, count int) ([]geocodeResult, error) {
	var out geocodeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name":  query,
			"count": fmt.Sprintf("%d", count),
		}).
		SetResult(&out).
		Get(c.geocodeURL)
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode())
	}
	return out.Results, nil
}

// Current returns a JSON payload with current conditions for a city. An
// unknown city is reported inside the payload, not as an error, so the model
// can relay it.
func (c *WeatherClient) Current(ctx context.Context, city string) (string, error) {
	if strings.TrimSpace(city) == "" {
		return "", fmt.Errorf("city is required")
	}

	cacheKey := strings.ToLower(strings.TrimSpace(city))
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	matches, err := c.geocode(ctx, city, 1)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		payload, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("City not found: %s", city),
		})
		return string(payload), nil
	}
	loc := matches[0]

	var forecast forecastResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  fmt.Sprintf("%.4f", loc.Latitude),
			"longitude": fmt.Sprintf("%.4f", loc.Longitude),
			"current":   "temperature_2m,apparent_temperature,relative_humidity_2m,wind_speed_10m,weather_code",
		}).
		SetResult(&forecast).
		Get(c.forecastURL)
	if err != nil {
		return "", fmt.Errorf("forecast request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("forecast returned status %d", resp.StatusCode())
	}

	payload, err := json.Marshal(map[string]any{
		"city":        loc.Name,
		"country":     loc.Country,
		"temperature": forecast.Current.Temperature,
		"feelsLike":   forecast.Current.ApparentTemperature,
		"description": describeWeatherCode(forecast.Current.WeatherCode),
		"humidity":    forecast.Current.RelativeHumidity,
		"windSpeed":   forecast.Current.WindSpeed,
	})
	if err != nil {
		return "", err
	}

	c.cache.Set(cacheKey, string(payload), weatherCacheTTL)
	return string(payload), nil
}

// Search returns up to five city matches for a free-text query.
func (c *WeatherClient) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}

	matches, err := c.geocode(ctx, query, 5)
	if err != nil {
		return "", err
	}

	cities := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		cities = append(cities, map[string]any{
			"name":      m.Name,
			"country":   m.Country,
			"region":    m.Admin1,
			"latitude":  m.Latitude,
			"longitude": m.Longitude,
		})
	}

	payload, err := json.Marshal(map[string]any{"cities": cities})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
