package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestWeatherClient(geocode, forecast http.HandlerFunc) (*WeatherClient, func()) {
	geoSrv := httptest.NewServer(geocode)
	fcSrv := httptest.NewServer(forecast)

	client := NewWeatherClient()
	client.geocodeURL = geoSrv.URL
	client.forecastURL = fcSrv.URL

	return client, func() {
		geoSrv.Close()
		fcSrv.Close()
	}
}

func TestWeatherCurrent(t *testing.T) {
	client, cleanup := newTestWeatherClient(
		func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("name"); got != "Tokyo" {
				t.Errorf("expected name=Tokyo, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[{"name":"Tokyo","latitude":35.68,"longitude":139.69,"country":"Japan"}]}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"current":{"temperature_2m":21.5,"apparent_temperature":22.0,"relative_humidity_2m":60,"wind_speed_10m":12.3,"weather_code":2}}`))
		},
	)
	defer cleanup()

	result, err := client.Current(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(result), &payload); err != nil {
		t.Fatalf("result should be JSON: %v", err)
	}
	if payload["city"] != "Tokyo" {
		t.Errorf("expected city Tokyo, got %v", payload["city"])
	}
	if payload["temperature"] != 21.5 {
		t.Errorf("expected temperature 21.5, got %v", payload["temperature"])
	}
	if payload["description"] != "Partly cloudy" {
		t.Errorf("expected 'Partly cloudy', got %v", payload["description"])
	}
}

func TestWeatherCityNotFound(t *testing.T) {
	client, cleanup := newTestWeatherClient(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[]}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			t.Error("forecast should not be called for unknown city")
		},
	)
	defer cleanup()

	result, err := client.Current(context.Background(), "Nowhereville")
	if err != nil {
		t.Fatalf("unknown city must be a reported payload, not an error: %v", err)
	}
	if !strings.Contains(result, "City not found") {
		t.Errorf("expected City not found payload, got %q", result)
	}
}

func TestWeatherCurrentCached(t *testing.T) {
	var geocodeCalls atomic.Int32
	client, cleanup := newTestWeatherClient(
		func(w http.ResponseWriter, r *http.Request) {
			geocodeCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[{"name":"Berlin","latitude":52.52,"longitude":13.40,"country":"Germany"}]}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"current":{"temperature_2m":10,"apparent_temperature":8,"relative_humidity_2m":70,"wind_speed_10m":20,"weather_code":61}}`))
		},
	)
	defer cleanup()

	first, err := client.Current(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Cache key is the lowercased city name.
	second, err := client.Current(context.Background(), "BERLIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("expected identical cached payload")
	}
	if geocodeCalls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", geocodeCalls.Load())
	}
}

func TestWeatherSearch(t *testing.T) {
	client, cleanup := newTestWeatherClient(
		func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("count"); got != "5" {
				t.Errorf("expected count=5, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[
				{"name":"Springfield","latitude":39.8,"longitude":-89.6,"country":"United States","admin1":"Illinois"},
				{"name":"Springfield","latitude":42.1,"longitude":-72.6,"country":"United States","admin1":"Massachusetts"}
			]}`))
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)
	defer cleanup()

	result, err := client.Search(context.Background(), "Springfield")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		Cities []map[string]any `json:"cities"`
	}
	if err := json.Unmarshal([]byte(result), &payload); err != nil {
		t.Fatalf("result should be JSON: %v", err)
	}
	if len(payload.Cities) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(payload.Cities))
	}
	if payload.Cities[0]["region"] != "Illinois" {
		t.Errorf("expected region Illinois, got %v", payload.Cities[0]["region"])
	}
}

func TestWeatherEmptyCity(t *testing.T) {
	client := NewWeatherClient()
	if _, err := client.Current(context.Background(), "  "); err == nil {
		t.Error("expected error for blank city")
	}
	if _, err := client.Search(context.Background(), ""); err == nil {
		t.Error("expected error for blank query")
	}
}
