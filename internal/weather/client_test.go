package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 53.35, -6.26, "Europe/Dublin", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestCurrentWeather(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("current_weather") != "true" {
			t.Errorf("current_weather = %q", q.Get("current_weather"))
		}
		if q.Get("timezone") != "Europe/Dublin" {
			t.Errorf("timezone = %q", q.Get("timezone"))
		}
		if q.Get("latitude") != "53.35" {
			t.Errorf("latitude = %q", q.Get("latitude"))
		}
		if got := r.Header.Get("User-Agent"); got != "sigenflux/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		fmt.Fprint(w, `{"current_weather":{
			"time": "2026-08-25T14:00",
			"temperature": 17.3,
			"windspeed": 12.5,
			"winddirection": 240,
			"weathercode": 3,
			"is_day": 1
		}}`)
	})

	sample, err := client.CurrentWeather(context.Background())
	if err != nil {
		t.Fatalf("CurrentWeather() error = %v", err)
	}

	// 14:00 Irish summer time is 13:00 UTC.
	want := time.Date(2026, 8, 25, 13, 0, 0, 0, time.UTC)
	if !sample.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", sample.Time, want)
	}
	if sample.Temperature != 17.3 || sample.WeatherCode != 3 || !sample.IsDay {
		t.Errorf("Sample = %+v", sample)
	}
}

func TestCurrentWeather_MissingBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	if _, err := client.CurrentWeather(context.Background()); err == nil {
		t.Error("CurrentWeather() error = nil, want missing-block error")
	}
}

func TestHourlyForecast(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hourly := r.URL.Query().Get("hourly")
		if !strings.Contains(hourly, "shortwave_radiation") || !strings.Contains(hourly, "temperature_2m") {
			t.Errorf("hourly = %q missing expected variables", hourly)
		}
		if got := r.URL.Query().Get("forecast_days"); got != "2" {
			t.Errorf("forecast_days = %q", got)
		}
		fmt.Fprint(w, `{"hourly":{
			"time": ["2026-08-25T00:00", "2026-08-25T01:00", "2026-08-25T02:00"],
			"temperature_2m": [14.1, null, 13.5],
			"cloud_cover": [80, 75, null],
			"precipitation_probability": [null, null, null]
		}}`)
	})

	points, err := client.HourlyForecast(context.Background(), 0)
	if err != nil {
		t.Fatalf("HourlyForecast() error = %v", err)
	}

	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}

	// Nulls are skipped per variable, not zero-filled.
	if _, ok := points[1].Values["temperature_2m"]; ok {
		t.Error("null temperature_2m recorded at hour 1")
	}
	if v := points[1].Values["cloud_cover"]; v != 75 {
		t.Errorf("cloud_cover at hour 1 = %v, want 75", v)
	}
	if _, ok := points[0].Values["precipitation_probability"]; ok {
		t.Error("all-null column leaked a value")
	}
	if v := points[2].Values["temperature_2m"]; v != 13.5 {
		t.Errorf("temperature_2m at hour 2 = %v, want 13.5", v)
	}
}

func TestHourlyForecast_HorizonBound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"hourly":{
			"time": ["2026-08-25T00:00", "2026-08-25T01:00", "2026-08-25T02:00", "2026-08-25T03:00"],
			"temperature_2m": [14.1, 13.8, 13.5, 13.2]
		}}`)
	})

	points, err := client.HourlyForecast(context.Background(), 2)
	if err != nil {
		t.Fatalf("HourlyForecast() error = %v", err)
	}
	if len(points) != 2 {
		t.Errorf("got %d points, want horizon of 2", len(points))
	}
}

func TestHourlyForecast_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.HourlyForecast(context.Background(), 0); err == nil {
		t.Error("HourlyForecast() error = nil, want HTTP error")
	}
}

func TestNewClient_BadTimezone(t *testing.T) {
	if _, err := NewClient(DefaultBaseURL, 0, 0, "Not/AZone", time.Second); err == nil {
		t.Error("NewClient() error = nil, want timezone error")
	}
}
