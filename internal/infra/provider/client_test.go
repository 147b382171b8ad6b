package provider

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/weatherload/internal/core/domain"
)

const hourlyBody = `{
  "response": {"version": "0.1"},
  "hourly_forecast": [
    {
      "FCTTIME": {"year": "2017", "mon": "3", "mday": "14", "hour": "9", "min": "00"},
      "temp": {"english": "30", "metric": "-1"},
      "wspd": {"english": "8", "metric": "18"},
      "humidity": "81",
      "pop": "40",
      "condition": "Chance of Snow"
    },
    {
      "FCTTIME": {"year": "2017", "mon": "3", "mday": "14", "hour": "10", "min": "00"},
      "temp": {"english": "32", "metric": "0"},
      "wspd": {"english": "8", "metric": "-9999"},
      "humidity": "",
      "pop": "0",
      "condition": "Volcanic Ash"
    }
  ]
}`

const historyBody = `{
  "response": {"version": "0.1"},
  "history": {
    "observations": [
      {"date": {"hour": "00", "min": "30"}, "tempm": "-2.0", "hum": "93", "wspdm": "7.2",
       "pressurem": "1012", "rain": "0", "snow": "1", "conds": "Light Snow"},
      {"date": {"hour": "01", "min": "00"}, "tempm": "-2.5", "hum": "N/A", "wspdm": "0.0",
       "pressurem": "1013", "rain": "0", "snow": "0", "conds": "Overcast"}
    ]
  }
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL + "/api", APIKey: "key123", Country: "Russia", MaxRetries: 2}, srv.Client())
	c.backoff.InitialInterval = time.Millisecond
	return c
}

func approx(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: got nil, want %v", name, want)
		return
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Errorf("%s: got %v, want %v", name, *got, want)
	}
}

func TestHourlyForecast(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(hourlyBody))
	})

	points, err := c.HourlyForecast(context.Background(), domain.City{Name: "Moscow", ID: 102})
	if err != nil {
		t.Fatalf("HourlyForecast failed: %v", err)
	}
	if path != "/api/key123/hourly/q/Russia/Moscow.json" {
		t.Errorf("unexpected request path %q", path)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	p := points[0]
	if p.CityID != 102 || !p.Time.Equal(time.Date(2017, 3, 14, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected key %d %v", p.CityID, p.Time)
	}
	approx(t, "temperature", p.Temperature, -1)
	approx(t, "wind", p.Wind, 5)
	approx(t, "pop", p.PrecipitationProb, 0.4)
	approx(t, "humidity", p.Humidity, 81)
	approx(t, "pressure", p.Pressure, 0)
	if p.Sky == nil || *p.Sky != domain.SkyPrecipitation {
		t.Errorf("expected sky %d, got %v", domain.SkyPrecipitation, p.Sky)
	}

	missing := points[1]
	if missing.Wind != nil || missing.Humidity != nil || missing.Sky != nil {
		t.Errorf("expected missing readings as nil, got wind=%v humidity=%v sky=%v",
			missing.Wind, missing.Humidity, missing.Sky)
	}
}

func TestTenDayForecast_Path(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"hourly_forecast": []}`))
	})

	points, err := c.TenDayForecast(context.Background(), domain.City{Name: "Saint_Petersburg", ID: 104})
	if err != nil {
		t.Fatalf("TenDayForecast failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected no points, got %d", len(points))
	}
	if path != "/api/key123/hourly10day/q/Russia/Saint_Petersburg.json" {
		t.Errorf("unexpected request path %q", path)
	}
}

func TestHistory(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(historyBody))
	})

	day := time.Date(2017, 3, 13, 0, 0, 0, 0, time.UTC)
	obs, err := c.History(context.Background(), domain.City{Name: "Moscow", ID: 102}, day)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if path != "/api/key123/history_20170313/q/Russia/Moscow.json" {
		t.Errorf("unexpected request path %q", path)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}

	o := obs[0]
	if !o.Time.Equal(time.Date(2017, 3, 13, 0, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected time %v", o.Time)
	}
	approx(t, "temperature", o.Temperature, -2)
	approx(t, "wind", o.Wind, 2)
	approx(t, "pressure", o.Pressure, 759)
	if o.Precipitation == nil || *o.Precipitation != 1 {
		t.Errorf("expected precipitation flag 1, got %v", o.Precipitation)
	}
	if o.SkyState != nil {
		t.Errorf("expected unknown condition to be nil, got %d", *o.SkyState)
	}

	o = obs[1]
	if o.Humidity != nil {
		t.Errorf("expected N/A humidity to be nil")
	}
	if o.Precipitation == nil || *o.Precipitation != 0 {
		t.Errorf("expected precipitation flag 0, got %v", o.Precipitation)
	}
	if o.SkyState == nil || *o.SkyState != domain.SkyCloudy {
		t.Errorf("expected overcast to map to %d", domain.SkyCloudy)
	}
}

func TestAPIErrorInBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"error": {"type": "keynotfound", "description": "this key does not exist"}}}`))
	})

	_, err := c.HourlyForecast(context.Background(), domain.City{Name: "Moscow", ID: 102})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != "keynotfound" {
		t.Fatalf("expected keynotfound APIError, got %v", err)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"hourly_forecast": []}`))
	})

	if _, err := c.HourlyForecast(context.Background(), domain.City{Name: "Moscow", ID: 102}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.HourlyForecast(context.Background(), domain.City{Name: "Moscow", ID: 102})
	if !errors.Is(err, errUnexpected) {
		t.Fatalf("expected unexpected status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single request, got %d", calls.Load())
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost", Country: "Russia"}, nil)
	if _, err := c.History(context.Background(), domain.City{Name: "Moscow", ID: 102}, time.Now()); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{"12.5", ptr(12.5), false},
		{" 3 ", ptr(3), false},
		{"", nil, false},
		{"N/A", nil, false},
		{"-9999", nil, false},
		{"-999.0", nil, false},
		{"-40", ptr(-40), false},
		{"abc", nil, true},
	}
	for _, tt := range tests {
		got, err := number(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("number(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("number(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }
