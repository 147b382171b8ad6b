// Package provider fetches hourly forecasts and observation history from a
// Weather Underground style API and converts them into warehouse rows.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vietddude/weatherload/internal/core/domain"
	"github.com/vietddude/weatherload/internal/metrics"
)

// Feature names as they appear in request paths.
const (
	FeatureHourly      = "hourly"
	FeatureHourly10Day = "hourly10day"
	featureHistory     = "history"
)

// Config holds provider connection settings.
type Config struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	APIKey     string        `yaml:"api_key"`
	Country    string        `yaml:"country" validate:"required"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
}

// APIError is an error reported inside a provider response body.
type APIError struct {
	Type        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Type, e.Description)
}

// Client is the provider API client.
type Client struct {
	baseURL string
	apiKey  string
	country string
	http    *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewClient creates a provider client. A nil hc gets a client with the
// configured timeout.
func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weather-provider",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		country: cfg.Country,
		http:    hc,
		backoff: BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		circuit: cb,
		log:     slog.Default().With("component", "provider"),
	}
}

// HourlyForecast returns the next day of hourly forecasts for city.
func (c *Client) HourlyForecast(ctx context.Context, city domain.City) ([]domain.ForecastPoint, error) {
	return c.forecast(ctx, FeatureHourly, city)
}

// TenDayForecast returns ten days of hourly forecasts for city.
func (c *Client) TenDayForecast(ctx context.Context, city domain.City) ([]domain.ForecastPoint, error) {
	return c.forecast(ctx, FeatureHourly10Day, city)
}

func (c *Client) forecast(ctx context.Context, feature string, city domain.City) ([]domain.ForecastPoint, error) {
	var payload forecastPayload
	if err := c.get(ctx, feature, feature, city, &payload); err != nil {
		return nil, err
	}

	zero := 0.0
	points := make([]domain.ForecastPoint, 0, len(payload.HourlyForecast))
	for i, h := range payload.HourlyForecast {
		year, err := atoi("year", h.FCTTIME.Year)
		if err != nil {
			return nil, fmt.Errorf("forecast entry %d: %w", i, err)
		}
		month, err := atoi("month", h.FCTTIME.Mon)
		if err != nil {
			return nil, fmt.Errorf("forecast entry %d: %w", i, err)
		}
		day, err := atoi("day", h.FCTTIME.Mday)
		if err != nil {
			return nil, fmt.Errorf("forecast entry %d: %w", i, err)
		}
		ts, err := wallClock(year, month, day, h.FCTTIME.Hour, h.FCTTIME.Min)
		if err != nil {
			return nil, fmt.Errorf("forecast entry %d: %w", i, err)
		}

		p := domain.ForecastPoint{CityID: city.ID, Time: ts, Pressure: &zero}
		if p.Temperature, err = number(h.Temp.Metric); err != nil {
			return nil, fmt.Errorf("forecast entry %d temperature: %w", i, err)
		}
		if p.Humidity, err = number(h.Humidity); err != nil {
			return nil, fmt.Errorf("forecast entry %d humidity: %w", i, err)
		}
		if p.PrecipitationProb, err = scaled(h.Pop, 0.01); err != nil {
			return nil, fmt.Errorf("forecast entry %d pop: %w", i, err)
		}
		if p.Wind, err = scaled(h.Wspd.Metric, 1/3.6); err != nil {
			return nil, fmt.Errorf("forecast entry %d wind: %w", i, err)
		}
		if code, ok := domain.ConditionCode(h.Condition); ok {
			p.Sky = &code
		}
		points = append(points, p)
	}
	return points, nil
}

// History returns the observations recorded for city on day.
func (c *Client) History(ctx context.Context, city domain.City, day time.Time) ([]domain.Observation, error) {
	var payload historyPayload
	feature := featureHistory + "_" + day.Format("20060102")
	if err := c.get(ctx, featureHistory, feature, city, &payload); err != nil {
		return nil, err
	}

	year, month, mday := day.Date()
	out := make([]domain.Observation, 0, len(payload.History.Observations))
	for i, o := range payload.History.Observations {
		ts, err := wallClock(year, int(month), mday, o.Date.Hour, o.Date.Min)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}

		obs := domain.Observation{CityID: city.ID, Time: ts}
		if obs.Temperature, err = number(o.Tempm); err != nil {
			return nil, fmt.Errorf("observation %d temperature: %w", i, err)
		}
		if obs.Humidity, err = number(o.Hum); err != nil {
			return nil, fmt.Errorf("observation %d humidity: %w", i, err)
		}
		if obs.Wind, err = scaled(o.Wspdm, 1/3.6); err != nil {
			return nil, fmt.Errorf("observation %d wind: %w", i, err)
		}
		// hPa to mmHg
		if obs.Pressure, err = scaled(o.Pressurem, 0.75); err != nil {
			return nil, fmt.Errorf("observation %d pressure: %w", i, err)
		}
		if obs.Precipitation, err = precipitation(o.Rain, o.Snow); err != nil {
			return nil, fmt.Errorf("observation %d precipitation: %w", i, err)
		}
		if code, ok := domain.ConditionCode(o.Conds); ok {
			obs.SkyState = &code
		}
		out = append(out, obs)
	}
	return out, nil
}

func precipitation(rain, snow string) (*int, error) {
	r, err := number(rain)
	if err != nil {
		return nil, err
	}
	s, err := number(snow)
	if err != nil {
		return nil, err
	}
	if r == nil && s == nil {
		return nil, nil
	}
	flag := 0
	if (r != nil && *r != 0) || (s != nil && *s != 0) {
		flag = 1
	}
	return &flag, nil
}

func (c *Client) endpoint(feature string, city domain.City) string {
	return fmt.Sprintf("%s/%s/%s/q/%s/%s.json",
		c.baseURL,
		url.PathEscape(c.apiKey),
		feature,
		url.PathEscape(c.country),
		url.PathEscape(city.Name),
	)
}

// get fetches one feature document and decodes it into out. metricFeature
// keeps the per-day history requests under a single label value.
func (c *Client) get(ctx context.Context, metricFeature, feature string, city domain.City, out interface{ apiError() error }) error {
	if c.apiKey == "" {
		return fmt.Errorf("provider api key is not configured")
	}

	u := c.endpoint(feature, city)
	resp, err := doRequest(ctx, c.http, c.backoff, c.circuit, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(metricFeature, "error").Inc()
		return fmt.Errorf("failed to fetch %s for %s: %w", feature, city.Name, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ProviderRequests.WithLabelValues(metricFeature, "error").Inc()
		return fmt.Errorf("failed to decode %s for %s: %w", feature, city.Name, err)
	}
	if err := out.apiError(); err != nil {
		metrics.ProviderRequests.WithLabelValues(metricFeature, "error").Inc()
		return fmt.Errorf("failed to fetch %s for %s: %w", feature, city.Name, err)
	}

	metrics.ProviderRequests.WithLabelValues(metricFeature, "success").Inc()
	c.log.Debug("Fetched provider document", "feature", feature, "city", city.Name)
	return nil
}

func (e *envelope) apiError() error {
	if e.Response.Error == nil {
		return nil
	}
	return &APIError{Type: e.Response.Error.Type, Description: e.Response.Error.Description}
}
