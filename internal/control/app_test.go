package control

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/weatherload/internal/core/config"
	"github.com/vietddude/weatherload/internal/core/domain"
	"github.com/vietddude/weatherload/internal/health"
)

type stubSource struct{}

func (stubSource) HourlyForecast(ctx context.Context, city domain.City) ([]domain.ForecastPoint, error) {
	t := 21.5
	return []domain.ForecastPoint{{CityID: city.ID, Time: time.Date(2017, 3, 15, 9, 0, 0, 0, time.UTC), Temperature: &t}}, nil
}

func (s stubSource) TenDayForecast(ctx context.Context, city domain.City) ([]domain.ForecastPoint, error) {
	return s.HourlyForecast(ctx, city)
}

func (stubSource) History(ctx context.Context, city domain.City, day time.Time) ([]domain.Observation, error) {
	return nil, nil
}

func TestApp_DryRunForecast(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = "postgres://unused"

	app, err := New(context.Background(), cfg, Options{DryRun: true, Source: stubSource{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	if app.DB() != nil || app.Store() == nil {
		t.Fatal("dry run must not connect to PostgreSQL")
	}
	if err := app.Runner().RunForecast(context.Background(), false); err != nil {
		t.Fatalf("RunForecast failed: %v", err)
	}
	if n := len(app.Store().Rows(cfg.Tables.Forecast)); n != len(cfg.Cities) {
		t.Errorf("expected one row per city, got %d", n)
	}
}

func TestApp_MonitorInMemoryMode(t *testing.T) {
	app, err := New(context.Background(), config.Default(), Options{Source: stubSource{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	report := app.Monitor().CheckHealth(context.Background())
	if report.SystemStatus != health.StatusHealthy {
		t.Errorf("expected healthy report without dependencies, got %+v", report)
	}
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Schedule.ForecastInterval = time.Hour

	app, err := New(context.Background(), cfg, Options{Source: stubSource{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
