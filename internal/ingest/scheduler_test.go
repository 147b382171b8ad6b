package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/weatherload/internal/core/domain"
)

func TestScheduler_RunsForecastJob(t *testing.T) {
	src := &fakeSource{forecasts: map[int64][]domain.ForecastPoint{
		102: forecast(102, "2017-03-15", 10),
	}}
	r, store := newEnv(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(r, ScheduleConfig{ForecastInterval: time.Hour})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for len(store.Rows("weather_forecast")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled forecast never loaded rows")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_InvalidHistoryTime(t *testing.T) {
	r, _ := newEnv(t, &fakeSource{})

	s := NewScheduler(r, ScheduleConfig{HistoryAt: "25:99"})
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid history time")
	}
}

func TestScheduler_NoJobs(t *testing.T) {
	r, _ := newEnv(t, &fakeSource{})

	s := NewScheduler(r, ScheduleConfig{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("expected nil error with nothing scheduled, got %v", err)
	}
	s.Stop()
}
