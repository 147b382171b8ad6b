package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryPolicy_DelayBeforeAttempt(t *testing.T) {
	p := DefaultRetryPolicy
	want := map[int]time.Duration{
		1: 0,
		2: 60 * time.Second,
		3: 120 * time.Second,
		4: 180 * time.Second,
		5: 240 * time.Second,
	}
	for n, d := range want {
		if got := p.DelayBeforeAttempt(n); got != d {
			t.Errorf("DelayBeforeAttempt(%d) = %v, want %v", n, got, d)
		}
	}
	if p.MaxAttempts != 5 {
		t.Errorf("default MaxAttempts = %d, want 5", p.MaxAttempts)
	}
}

func TestRetryPolicy_TotalDelay(t *testing.T) {
	if got := DefaultRetryPolicy.TotalDelay(); got != 600*time.Second {
		t.Errorf("default TotalDelay = %v, want 10m", got)
	}
	if got := (RetryPolicy{MaxAttempts: 1, BaseDelay: time.Minute}).TotalDelay(); got != 0 {
		t.Errorf("single attempt TotalDelay = %v, want 0", got)
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	if err := (RetryPolicy{MaxAttempts: 0}).Validate(); err == nil {
		t.Error("expected error for zero attempts")
	}
	if err := (RetryPolicy{MaxAttempts: 1, BaseDelay: -time.Second}).Validate(); err == nil {
		t.Error("expected error for negative delay")
	}
	if err := (RetryPolicy{MaxAttempts: 1}).Validate(); err != nil {
		t.Errorf("expected single attempt policy to be valid, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{Transient("begin", errors.New("connection refused")), ActionRetry},
		{fmt.Errorf("failed to commit: %w", Transient("commit", errors.New("deadlock detected"))), ActionRetry},
		{errors.New(`relation "weather" does not exist`), ActionFatal},
		{&SchemaError{Reason: "bad"}, ActionFatal},
		{&SerializationError{Column: "temperature", Reason: "nan"}, ActionFatal},
		{context.Canceled, ActionFatal},
		{Transient("copy", context.DeadlineExceeded), ActionFatal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.expect {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestTimerSleeper_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := timerSleeper{}.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return promptly on cancellation")
	}
}
