package loader

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy defines the attempt budget and the linear backoff between
// attempts.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// DefaultRetryPolicy waits 60s, 120s, 180s and 240s before attempts 2..5.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   60 * time.Second,
}

// Validate checks the attempt budget.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry policy: max attempts %d < 1", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("invalid retry policy: negative base delay %s", p.BaseDelay)
	}
	return nil
}

// DelayBeforeAttempt returns the pause preceding the n-th attempt (1-based).
// There is no delay before the first attempt.
func (p RetryPolicy) DelayBeforeAttempt(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(n-1)
}

// TotalDelay returns the sum of all backoff sleeps of one load.
func (p RetryPolicy) TotalDelay() time.Duration {
	var total time.Duration
	for n := 2; n <= p.MaxAttempts; n++ {
		total += p.DelayBeforeAttempt(n)
	}
	return total
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ErrorAction determines how the attempt loop handles a failure.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFatal
)

func (a ErrorAction) String() string {
	if a == ActionRetry {
		return "retry"
	}
	return "fatal"
}

// Classify maps an attempt failure to an action. Only transient store errors
// are retried; everything else stops the loop.
func Classify(err error) ErrorAction {
	switch {
	case err == nil:
		return ActionRetry
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ActionFatal
	case errors.Is(err, ErrTransient):
		return ActionRetry
	default:
		return ActionFatal
	}
}
