package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/weatherload/internal/core/domain"
	"github.com/vietddude/weatherload/internal/loader"
)

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Health(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Health(ctx context.Context) error { return f(ctx) }

// LatestReader returns the newest stored datetime for a city.
type LatestReader interface {
	LatestObservation(ctx context.Context, table loader.Identifier, cityID int64) (time.Time, bool, error)
}

// FailureCounter reports journaled load failures.
type FailureCounter interface {
	Count(ctx context.Context) (int64, error)
}

type component struct {
	name     string
	pinger   Pinger
	critical bool
}

// Monitor aggregates health status from the store, Redis and data freshness.
type Monitor struct {
	components   []component
	latest       LatestReader
	historyTable loader.Identifier
	cities       []domain.City
	maxLagDays   int
	failures     FailureCounter
	now          func() time.Time

	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{maxLagDays: 2, now: time.Now}
}

// AddComponent registers a dependency. A failing critical component makes
// the whole system critical; others degrade it.
func (m *Monitor) AddComponent(name string, p Pinger, critical bool) *Monitor {
	m.components = append(m.components, component{name: name, pinger: p, critical: critical})
	return m
}

// WatchHistory reports cities whose newest observation is older than
// maxLagDays as degraded.
func (m *Monitor) WatchHistory(r LatestReader, table loader.Identifier, cities []domain.City, maxLagDays int) *Monitor {
	m.latest = r
	m.historyTable = table
	m.cities = cities
	if maxLagDays > 0 {
		m.maxLagDays = maxLagDays
	}
	return m
}

// WatchFailures degrades the system while failed loads are journaled.
func (m *Monitor) WatchFailures(c FailureCounter) *Monitor {
	m.failures = c
	return m
}

// CheckHealth runs every check. Results are cached for 10 seconds.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < 10*time.Second {
		return *m.lastReport
	}

	report := HealthReport{SystemStatus: StatusHealthy, CheckedAt: now.UTC()}

	for _, c := range m.components {
		ch := ComponentHealth{Name: c.name, Status: StatusHealthy}
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := c.pinger.Health(checkCtx); err != nil {
			ch.Error = err.Error()
			ch.Status = StatusDegraded
			if c.critical {
				ch.Status = StatusCritical
			}
		}
		cancel()
		report.Components = append(report.Components, ch)
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	if m.failures != nil {
		n, err := m.failures.Count(ctx)
		ch := ComponentHealth{Name: "failed_loads", Status: StatusHealthy}
		switch {
		case err != nil:
			ch.Status, ch.Error = StatusDegraded, err.Error()
		case n > 0:
			ch.Status = StatusDegraded
		}
		report.Components = append(report.Components, ch)
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	if m.latest != nil {
		today := truncateDay(now)
		for _, city := range m.cities {
			h := CityHealth{City: city.Name, Status: StatusHealthy}
			latest, ok, err := m.latest.LatestObservation(ctx, m.historyTable, city.ID)
			switch {
			case err != nil:
				h.Status = StatusDegraded
			case !ok:
				h.Status = StatusDegraded
			default:
				day := truncateDay(latest)
				h.LatestDay = &day
				h.LagDays = int(today.Sub(day).Hours() / 24)
				if h.LagDays > m.maxLagDays {
					h.Status = StatusDegraded
				}
			}
			report.Cities = append(report.Cities, h)
			report.SystemStatus = worst(report.SystemStatus, h.Status)
		}
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
