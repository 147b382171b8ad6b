// Package ingest fetches weather data per city and hands it to the
// idempotent loader.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/weatherload/internal/core/domain"
	"github.com/vietddude/weatherload/internal/loader"
	"github.com/vietddude/weatherload/internal/metrics"
)

// Source fetches provider data for one city.
type Source interface {
	HourlyForecast(ctx context.Context, city domain.City) ([]domain.ForecastPoint, error)
	TenDayForecast(ctx context.Context, city domain.City) ([]domain.ForecastPoint, error)
	History(ctx context.Context, city domain.City, day time.Time) ([]domain.Observation, error)
}

// Loader writes a dataset idempotently.
type Loader interface {
	Load(ctx context.Context, ds loader.Dataset, target loader.Identifier, keys loader.KeyColumnSpec) error
}

// LatestReader returns the newest stored datetime for a city.
type LatestReader interface {
	LatestObservation(ctx context.Context, table loader.Identifier, cityID int64) (time.Time, bool, error)
}

// Progress records the last day fully loaded per partition.
type Progress interface {
	SetProgress(ctx context.Context, table string, cityID int64, day time.Time) error
}

// FailureJournal records loads that exhausted their attempts.
type FailureJournal interface {
	Add(ctx context.Context, fl domain.FailedLoad) error
}

// Config holds runner settings.
type Config struct {
	ForecastTable loader.Identifier
	HistoryTable  loader.Identifier
	Cities        []domain.City
	Concurrency   int
	// LockRefresh is how often a held partition lease is extended while a
	// load runs. Zero disables the heartbeat.
	LockRefresh time.Duration
}

// Runner drives forecast and history ingestion for the configured cities.
type Runner struct {
	cfg      Config
	source   Source
	loader   Loader
	latest   LatestReader
	locker   Locker
	progress Progress
	failures FailureJournal
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLatestReader enables history catch-up.
func WithLatestReader(lr LatestReader) Option {
	return func(r *Runner) { r.latest = lr }
}

// WithLocker replaces the in-process locker.
func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithProgress records per-partition progress after each history day.
func WithProgress(p Progress) Option {
	return func(r *Runner) { r.progress = p }
}

// WithFailureJournal records exhausted loads.
func WithFailureJournal(j FailureJournal) Option {
	return func(r *Runner) { r.failures = j }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a new Runner.
func NewRunner(cfg Config, src Source, l Loader, opts ...Option) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	r := &Runner{
		cfg:    cfg,
		source: src,
		loader: l,
		locker: NewLocalLocker(),
		now:    time.Now,
		log:    slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunForecast loads the hourly forecast, or the ten day forecast when long
// is set, for every city.
func (r *Runner) RunForecast(ctx context.Context, long bool) error {
	kind := domain.JobForecast
	if long {
		kind = domain.JobLongForecast
	}
	return r.forEachCity(ctx, func(ctx context.Context, city domain.City) error {
		return r.forecastCity(ctx, kind, city, "")
	})
}

// RunHistoryRange loads the observations of every day in [start, end) for
// every city. start and end on the same day load that day only.
func (r *Runner) RunHistoryRange(ctx context.Context, start, end time.Time) error {
	days, err := Days(start, end)
	if err != nil {
		return err
	}
	return r.forEachCity(ctx, func(ctx context.Context, city domain.City) error {
		return r.historyCity(ctx, city, days, "")
	})
}

// RunHistoryCatchUp reloads each city from the day of its newest stored
// observation through yesterday. Cities with no stored rows are skipped.
func (r *Runner) RunHistoryCatchUp(ctx context.Context) error {
	if r.latest == nil {
		return errors.New("history catch-up needs a database reader")
	}
	today := Day(r.now())

	return r.forEachCity(ctx, func(ctx context.Context, city domain.City) error {
		latest, ok, err := r.latest.LatestObservation(ctx, r.cfg.HistoryTable, city.ID)
		if err != nil {
			return err
		}
		if !ok {
			r.log.Warn("No stored history, use an explicit range to seed it", "city", city.Name)
			return nil
		}

		start := Day(latest)
		if !start.Before(today) {
			r.log.Info("History is up to date", "city", city.Name, "latest", latest)
			return nil
		}
		days, err := Days(start, today)
		if err != nil {
			return err
		}
		return r.historyCity(ctx, city, days, "")
	})
}

// Replay re-runs the load recorded in fl. A replay that fails again
// overwrites fl in the journal instead of adding a new entry.
func (r *Runner) Replay(ctx context.Context, fl domain.FailedLoad) error {
	city := domain.City{Name: fl.CityName, ID: fl.CityID}
	switch fl.Kind {
	case domain.JobForecast, domain.JobLongForecast:
		return r.forecastCity(ctx, fl.Kind, city, fl.ID)
	case domain.JobHistory:
		days, err := Days(fl.Start, fl.End.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		return r.historyCity(ctx, city, days, fl.ID)
	default:
		return fmt.Errorf("unknown job kind %q", fl.Kind)
	}
}

// forEachCity runs fn for every city with bounded concurrency. A failing
// city does not stop the others; all failures are joined.
func (r *Runner) forEachCity(ctx context.Context, fn func(context.Context, domain.City) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(r.cfg.Concurrency)

	for _, city := range r.cfg.Cities {
		g.Go(func() error {
			if err := fn(ctx, city); err != nil {
				r.log.Error("City ingestion failed", "city", city.Name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", city.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// journalID names the failed-load entry a failure overwrites; empty records
// a new entry.
func (r *Runner) forecastCity(ctx context.Context, kind domain.JobKind, city domain.City, journalID string) error {
	fetch := r.source.HourlyForecast
	if kind == domain.JobLongForecast {
		fetch = r.source.TenDayForecast
	}
	points, err := fetch(ctx, city)
	if err != nil {
		return err
	}

	now := Day(r.now())
	if err := r.load(ctx, journalID, kind, r.cfg.ForecastTable, city, now, now, ForecastDataset(points)); err != nil {
		return err
	}
	r.log.Info("Forecast loaded", "city", city.Name, "city_id", city.ID, "rows", len(points), "kind", kind)
	return nil
}

// historyCity loads days in order and stops at the first failure so that
// recorded progress stays contiguous.
func (r *Runner) historyCity(ctx context.Context, city domain.City, days []time.Time, journalID string) error {
	table := r.cfg.HistoryTable
	for _, day := range days {
		obs, err := r.source.History(ctx, city, day)
		if err != nil {
			return fmt.Errorf("history %s: %w", day.Format(time.DateOnly), err)
		}
		if err := r.load(ctx, journalID, domain.JobHistory, table, city, day, day, HistoryDataset(obs)); err != nil {
			return fmt.Errorf("history %s: %w", day.Format(time.DateOnly), err)
		}

		if r.progress != nil {
			if err := r.progress.SetProgress(ctx, table.String(), city.ID, day); err != nil {
				r.log.Warn("Failed to record progress", "city", city.Name, "day", day, "error", err)
			}
		}
		metrics.LastLoadedDay.WithLabelValues(table.String(), strconv.FormatInt(city.ID, 10)).Set(float64(day.Unix()))
		r.log.Info("History loaded", "city", city.Name, "city_id", city.ID, "day", day.Format(time.DateOnly), "rows", len(obs))
	}
	return nil
}

func (r *Runner) load(
	ctx context.Context,
	journalID string,
	kind domain.JobKind,
	table loader.Identifier,
	city domain.City,
	start, end time.Time,
	ds *loader.Dataset,
) error {
	lease, err := r.locker.Acquire(ctx, table.String(), city.ID)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("Failed to release lock", "table", table, "city", city.Name, "error", err)
		}
	}()

	loadCtx, stop := r.keepAlive(ctx, lease, table, city)
	err = r.loader.Load(loadCtx, *ds, table, WeatherKeys)
	// A load that committed before the lease was found lost still counts.
	if lost := stop(); lost != nil && err != nil {
		return lost
	}
	if err == nil {
		return nil
	}

	var exhausted *loader.ExhaustedError
	if r.failures != nil && errors.As(err, &exhausted) {
		id := journalID
		if id == "" {
			id = uuid.NewString()
		}
		fl := domain.FailedLoad{
			ID:       id,
			Kind:     kind,
			Table:    table.String(),
			CityID:   city.ID,
			CityName: city.Name,
			Start:    start,
			End:      end,
			Attempts: exhausted.Attempts,
			Error:    exhausted.Cause.Error(),
			FailedAt: r.now().UTC(),
		}
		if jerr := r.failures.Add(context.WithoutCancel(ctx), fl); jerr != nil {
			r.log.Error("Failed to journal failed load", "table", table, "city", city.Name, "error", jerr)
		}
	}
	return err
}

// keepAlive refreshes lease every LockRefresh until stop is called. When
// the lease is lost the returned context is cancelled and stop reports
// ErrLockLost.
func (r *Runner) keepAlive(ctx context.Context, lease Lease, table loader.Identifier, city domain.City) (context.Context, func() error) {
	if r.cfg.LockRefresh <= 0 {
		return ctx, func() error { return nil }
	}

	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.cfg.LockRefresh)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := lease.Refresh(ctx)
				if err != nil {
					r.log.Warn("Failed to refresh lock", "table", table, "city", city.Name, "error", err)
					continue
				}
				if !held {
					r.log.Error("Lock lost during load", "table", table, "city", city.Name)
					cancel(fmt.Errorf("%s:%d: %w", table, city.ID, ErrLockLost))
					return
				}
			}
		}
	}()

	return ctx, func() error {
		close(done)
		wg.Wait()
		cause := context.Cause(ctx)
		cancel(nil)
		if errors.Is(cause, ErrLockLost) {
			return cause
		}
		return nil
	}
}
