// Package loader writes datasets into warehouse tables idempotently.
//
// A load replaces every target row whose key tuple appears in the dataset:
// inside one transaction the distinct key tuples are copied into a temporary
// staging table, matching target rows are deleted and the dataset is bulk
// inserted. Loading the same dataset twice leaves the table as a single load
// would. Transient store failures are retried with linear backoff; when the
// load gives up a single notification is sent.
//
// The loader does not lock across calls. Callers loading overlapping key
// tuples into the same table must serialize those calls themselves.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/weatherload/internal/metrics"
)

// Loader performs idempotent bulk loads through a Connector.
type Loader struct {
	connector Connector
	policy    RetryPolicy
	nullRepr  *Value
	notifier  Notifier
	sleeper   Sleeper
	log       *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(l *Loader) { l.policy = p }
}

// WithNullRepresentation substitutes v for every null field of the inserted
// rows. Key columns are never null, so staging is unaffected.
func WithNullRepresentation(v Value) Option {
	return func(l *Loader) { l.nullRepr = &v }
}

// WithNotifier sets the sink receiving the failure message.
func WithNotifier(n Notifier) Option {
	return func(l *Loader) { l.notifier = n }
}

// WithSleeper replaces the timer based backoff sleep.
func WithSleeper(s Sleeper) Option {
	return func(l *Loader) { l.sleeper = s }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New creates a Loader writing through c.
func New(c Connector, opts ...Option) *Loader {
	l := &Loader{
		connector: c,
		policy:    DefaultRetryPolicy,
		sleeper:   timerSleeper{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// plan is the validated, store-ready form of a dataset.
type plan struct {
	columns []string
	rows    [][]Value
	tuples  []KeyTuple
}

// attemptStats is what a successful attempt reports.
type attemptStats struct {
	staged   int64
	deleted  int64
	inserted int64
}

// Load replaces the rows of target identified by the key tuples of ds with
// the records of ds.
//
// SchemaError and SerializationError are returned before any store access.
// Once attempts start, the only error returned is ExhaustedError, unless ctx
// is cancelled, in which case the context error is returned and no
// notification is sent.
func (l *Loader) Load(ctx context.Context, ds Dataset, target Identifier, keys KeyColumnSpec) error {
	if err := keys.Validate(); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if err := l.policy.Validate(); err != nil {
		return err
	}
	if ds.Len() == 0 {
		l.log.Debug("Empty dataset, nothing to load", "table", target)
		return nil
	}

	p, err := l.prepare(ds, keys)
	if err != nil {
		return err
	}

	table := target.String()
	log := l.log.With("table", table, "load_id", uuid.NewString())
	log.Debug("Starting idempotent load",
		"rows", len(p.rows),
		"key_tuples", len(p.tuples),
		"max_attempts", l.policy.MaxAttempts,
	)

	var lastErr error
	attempt := 1
	for ; attempt <= l.policy.MaxAttempts; attempt++ {
		if delay := l.policy.DelayBeforeAttempt(attempt); delay > 0 {
			log.Info("Backing off before retry", "attempt", attempt, "delay", delay)
			if err := l.sleeper.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		start := time.Now()
		stats, err := l.attempt(ctx, p, target, keys)
		metrics.LoadDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.LoadAttempts.WithLabelValues(table, "success").Inc()
			metrics.RowsDeleted.WithLabelValues(table).Add(float64(stats.deleted))
			metrics.RowsWritten.WithLabelValues(table).Add(float64(stats.inserted))
			log.Info("Load committed",
				"attempt", attempt,
				"deleted", stats.deleted,
				"inserted", stats.inserted,
				"duration", time.Since(start),
			)
			return nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.LoadAttempts.WithLabelValues(table, "cancelled").Inc()
			return ctxErr
		}

		action := Classify(err)
		if action == ActionFatal {
			metrics.LoadAttempts.WithLabelValues(table, "fatal").Inc()
			log.Error("Load attempt failed with non-retryable error", "attempt", attempt, "error", err)
			break
		}
		metrics.LoadAttempts.WithLabelValues(table, "retry").Inc()
		log.Warn("Load attempt failed", "attempt", attempt, "error", err)
	}
	if attempt > l.policy.MaxAttempts {
		attempt = l.policy.MaxAttempts
	}

	exhausted := &ExhaustedError{Table: table, Attempts: attempt, Cause: lastErr}
	l.notify(ctx, log, exhausted)
	return exhausted
}

// attempt runs one transaction. The transaction is rolled back on every exit
// path that does not reach a successful commit, panics included.
func (l *Loader) attempt(ctx context.Context, p plan, target Identifier, keys KeyColumnSpec) (stats attemptStats, err error) {
	tx, err := l.connector.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			l.log.Warn("Failed to roll back load transaction", "table", target, "error", rbErr)
		}
	}()

	staging := stagingName()
	if err := tx.CreateStaging(ctx, staging, keys); err != nil {
		return stats, fmt.Errorf("failed to create staging table: %w", err)
	}
	if stats.staged, err = tx.CopyKeys(ctx, staging, keys, p.tuples); err != nil {
		return stats, fmt.Errorf("failed to stage key tuples: %w", err)
	}
	if stats.deleted, err = tx.DeleteMatching(ctx, target, staging, keys); err != nil {
		return stats, fmt.Errorf("failed to delete replaced rows: %w", err)
	}
	if stats.inserted, err = tx.CopyRows(ctx, target, p.columns, p.rows); err != nil {
		return stats, fmt.Errorf("failed to insert rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return stats, nil
}

// prepare validates ds against keys, applies the null representation and
// collects the distinct key tuples.
func (l *Loader) prepare(ds Dataset, keys KeyColumnSpec) (plan, error) {
	if len(ds.Columns) == 0 {
		return plan{}, &SchemaError{Reason: "dataset has no columns"}
	}
	colIndex := make(map[string]int, len(ds.Columns))
	for i, c := range ds.Columns {
		if !identPattern.MatchString(c) {
			return plan{}, &SchemaError{Field: c, Reason: "dataset column is not a plain identifier"}
		}
		if _, dup := colIndex[c]; dup {
			return plan{}, &SchemaError{Field: c, Reason: "duplicate dataset column"}
		}
		colIndex[c] = i
	}
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := colIndex[k.Name]; !ok {
			return plan{}, &SchemaError{Field: k.Name, Reason: "key column missing from dataset columns"}
		}
		isKey[k.Name] = true
	}

	kinds := make([]Kind, len(ds.Columns))
	rows := make([][]Value, 0, len(ds.Records))
	seen := make(map[string]struct{})
	var tuples []KeyTuple

	for i, rec := range ds.Records {
		if len(rec) != len(ds.Columns) {
			for name := range rec {
				if _, ok := colIndex[name]; !ok {
					return plan{}, &SerializationError{Row: i, Column: name, Reason: "field not in dataset columns"}
				}
			}
		}
		row := make([]Value, len(ds.Columns))
		for j, col := range ds.Columns {
			v, ok := rec[col]
			if !ok {
				return plan{}, &SerializationError{Row: i, Column: col, Reason: "missing field"}
			}
			if v.IsNull() {
				if isKey[col] {
					return plan{}, &SerializationError{Row: i, Column: col, Reason: "key column is null"}
				}
				if l.nullRepr != nil {
					v = *l.nullRepr
				}
				row[j] = v
				continue
			}
			if !v.Finite() {
				return plan{}, &SerializationError{Row: i, Column: col, Reason: "non-finite float; mark the field null instead"}
			}
			switch {
			case kinds[j] == KindNull:
				kinds[j] = v.Kind()
			case kinds[j] != v.Kind():
				return plan{}, &SerializationError{
					Row:    i,
					Column: col,
					Reason: fmt.Sprintf("%s value in %s column", v.Kind(), kinds[j]),
				}
			}
			row[j] = v
		}
		rows = append(rows, row)

		t := Project(rec, keys)
		k := t.Key()
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			tuples = append(tuples, t)
		}
	}

	return plan{columns: ds.Columns, rows: rows, tuples: tuples}, nil
}

func (l *Loader) notify(ctx context.Context, log *slog.Logger, exhausted *ExhaustedError) {
	if l.notifier == nil {
		log.Error("Load exhausted, no notifier configured", "error", exhausted.Cause)
		return
	}
	msg := fmt.Sprintf("idempotent upload to %s failed after %d attempt(s):\n%v",
		exhausted.Table, exhausted.Attempts, exhausted.Cause)
	if err := l.notifier.Notify(context.WithoutCancel(ctx), msg); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.Error("Failed to send load failure notification", "error", errors.Join(err, exhausted.Cause))
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
}

// stagingName returns a fresh temp table name, unique per attempt.
func stagingName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "weatherload_keys_" + id[:16]
}
