package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vietddude/weatherload/internal/loader"
	"github.com/vietddude/weatherload/internal/metrics"
)

// Connector implements loader.Connector on a pgx pool. Every Begin acquires
// a pooled connection that goes back to the pool on Commit or Rollback.
type Connector struct {
	pool *pgxpool.Pool
}

// NewConnector opens a pgx pool for bulk loads.
func NewConnector(ctx context.Context, cfg Config) (*Connector, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	// Set pool configuration
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 4
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connector{pool: pool}, nil
}

// Begin starts the transaction for one load attempt.
func (c *Connector) Begin(ctx context.Context) (loader.Tx, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, classify("begin", err)
	}
	return &loadTx{tx: tx}, nil
}

// Health checks if the database is reachable.
func (c *Connector) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes every pooled connection.
func (c *Connector) Close() {
	c.pool.Close()
}

// StartMetricsCollector periodically publishes pool usage until ctx is done.
func (c *Connector) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat := c.pool.Stat()
				if stat.MaxConns() > 0 {
					usage := float64(stat.AcquiredConns()) / float64(stat.MaxConns()) * 100
					metrics.DBPoolUsage.Set(usage)
				}
			}
		}
	}()
}

// loadTx bundles the statements of one load attempt into a single pgx
// transaction.
type loadTx struct {
	tx pgx.Tx
}

func (t *loadTx) CreateStaging(ctx context.Context, staging string, keys loader.KeyColumnSpec) error {
	_, err := t.tx.Exec(ctx, createStagingSQL(staging, keys))
	return classify("create staging table", err)
}

func (t *loadTx) CopyKeys(ctx context.Context, staging string, keys loader.KeyColumnSpec, tuples []loader.KeyTuple) (int64, error) {
	src := pgx.CopyFromSlice(len(tuples), func(i int) ([]any, error) {
		return values(tuples[i]), nil
	})
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{staging}, keys.Names(), src)
	return n, classify("copy key tuples", err)
}

func (t *loadTx) DeleteMatching(ctx context.Context, target loader.Identifier, staging string, keys loader.KeyColumnSpec) (int64, error) {
	tag, err := t.tx.Exec(ctx, deleteMatchingSQL(target, staging, keys))
	if err != nil {
		return 0, classify("delete matching rows", err)
	}
	return tag.RowsAffected(), nil
}

func (t *loadTx) CopyRows(ctx context.Context, target loader.Identifier, columns []string, rows [][]loader.Value) (int64, error) {
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return values(rows[i]), nil
	})
	n, err := t.tx.CopyFrom(ctx, tableIdent(target), columns, src)
	return n, classify("copy rows", err)
}

func (t *loadTx) Commit(ctx context.Context) error {
	return classify("commit", t.tx.Commit(ctx))
}

// Rollback is safe to call after Commit.
func (t *loadTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func values(row []loader.Value) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v.Any()
	}
	return out
}
