package loader

import "context"

// Connector opens the transaction backing one load attempt.
type Connector interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single store transaction together with its connection. Commit or
// Rollback releases both; Rollback after Commit must be a no-op.
//
// Implementations should wrap retryable failures with Transient so the
// attempt loop can classify them.
type Tx interface {
	// CreateStaging creates a temporary table that disappears with the
	// transaction, one column per key using the declared types.
	CreateStaging(ctx context.Context, staging string, keys KeyColumnSpec) error
	// CopyKeys bulk loads key tuples into the staging table.
	CopyKeys(ctx context.Context, staging string, keys KeyColumnSpec, tuples []KeyTuple) (int64, error)
	// DeleteMatching removes target rows whose key projection equals a staged
	// tuple, comparing all key columns at once.
	DeleteMatching(ctx context.Context, target Identifier, staging string, keys KeyColumnSpec) (int64, error)
	// CopyRows bulk loads rows into target. Row values follow columns order.
	CopyRows(ctx context.Context, target Identifier, columns []string, rows [][]Value) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Notifier receives one message when a load gives up.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg string) error

func (f NotifierFunc) Notify(ctx context.Context, msg string) error { return f(ctx, msg) }
