package loader

import (
	"errors"
	"fmt"
)

// Sentinel errors for the load failure taxonomy. Typed errors below match
// them through errors.Is.
var (
	ErrSchema        = errors.New("invalid key schema")
	ErrTransient     = errors.New("transient store failure")
	ErrSerialization = errors.New("value not representable")
	ErrExhausted     = errors.New("load attempts exhausted")
)

// SchemaError reports a key column spec, target identifier or dataset column
// list that cannot be used. It is returned before the store is contacted.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrSchema, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrSchema, e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// SerializationError reports a record field that cannot be written in the
// bulk transfer format.
type SerializationError struct {
	Row    int
	Column string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%v: row %d column %q: %s", ErrSerialization, e.Row, e.Column, e.Reason)
}

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// TransientStoreError wraps a store failure worth retrying: dropped
// connections, lock timeouts, deadlocks, serialization failures.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error        { return e.Err }
func (e *TransientStoreError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err as a TransientStoreError. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientStoreError{Op: op, Err: err}
}

// ExhaustedError is returned once the load gave up. Attempts counts the
// attempts actually made, which is below the budget when a failure was not
// retryable.
type ExhaustedError struct {
	Table    string
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("load into %s failed after %d attempt(s): %v", e.Table, e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error        { return e.Cause }
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
