package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vietddude/weatherload/internal/loader"
)

// SQLSTATE codes worth another attempt.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"55006": true, // object_in_use
	"57014": true, // query_canceled (statement/lock timeout)
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"58000": true, // system_error
	"58030": true, // io_error
}

// transientClasses lists SQLSTATE classes that are transient as a whole.
var transientClasses = []string{
	"08", // connection_exception
	"53", // insufficient_resources
}

func isTransientCode(code string) bool {
	if transientCodes[code] {
		return true
	}
	for _, class := range transientClasses {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	return false
}

// classify wraps err as loader.TransientStoreError when another attempt may
// succeed. Context errors and permanent server errors are returned wrapped
// with the operation name only.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isTransientCode(pgErr.Code) {
			return loader.Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		pgconn.SafeToRetry(err),
		pgconn.Timeout(err):
		return loader.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
