package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/academy/feebilling/internal/domain/billing"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the billing engine reacts to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgConnectionException  = "08" // class prefix
)

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsTransient reports whether err is a storage failure worth retrying:
// serialization failures, deadlocks, lock timeouts and lost connections.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return strings.HasPrefix(pgErr.Code, pgConnectionException)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// translateError maps storage errors onto the billing error taxonomy.
// Transient errors are wrapped so that both the sentinel and the cause stay visible.
func translateError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case IsTransient(err):
		return fmt.Errorf("%s: %w: %w", op, billing.ErrTransientStore, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
