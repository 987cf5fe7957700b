package dberrors

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"ledgerguard/src/deadlock"
	"ledgerguard/src/model"
)

// Classify maps a raw store failure into a categorized DatabaseError carrying
// severity and a recovery action. It is a pure function: persisting the
// result is the caller's job, and the classification never drops an error.
//
// Matching works on typed error kinds first (the store adapter runs with
// gorm's TranslateError, so dialect errors arrive as gorm sentinels or
// pgconn.PgError values); raw string sniffing is deliberately absent.
func Classify(err error) *model.DatabaseError {
	dbErr := &model.DatabaseError{
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	}

	category, severity, action := classify(err)
	dbErr.Category = category
	dbErr.Severity = severity
	dbErr.RecoveryAction = action
	return dbErr
}

func classify(err error) (category, severity, action string) {
	var dl *deadlock.DeadlockError
	if errors.As(err, &dl) {
		return model.CategoryDeadlock, model.SeverityMedium, model.RecoveryRetry
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return model.CategoryConstraint, model.SeverityMedium, model.RecoveryIgnore
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return model.CategoryConstraint, model.SeverityMedium, model.RecoveryIgnore
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPg(pgErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.CategoryTimeout, model.SeverityMedium, model.RecoveryRetry
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.CategoryTimeout, model.SeverityMedium, model.RecoveryRetry
	}

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, gorm.ErrInvalidDB),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return model.CategoryConnection, model.SeverityHigh, model.RecoveryReconnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return model.CategoryConnection, model.SeverityHigh, model.RecoveryReconnect
	}

	return model.CategoryUnknown, model.SeverityCritical, model.RecoveryFail
}

// classifyPg maps postgres SQLSTATE codes that arrive untranslated.
func classifyPg(pgErr *pgconn.PgError) (category, severity, action string) {
	code := pgErr.Code
	switch {
	case code == "40P01" || code == "40001":
		// deadlock_detected / serialization_failure
		return model.CategoryDeadlock, model.SeverityMedium, model.RecoveryRetry
	case code == "57014":
		// query_canceled, typically a statement timeout
		return model.CategoryTimeout, model.SeverityMedium, model.RecoveryRetry
	case len(code) >= 2 && code[:2] == "23":
		// integrity_constraint_violation class
		return model.CategoryConstraint, model.SeverityMedium, model.RecoveryIgnore
	case len(code) >= 2 && code[:2] == "08":
		// connection_exception class
		return model.CategoryConnection, model.SeverityHigh, model.RecoveryReconnect
	}
	return model.CategoryUnknown, model.SeverityCritical, model.RecoveryFail
}

// Retryable reports whether a category may be re-attempted by the retry
// executor. Constraint and validation failures indicate a logic or data
// error, not an infrastructure blip, and are never retried.
func Retryable(category string) bool {
	return category == model.CategoryTimeout || category == model.CategoryDeadlock
}

// RemediationHint returns the operator-facing hint surfaced with terminal
// failures instead of the raw store error string.
func RemediationHint(category string) string {
	switch category {
	case model.CategoryConnection:
		return "reconnect to the database and verify connectivity"
	case model.CategoryConstraint:
		return "correct the offending data; the statement violates a declared constraint"
	case model.CategoryTimeout:
		return "reduce batch size or raise the statement timeout"
	case model.CategoryDeadlock:
		return "transient lock contention; the operation is safe to retry"
	default:
		return "unrecognized failure; inspect the error log before retrying"
	}
}
