package dberrors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ledgerguard/src/deadlock"
	"ledgerguard/src/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
		severity string
		action   string
	}{
		{
			name:     "deadlock victim",
			err:      &deadlock.DeadlockError{VictimTxID: "tx1", Cycle: []string{"tx1", "tx2"}},
			category: model.CategoryDeadlock,
			severity: model.SeverityMedium,
			action:   model.RecoveryRetry,
		},
		{
			name: "validation failure",
			err: &ValidationError{TransactionID: "tx1", Level: model.ValidationStrict, Violations: []RuleViolation{
				{Table: "orders", Column: "quantity", Predicate: model.PredicatePositive, RecordID: "9", Detail: "value -1"},
			}},
			category: model.CategoryConstraint,
			severity: model.SeverityMedium,
			action:   model.RecoveryIgnore,
		},
		{
			name:     "duplicated key sentinel",
			err:      fmt.Errorf("insert orders: %w", gorm.ErrDuplicatedKey),
			category: model.CategoryConstraint,
			severity: model.SeverityMedium,
			action:   model.RecoveryIgnore,
		},
		{
			name:     "foreign key sentinel",
			err:      gorm.ErrForeignKeyViolated,
			category: model.CategoryConstraint,
			severity: model.SeverityMedium,
			action:   model.RecoveryIgnore,
		},
		{
			name:     "postgres deadlock code",
			err:      &pgconn.PgError{Code: "40P01", Message: "deadlock detected"},
			category: model.CategoryDeadlock,
			severity: model.SeverityMedium,
			action:   model.RecoveryRetry,
		},
		{
			name:     "postgres statement timeout",
			err:      &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"},
			category: model.CategoryTimeout,
			severity: model.SeverityMedium,
			action:   model.RecoveryRetry,
		},
		{
			name:     "postgres not null violation",
			err:      &pgconn.PgError{Code: "23502", Message: "null value in column"},
			category: model.CategoryConstraint,
			severity: model.SeverityMedium,
			action:   model.RecoveryIgnore,
		},
		{
			name:     "postgres connection failure",
			err:      &pgconn.PgError{Code: "08006", Message: "connection failure"},
			category: model.CategoryConnection,
			severity: model.SeverityHigh,
			action:   model.RecoveryReconnect,
		},
		{
			name:     "context deadline",
			err:      fmt.Errorf("query orders: %w", context.DeadlineExceeded),
			category: model.CategoryTimeout,
			severity: model.SeverityMedium,
			action:   model.RecoveryRetry,
		},
		{
			name:     "bad connection",
			err:      driver.ErrBadConn,
			category: model.CategoryConnection,
			severity: model.SeverityHigh,
			action:   model.RecoveryReconnect,
		},
		{
			name:     "connection refused",
			err:      fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED),
			category: model.CategoryConnection,
			severity: model.SeverityHigh,
			action:   model.RecoveryReconnect,
		},
		{
			name:     "unrecognized failure",
			err:      errors.New("something odd"),
			category: model.CategoryUnknown,
			severity: model.SeverityCritical,
			action:   model.RecoveryFail,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.category, got.Category)
			assert.Equal(t, tc.severity, got.Severity)
			assert.Equal(t, tc.action, got.RecoveryAction)
			assert.Equal(t, tc.err.Error(), got.Message, "the raw message is preserved for the audit trail")
			assert.False(t, got.OccurredAt.IsZero())
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(model.CategoryTimeout))
	assert.True(t, Retryable(model.CategoryDeadlock))
	assert.False(t, Retryable(model.CategoryConstraint))
	assert.False(t, Retryable(model.CategoryConnection))
	assert.False(t, Retryable(model.CategoryUnknown))
}

func TestRemediationHintCoversEveryCategory(t *testing.T) {
	for _, category := range []string{
		model.CategoryConnection,
		model.CategoryConstraint,
		model.CategoryTimeout,
		model.CategoryDeadlock,
		model.CategoryUnknown,
	} {
		assert.NotEmpty(t, RemediationHint(category), category)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	base := &ValidationError{TransactionID: "tx1", Level: model.ValidationParanoid}
	assert.Contains(t, base.Error(), "failed PARANOID validation")

	one := &ValidationError{TransactionID: "tx1", Level: model.ValidationStrict, Violations: []RuleViolation{
		{Table: "orders", Column: "price", Predicate: model.PredicatePositive, RecordID: "3", Detail: "value 0"},
	}}
	assert.Contains(t, one.Error(), "orders.price")
	assert.NotContains(t, one.Error(), "more violations")

	many := &ValidationError{TransactionID: "tx1", Level: model.ValidationStrict, Violations: []RuleViolation{
		{Table: "orders", Column: "price", Predicate: model.PredicatePositive, RecordID: "3", Detail: "value 0"},
		{Table: "orders", Column: "quantity", Predicate: model.PredicatePositive, RecordID: "3", Detail: "value -2"},
	}}
	assert.Contains(t, many.Error(), "and 1 more violations")
}
