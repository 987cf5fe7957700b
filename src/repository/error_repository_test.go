package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ledgerguard/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestErrorRepositoryCreate(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&ErrorRepository{}).WithDB(mockDB)

	dbErr := &model.DatabaseError{
		Category:       model.CategoryTimeout,
		Severity:       model.SeverityMedium,
		RecoveryAction: model.RecoveryRetry,
		Operation:      "orders.insert",
		Message:        "context deadline exceeded",
		OccurredAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "error_log" (`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), dbErr); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestErrorRepositoryGetRecent(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&ErrorRepository{}).WithDB(mockDB)

	occurredAt := time.Now().UTC().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "category", "severity", "recovery_action", "operation", "message", "occurred_at", "resolved"}).
		AddRow(2, model.CategoryDeadlock, model.SeverityMedium, model.RecoveryRetry, "transaction:TRADE_EXECUTION", "deadlock detected", occurredAt, false).
		AddRow(1, model.CategoryTimeout, model.SeverityMedium, model.RecoveryRetry, "orders.insert", "timeout", occurredAt.Add(-time.Minute), false)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "error_log" WHERE occurred_at >= $1 ORDER BY occurred_at DESC`)).
		WillReturnRows(rows)

	errs, err := repo.GetRecent(context.Background(), 24)
	if err != nil {
		t.Fatalf("unexpected error fetching recent errors: %v", err)
	}

	if len(errs) != 2 {
		t.Fatalf("expected 2 recent errors, got %d", len(errs))
	}

	if errs[0].Category != model.CategoryDeadlock {
		t.Fatalf("errors not returned newest first: %+v", errs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestErrorRepositoryMarkResolved(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&ErrorRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "error_log" SET "resolved"=$1 WHERE id = $2`)).
		WithArgs(true, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MarkResolved(context.Background(), 7); err != nil {
		t.Fatalf("expected mark resolved to succeed, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "error_log" SET "resolved"=$1 WHERE id = $2`)).
		WithArgs(true, 999).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.MarkResolved(context.Background(), 999); err == nil {
		t.Fatal("expected an error for an unknown id")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestErrorRepositoryCleanupOld(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&ErrorRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "error_log" WHERE resolved = $1 AND occurred_at < $2`)).
		WithArgs(true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	removed, err := repo.CleanupOld(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error cleaning up: %v", err)
	}

	if removed != 3 {
		t.Fatalf("expected 3 removed rows, got %d", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}
