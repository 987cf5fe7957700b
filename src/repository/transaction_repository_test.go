package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ledgerguard/src/model"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTransactionRepositoryClose(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TransactionRepository{}).WithDB(mockDB)

	closedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transactions" SET "closed_at"=$1,"status"=$2 WHERE id = $3 AND status = $4`)).
		WithArgs(closedAt, model.TxStatusCommitted, "tx-1", model.TxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Close(context.Background(), "tx-1", model.TxStatusCommitted, closedAt); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}

	// Closing again matches no PENDING row; the terminal status stays put.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transactions" SET "closed_at"=$1,"status"=$2 WHERE id = $3 AND status = $4`)).
		WithArgs(closedAt, model.TxStatusRolledBack, "tx-1", model.TxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.Close(context.Background(), "tx-1", model.TxStatusRolledBack, closedAt); err != nil {
		t.Fatalf("expected repeated close to be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTransactionRepositoryHistory(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TransactionRepository{}).WithDB(mockDB)

	openedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "type", "user_id", "validation_level", "status", "opened_at", "closed_at"}).
		AddRow("tx-2", model.TxTypePortfolioUpdate, 7, model.ValidationBasic, model.TxStatusRolledBack, openedAt.Add(time.Minute), openedAt.Add(2*time.Minute)).
		AddRow("tx-1", model.TxTypeTradeExecution, 7, model.ValidationStrict, model.TxStatusCommitted, openedAt, openedAt.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transactions" WHERE user_id = $1 ORDER BY opened_at DESC LIMIT $2`)).
		WithArgs(uint(7), 10).
		WillReturnRows(rows)

	history, err := repo.History(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("unexpected error fetching history: %v", err)
	}

	if len(history) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(history))
	}

	if history[0].ID != "tx-2" || history[1].ID != "tx-1" {
		t.Fatalf("history not returned most recent first: %+v", history)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTransactionRepositoryCountsByType(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TransactionRepository{}).WithDB(mockDB)

	rows := sqlmock.NewRows([]string{"type", "count"}).
		AddRow(model.TxTypeTradeExecution, 5).
		AddRow(model.TxTypePortfolioUpdate, 2)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT type, COUNT(*) AS count FROM "transactions" GROUP BY "type"`)).
		WillReturnRows(rows)

	counts, err := repo.CountsByType(context.Background())
	if err != nil {
		t.Fatalf("unexpected error counting by type: %v", err)
	}

	if counts[model.TxTypeTradeExecution] != 5 || counts[model.TxTypePortfolioUpdate] != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
