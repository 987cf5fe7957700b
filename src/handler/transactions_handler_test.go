package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"ledgerguard/src/model"
	"ledgerguard/src/txmanager"
)

type mockHistoryProvider struct {
	transactions []model.Transaction
	err          error
	userID       uint
	limit        int
	calledCount  int
}

func (m *mockHistoryProvider) GetTransactionHistory(ctx context.Context, userID uint, limit int) ([]model.Transaction, error) {
	m.calledCount++
	m.userID = userID
	m.limit = limit
	return m.transactions, m.err
}

type mockIntegrityReporter struct {
	report *txmanager.IntegrityReport
	err    error
}

func (m *mockIntegrityReporter) GetDataIntegrityReport(ctx context.Context) (*txmanager.IntegrityReport, error) {
	return m.report, m.err
}

func TestTransactionHistoryHandler_MissingUser(t *testing.T) {
	handler := TransactionHistoryHandler(&mockHistoryProvider{})

	req := httptest.NewRequest(http.MethodGet, "/transactions/history", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestTransactionHistoryHandler_InvalidLimit(t *testing.T) {
	handler := TransactionHistoryHandler(&mockHistoryProvider{})

	req := httptest.NewRequest(http.MethodGet, "/transactions/history?userId=7&limit=abc", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestTransactionHistoryHandler_RepoError(t *testing.T) {
	mockProvider := &mockHistoryProvider{err: assert.AnError}
	handler := TransactionHistoryHandler(mockProvider)

	req := httptest.NewRequest(http.MethodGet, "/transactions/history?userId=7", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestTransactionHistoryHandler_Success(t *testing.T) {
	mockProvider := &mockHistoryProvider{
		transactions: []model.Transaction{{ID: "tx-1", Type: model.TxTypeTradeExecution, UserID: 7, Status: model.TxStatusCommitted}},
	}
	handler := TransactionHistoryHandler(mockProvider)

	req := httptest.NewRequest(http.MethodGet, "/transactions/history?userId=7&limit=5", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if mockProvider.calledCount != 1 {
		t.Fatalf("expected provider to be called once, got %d", mockProvider.calledCount)
	}

	if mockProvider.userID != 7 || mockProvider.limit != 5 {
		t.Fatalf("unexpected query passed through: userID=%d limit=%d", mockProvider.userID, mockProvider.limit)
	}

	var decoded []model.Transaction
	if err := json.NewDecoder(rr.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(decoded) != 1 || decoded[0].ID != "tx-1" {
		t.Fatalf("unexpected response body: %+v", decoded)
	}
}

func TestTransactionHistoryHandler_DefaultLimit(t *testing.T) {
	mockProvider := &mockHistoryProvider{}
	handler := TransactionHistoryHandler(mockProvider)

	req := httptest.NewRequest(http.MethodGet, "/transactions/history?userId=7", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if mockProvider.limit != 50 {
		t.Fatalf("expected default limit 50, got %d", mockProvider.limit)
	}
}

func TestIntegrityReportHandler_Success(t *testing.T) {
	mockReporter := &mockIntegrityReporter{
		report: &txmanager.IntegrityReport{
			ActiveRules:     3,
			Recommendations: []string{"no integrity violations detected"},
		},
	}
	handler := IntegrityReportHandler(mockReporter)

	req := httptest.NewRequest(http.MethodGet, "/integrity/report", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var decoded txmanager.IntegrityReport
	if err := json.NewDecoder(rr.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded.ActiveRules != 3 {
		t.Fatalf("unexpected report: %+v", decoded)
	}
}

func TestIntegrityReportHandler_Error(t *testing.T) {
	handler := IntegrityReportHandler(&mockIntegrityReporter{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/integrity/report", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
