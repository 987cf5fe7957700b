package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"ledgerguard/src/model"
	"ledgerguard/src/txmanager"
)

type historyProvider interface {
	GetTransactionHistory(ctx context.Context, userID uint, limit int) ([]model.Transaction, error)
}

type integrityReporter interface {
	GetDataIntegrityReport(ctx context.Context) (*txmanager.IntegrityReport, error)
}

// TransactionHistoryHandler returns a handler that lists a user's managed
// transactions, most recent first.
func TransactionHistoryHandler(provider historyProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userParam := r.URL.Query().Get("userId")
		if userParam == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		userID, err := strconv.ParseUint(userParam, 10, 64)
		if err != nil {
			http.Error(w, "invalid userId", http.StatusBadRequest)
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		transactions, err := provider.GetTransactionHistory(r.Context(), uint(userID), limit)
		if err != nil {
			logger.WithError(err).Error("failed to fetch transaction history")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, transactions)
	}
}

// IntegrityReportHandler returns a handler exposing the background
// consistency scan.
func IntegrityReportHandler(reporter integrityReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := reporter.GetDataIntegrityReport(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to build integrity report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, report)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
