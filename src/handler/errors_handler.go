package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"ledgerguard/src/model"
	"ledgerguard/src/repository"
)

type errorLog interface {
	GetStatistics(ctx context.Context) (*repository.ErrorStatistics, error)
	GetRecent(ctx context.Context, hours int) ([]model.DatabaseError, error)
	MarkResolved(ctx context.Context, id uint) error
	CleanupOld(ctx context.Context, days int) (int64, error)
}

type breakerAdmin interface {
	Reset(resource string)
	State(resource string) string
}

// ErrorStatisticsHandler returns aggregate error-log counts.
func ErrorStatisticsHandler(log errorLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := log.GetStatistics(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to fetch error statistics")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	}
}

// RecentErrorsHandler lists errors from the last N hours (default 24).
func RecentErrorsHandler(log errorLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := 24
		if hoursParam := r.URL.Query().Get("hours"); hoursParam != "" {
			parsed, err := strconv.Atoi(hoursParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid hours", http.StatusBadRequest)
				return
			}
			hours = parsed
		}

		errs, err := log.GetRecent(r.Context(), hours)
		if err != nil {
			logger.WithError(err).Error("failed to fetch recent errors")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, errs)
	}
}

// MarkErrorResolvedHandler flags one logged error as handled.
func MarkErrorResolvedHandler(log errorLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid error id", http.StatusBadRequest)
			return
		}

		if err := log.MarkResolved(r.Context(), uint(id)); err != nil {
			logger.WithError(err).Error("failed to mark error resolved")
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CleanupErrorsHandler deletes resolved errors older than the retention
// window (default 30 days).
func CleanupErrorsHandler(log errorLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if daysParam := r.URL.Query().Get("days"); daysParam != "" {
			parsed, err := strconv.Atoi(daysParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		removed, err := log.CleanupOld(r.Context(), days)
		if err != nil {
			logger.WithError(err).Error("failed to clean up errors")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int64{"removed": removed})
	}
}

// ResetBreakerHandler forces a circuit breaker back to CLOSED.
func ResetBreakerHandler(admin breakerAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			http.Error(w, "breaker name is required", http.StatusBadRequest)
			return
		}

		admin.Reset(name)
		writeJSON(w, map[string]string{
			"resource": name,
			"state":    admin.State(name),
		})
	}
}
