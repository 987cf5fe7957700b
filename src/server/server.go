package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"ledgerguard/src/handler"
	"ledgerguard/src/repository"
	"ledgerguard/src/resilience"
	"ledgerguard/src/txmanager"
)

// Deps carries the coordinator objects the observability surface exposes.
type Deps struct {
	Manager  *txmanager.Manager
	Errors   *repository.ErrorRepository
	Breakers *resilience.BreakerRegistry
}

func StartServer(port string, deps Deps) {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Get("/transactions/history", handler.TransactionHistoryHandler(deps.Manager))
	r.Get("/integrity/report", handler.IntegrityReportHandler(deps.Manager))
	r.Get("/errors/statistics", handler.ErrorStatisticsHandler(deps.Errors))
	r.Get("/errors/recent", handler.RecentErrorsHandler(deps.Errors))
	r.Post("/errors/{id}/resolve", handler.MarkErrorResolvedHandler(deps.Errors))
	r.Delete("/errors/cleanup", handler.CleanupErrorsHandler(deps.Errors))
	r.Post("/breakers/{name}/reset", handler.ResetBreakerHandler(deps.Breakers))

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
