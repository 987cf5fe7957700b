package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"ledgerguard/src/alerting"
	"ledgerguard/src/database"
	"ledgerguard/src/deadlock"
	"ledgerguard/src/repository"
	"ledgerguard/src/resilience"
	"ledgerguard/src/server"
	"ledgerguard/src/txmanager"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	ruleRepo := repository.NewValidationRuleRepository()
	if err := ruleRepo.SeedDefaults(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to seed validation rules")
	}

	cfg := resilience.GetConfig()
	errRepo := repository.NewErrorRepository()
	breakers := resilience.NewBreakerRegistry(
		cfg.BreakerThreshold,
		cfg.BreakerCooldown,
		repository.NewBreakerStateRepository(),
	)
	notifier := alerting.NewNotifier(alerting.GetConfig())

	exec := resilience.NewExecutor(cfg.RetryPolicy(), breakers, errRepo).
		WithDefaultResource(cfg.DefaultResource).
		WithNotifier(notifier)

	manager := txmanager.NewManager(database.MainDB, deadlock.NewDetector(), exec)

	server.StartServer(server.GetConfig().Port, server.Deps{
		Manager:  manager,
		Errors:   errRepo,
		Breakers: breakers,
	})
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
