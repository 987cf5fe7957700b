package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"ledgerguard/src/database"
	"ledgerguard/src/deadlock"
	"ledgerguard/src/repository"
	"ledgerguard/src/resilience"
	"ledgerguard/src/txmanager"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Ledgerguard CMD"
	app.Usage = "The ledgerguard operations command line interface"

	app.Commands = []cli.Command{
		cleanupErrorsCMD,
		integrityReportCMD,
		errorStatsCMD,
		resetBreakerCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	cleanupErrorsCMD = cli.Command{
		Name:   "cleanup-errors",
		Usage:  "delete resolved errors past the retention window",
		Action: cleanupErrorsAction,
		Flags: []cli.Flag{
			cli.IntFlag{Name: "days", Value: 30, Usage: "retention window in days"},
		},
		Description: `Delete resolved error_log rows older than the retention window`,
	}
	integrityReportCMD = cli.Command{
		Name:        "integrity-report",
		Usage:       "run the background consistency scan",
		Action:      integrityReportAction,
		Description: `Evaluate every active validation rule over its full table`,
	}
	errorStatsCMD = cli.Command{
		Name:        "error-stats",
		Usage:       "print error log statistics",
		Action:      errorStatsAction,
		Description: `Print aggregate error_log counts by category and severity`,
	}
	resetBreakerCMD = cli.Command{
		Name:        "reset-breaker",
		Usage:       "force a circuit breaker back to CLOSED",
		Action:      resetBreakerAction,
		ArgsUsage:   "<resource>",
		Description: `Administratively reset the named circuit breaker`,
	}
)

func cleanupErrorsAction(c *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		return err
	}

	removed, err := repository.NewErrorRepository().CleanupOld(context.Background(), c.Int("days"))
	if err != nil {
		logrus.WithError(err).Error("cleanup failed")
		return err
	}

	fmt.Printf("removed %d resolved errors\n", removed)
	return nil
}

func integrityReportAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		return err
	}

	cfg := resilience.GetConfig()
	exec := resilience.NewExecutor(cfg.RetryPolicy(), nil, repository.NewErrorRepository())
	manager := txmanager.NewManager(database.MainDB, deadlock.NewDetector(), exec)

	report, err := manager.GetDataIntegrityReport(context.Background())
	if err != nil {
		logrus.WithError(err).Error("integrity scan failed")
		return err
	}

	fmt.Printf("active rules: %d\n", report.ActiveRules)
	fmt.Printf("violations:   %d\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Printf("  - %s\n", v)
	}
	for txType, count := range report.TransactionCounts {
		fmt.Printf("transactions %-20s %d\n", txType, count)
	}
	for _, rec := range report.Recommendations {
		fmt.Printf("recommendation: %s\n", rec)
	}
	return nil
}

func errorStatsAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		return err
	}

	stats, err := repository.NewErrorRepository().GetStatistics(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("total: %d, unresolved: %d\n", stats.Total, stats.Unresolved)
	for category, count := range stats.ByCategory {
		fmt.Printf("  %-20s %d\n", category, count)
	}
	return nil
}

func resetBreakerAction(c *cli.Context) error {
	resource := c.Args().First()
	if resource == "" {
		return fmt.Errorf("resource name is required")
	}

	if err := database.InitMainDB(); err != nil {
		return err
	}

	cfg := resilience.GetConfig()
	breakers := resilience.NewBreakerRegistry(
		cfg.BreakerThreshold,
		cfg.BreakerCooldown,
		repository.NewBreakerStateRepository(),
	)
	breakers.Reset(resource)

	fmt.Printf("breaker %q reset to %s\n", resource, breakers.State(resource))
	return nil
}
