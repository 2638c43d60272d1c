package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/alerts"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Work with saved job alerts",
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every active alert once and send notifications",
	Run: func(_ *cobra.Command, _ []string) {
		checkAlerts()
	},
}

func init() {
	alertsCmd.AddCommand(alertsCheckCmd)
	rootCmd.AddCommand(alertsCmd)
}

func checkAlerts() {
	ctx := context.Background()

	config, log := setup("alerts check")

	orch, err := buildOrchestrator(config, log)
	if err != nil {
		log.Fatal("building sources", zap.Error(err))
	}

	rdb, err := connectRedis(ctx, config, log)
	if err != nil {
		log.Warn("redis is unavailable, notifications are logged only", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	store, closeStore, err := buildAlertStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening alerts store", zap.Error(err))
	}
	defer closeStore()

	checker := alerts.NewChecker(
		store,
		buildSearcher(orch, rdb, config, log),
		buildComposer(ctx, config, log),
		buildNotifier(config, rdb, log),
		log,
	)

	summary, err := checker.CheckAll(ctx)
	if err != nil {
		log.Fatal("checking alerts", zap.Error(err))
	}

	log.Info("alerts checked",
		zap.Int("checked", summary.Checked),
		zap.Int("notified", summary.Notified),
		zap.Int("failed", summary.Failed),
	)
}
