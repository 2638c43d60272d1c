package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/alerts"
	"github.com/spigell/job-aggregator/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API and run scheduled alert checks",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("no-alerts-scheduler", false, "serve alert endpoints without running scheduled checks")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup("serve")
	log.Info("starting the job-aggregator", zap.String("version", version))

	orch, err := buildOrchestrator(config, log)
	if err != nil {
		log.Fatal("building sources", zap.Error(err))
	}

	rdb, err := connectRedis(ctx, config, log)
	if err != nil {
		log.Warn("redis is unavailable, serving without cache and publish notifications", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	searcher := buildSearcher(orch, rdb, config, log)

	store, closeStore, err := buildAlertStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening alerts store", zap.Error(err))
	}
	defer closeStore()

	var scheduler *alerts.Scheduler
	if noScheduler, _ := cmd.Flags().GetBool("no-alerts-scheduler"); !noScheduler {
		checker := alerts.NewChecker(store, searcher, buildComposer(ctx, config, log), buildNotifier(config, rdb, log), log)
		scheduler = alerts.NewScheduler(checker, config.Alerts.Schedule, log)
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal("starting alerts scheduler", zap.Error(err))
		}
	}

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(*config.Server, version, searcher, alerts.NewService(store, log), log)
	if err != nil {
		log.Fatal("building http server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down", zap.String("reason", "signal received"))
	case err := <-errCh:
		if err != nil {
			log.Error("http server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}
}
