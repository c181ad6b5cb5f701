package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/config"
	"github.com/hazz-dev/botmon/internal/engine"
	"github.com/hazz-dev/botmon/internal/monitor"
	"github.com/hazz-dev/botmon/internal/notify"
	"github.com/hazz-dev/botmon/internal/probe"
	"github.com/hazz-dev/botmon/internal/report"
	"github.com/hazz-dev/botmon/internal/server"
	"github.com/hazz-dev/botmon/internal/storage"
	"github.com/hazz-dev/botmon/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "botmon",
		Short:        "Health monitor and auto-redeployer for a fixed roster of bots",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("botmon %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitor loop and HTTP front",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config and roster
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	targets := config.TargetsFromEnv(os.Environ())
	if len(targets) == 0 {
		return fmt.Errorf("no valid bot<N> targets in environment")
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not configured")
	}
	logger.Info("config loaded", "bots", len(targets), "interval", cfg.Monitor.Interval.Duration)

	bots := make([]*bot.Bot, 0, len(targets))
	for _, t := range targets {
		bots = append(bots, &bot.Bot{
			ID:        t.ID,
			URL:       t.URL,
			DeployURL: t.DeployURL,
			Status:    bot.StatusUnknown,
		})
	}

	// 2. Open SQLite probe history
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// 3. Notifier and report publisher
	tg := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	state := report.NewStateFile(cfg.State.Path)
	publisher, err := report.NewPublisher(tg, state, logger)
	if err != nil {
		return fmt.Errorf("building publisher: %w", err)
	}

	// 4. Status engine and sweep loop
	prober := probe.NewProber(cfg.Monitor.ProbeTimeout.Duration)
	deployer := probe.NewDeployer(cfg.Monitor.DeployTimeout.Duration, tg, logger)
	eng := engine.New(prober, deployer, cfg.Monitor.FailThreshold, cfg.Monitor.GraceWindow.Duration, logger)
	sweeper := monitor.New(bots, eng, publisher, db, cfg.Monitor.Interval.Duration, logger)

	// 5. HTTP front
	front := server.New(sweeper, db, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: front.Router(),
	}

	// 6. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 7. Start sweep loop (first sweep fires immediately)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		sweeper.Start(ctx)
	}()
	logger.Info("monitor started", "bots", len(bots))

	// 8. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 9. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 10. Graceful shutdown
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a one-off probe of every configured bot",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	targets := config.TargetsFromEnv(os.Environ())
	if len(targets) == 0 {
		return fmt.Errorf("no valid bot<N> targets in environment")
	}
	return runChecks(cmd.OutOrStdout(), targets, cfg.Monitor.ProbeTimeout.Duration)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print current bot status from the probe history database",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}
