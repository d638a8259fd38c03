// Package main is the entry point for the relaycast-coordinator binary.
//
// Startup sequence:
//  1. Parse CLI flags and the positional config-file path
//  2. Build the logger
//  3. Load the coordinator config (port, persistence window)
//  4. Wire membership table + retention log behind a single State
//  5. Start the dashboard hub, the control-port server, the HTTP status/
//     metrics surface, and the retention GC scheduler
//  6. Block until SIGINT/SIGTERM, then graceful shutdown
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/config"
	"github.com/arkeep-io/relaycast/internal/coordinator"
	"github.com/arkeep-io/relaycast/internal/dashboard"
	"github.com/arkeep-io/relaycast/internal/logging"
)

type flags struct {
	logLevel   string
	httpAddr   string
	gcSchedule string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "relaycast-coordinator <config-file>",
		Short: "relaycast coordinator — central multicast group coordinator",
		Long: `relaycast-coordinator maintains group membership and the retained
message log, dispatches multicasts to online participants, and replays
retained messages to participants that reconnect within the persistence
window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], f)
		},
	}

	root.PersistentFlags().StringVar(&f.logLevel, "log-level", envOrDefault("RELAYCAST_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&f.httpAddr, "http-addr", envOrDefault("RELAYCAST_HTTP_ADDR", ":8080"), "HTTP status/metrics/dashboard listen address")
	root.PersistentFlags().StringVar(&f.gcSchedule, "gc-interval", envOrDefault("RELAYCAST_GC_INTERVAL", "@every 30s"), "Cron schedule for retention GC sweeps")

	return root
}

func run(ctx context.Context, configPath string, f *flags) error {
	logger, err := logging.Build(f.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadCoordinator(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("starting relaycast coordinator",
		zap.Int("port", cfg.Port),
		zap.Int("persistence_window_seconds", cfg.PersistenceWindow),
		zap.String("http_addr", f.httpAddr),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	window := time.Duration(cfg.PersistenceWindow) * time.Second
	state := coordinator.NewState(window, logger)
	metrics := coordinator.NewMetrics(state)

	hub := dashboard.NewHub()
	go hub.Run(ctx)

	dispatcher := coordinator.NewDispatcher(state, metrics, hub, logger)
	server := coordinator.NewServer(state, dispatcher, metrics, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := server.ListenAndServe(addr); err != nil {
			logger.Error("control server error", zap.Error(err))
			cancel()
		}
	}()

	router := coordinator.NewRouter(state, metrics, hub, logger)
	httpSrv := &http.Server{
		Addr:         f.httpAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", f.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	gc, err := coordinator.NewGCScheduler(state, f.gcSchedule, logger)
	if err != nil {
		return fmt.Errorf("failed to create gc scheduler: %w", err)
	}
	gc.Start()
	defer gc.Stop()

	<-ctx.Done()
	logger.Info("shutting down relaycast coordinator")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("relaycast coordinator stopped")
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
