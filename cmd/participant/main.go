// Package main is the entry point for the relaycast-participant binary.
//
// Startup sequence:
//  1. Parse CLI flags and the positional config-file path
//  2. Build the logger
//  3. Load the participant config (id, log path, coordinator address)
//  4. Wire the local log sink and the participant control state machine
//  5. Run the interactive CLI until "exit", EOF, or interrupt
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkeep-io/relaycast/internal/config"
	"github.com/arkeep-io/relaycast/internal/logging"
	"github.com/arkeep-io/relaycast/internal/participant"
)

type flags struct {
	logLevel string
	bindHost string
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
		Use:   "relaycast-participant <config-file>",
		Short: "relaycast participant — interactive client for a relaycast group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], f)
		},
	}

	root.PersistentFlags().StringVar(&f.logLevel, "log-level", envOrDefault("RELAYCAST_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&f.bindHost, "bind-host", envOrDefault("RELAYCAST_BIND_HOST", "127.0.0.1"), "Local interface the receiver endpoint binds and reports to the coordinator")

	return root
}

func run(configPath string, f *flags) error {
	logger, err := logging.Build(f.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadParticipant(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sink := participant.NewLogSink(cfg.LogPath, os.Stdout)
	defer sink.Close()

	coordinatorAddr := net.JoinHostPort(cfg.CoordinatorIP, strconv.Itoa(cfg.CoordinatorPort))
	p := participant.New(cfg.ID, f.bindHost, coordinatorAddr, sink, logger)

	cli, err := participant.NewCLI(p, logger)
	if err != nil {
		return fmt.Errorf("failed to start cli: %w", err)
	}
	defer cli.Close()

	// exit implicitly deregisters (spec §6.4); an OS interrupt should take
	// the same path rather than leaving a stale Online record behind.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		p.Exit()
		os.Exit(0)
	}()

	cli.Run()
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
