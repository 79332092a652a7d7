package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codeintel/internal/api"
	"codeintel/internal/logging"
)

var (
	servePort string
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the codeintel HTTP API server: project registration, sync,
retrieval, generation, autocomplete, agent missions, and admin telemetry.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()
	svc := mustGetServices(repoRoot, logger)

	host := svc.Config.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := svc.Config.Server.Port
	addr := fmt.Sprintf("%s:%d", host, port)
	if servePort != "" {
		addr = fmt.Sprintf("%s:%s", host, servePort)
	}

	server := api.NewServer(addr, logger, svc.Registry, svc.Sync, svc.LLM, svc.Credentials,
		svc.Collector, svc.InterLog, svc.Trace, svc.Cache, svc.Jobs, svc.Config.Agent.MaxSteps)

	if err := svc.Jobs.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting codeintel HTTP API server", map[string]interface{}{"addr": addr})
		fmt.Printf("codeintel HTTP API server listening on http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", map[string]interface{}{"error": err.Error()})
			return err
		}
	case sig := <-shutdown:
		logger.Info("received shutdown signal", map[string]interface{}{"signal": sig.String()})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("error during shutdown", map[string]interface{}{"error": err.Error()})
			return err
		}
		if err := svc.Jobs.Stop(5 * time.Second); err != nil {
			logger.Error("error stopping job runner", map[string]interface{}{"error": err.Error()})
		}
		if err := svc.DB.Close(); err != nil {
			logger.Error("error closing database", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("server stopped gracefully", nil)
	}

	return nil
}

func newLogger(format string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{Format: logFormat, Level: logging.InfoLevel})
}
