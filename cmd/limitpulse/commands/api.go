package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendao/limitpulse/internal/api"
	"github.com/wendao/limitpulse/internal/api/handlers"
	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/pkg/config"
	"github.com/wendao/limitpulse/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only dashboard API server",
	Long: `Starts the HTTP API server over the persisted artifacts.

Endpoints:
  GET /health                                   - Liveness check
  GET /api/snapshots/{dataType}/{date}          - Artifact for an exact date
  GET /api/snapshots/{dataType}/{date}/latest   - Newest artifact at or before the date
  GET /api/calendar/{date}                      - Trading-day status
  GET /api/sources/health                       - Upstream source health
  GET /api/archive/dates                        - Archived trade dates (database only)
  GET /api/archive/{direction}/{date}           - Archived limit facts (database only)

Example:
  go run ./cmd/limitpulse api
  go run ./cmd/limitpulse api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}
	log := logger.New(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.close()

	snapshotHandler := handlers.NewSnapshotHandler(a.store, calendar.New(), log)
	healthHandler := handlers.NewHealthHandler(a.tracker, log)
	var archiveHandler *handlers.ArchiveHandler
	if a.archive != nil {
		archiveHandler = handlers.NewArchiveHandler(a.archive, log)
	}
	router := api.NewRouter(snapshotHandler, healthHandler, archiveHandler, log)

	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
