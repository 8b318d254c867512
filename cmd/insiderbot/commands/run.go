package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/insiderbot/internal/api"
	"github.com/wonny/insiderbot/internal/scheduler"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading daemon",
	Long: `Starts the full trading daemon:

- scheduled ingestion/scoring/execution cycles
- fill-timeout and exit monitoring
- status API server

The cycle interval comes from CYCLE_INTERVAL (default 4h). The
status API listens on API_PORT (default 8087).

Endpoints:
  GET  /health                            - Health check
  GET  /api/portfolio                     - Portfolio snapshot
  GET  /api/positions                     - Live positions
  GET  /api/positions/closed              - Trade history
  GET  /api/signals                       - Recent signals
  GET  /api/jobs                          - Job run history
  POST /api/cycle                         - Trigger a cycle now
  POST /api/positions/{ticker}/liquidate  - Close a position

Example:
  go run ./cmd/insiderbot run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("=== insiderbot ===")

	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	log := rt.Log

	// Scheduler with the trading cycle job
	sched := scheduler.New(log)
	cycleJob := scheduler.NewCycleJob(rt.Pipe, rt.Config.Scraper.CycleInterval)
	if err := sched.AddJob(cycleJob); err != nil {
		return fmt.Errorf("register cycle job: %w", err)
	}

	// Status API
	status := api.NewStatusHandler(rt.Manager, rt.Signals, rt.Positions, sched, rt.Config.Mode, log)
	server := api.New(rt.Config, log, api.NewRouter(status, log))

	sched.Start()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	fmt.Printf("\n✅ Daemon running, status API on http://localhost:%s\n", rt.Config.APIPort)
	fmt.Printf("   cycle interval: %s, mode: %s\n", rt.Config.Scraper.CycleInterval, rt.Config.Mode)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("daemon stopped")
	return nil
}
