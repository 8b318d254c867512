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

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the status API without the trading loop",
	Long: `Starts only the status API server. Useful for inspecting a
shared database while the daemon runs elsewhere. No cycles are
scheduled, so POST /api/cycle returns 404 here.

Example:
  go run ./cmd/insiderbot api
  API_PORT=9090 go run ./cmd/insiderbot api`,
	RunE: runAPIOnly,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPIOnly(cmd *cobra.Command, args []string) error {
	fmt.Println("=== insiderbot api ===")

	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	log := rt.Log

	// empty scheduler: nothing registered, nothing to trigger
	sched := scheduler.New(log)

	status := api.NewStatusHandler(rt.Manager, rt.Signals, rt.Positions, sched, rt.Config.Mode, log)
	server := api.New(rt.Config, log, api.NewRouter(status, log))

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	fmt.Printf("\n✅ Status API on http://localhost:%s\n", rt.Config.APIPort)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
