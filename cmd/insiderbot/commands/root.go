package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insiderbot",
	Short: "Insider purchase signal trading system",
	Long: `insiderbot - follow the insiders

Watches SEC Form 4 insider purchase filings, scores them for
conviction, and manages a paper portfolio around the strongest
signals.

Usage:
  go run ./cmd/insiderbot [command]

Examples:
  go run ./cmd/insiderbot run
  go run ./cmd/insiderbot cycle
  go run ./cmd/insiderbot backtest --from 2024-01-02 --to 2024-06-28`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML file (default from STRATEGY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
