package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cycleCmd represents the cycle command
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one trading cycle and exit",
	Long: `Runs a single ingestion/scoring/execution cycle:

1. Fetch recent insider purchase filings
2. Normalize and deduplicate them
3. Score affected tickers and generate signals
4. Size and place orders for approved BUY signals
5. Evaluate exits on the live book

Example:
  go run ./cmd/insiderbot cycle
  go run ./cmd/insiderbot cycle --strategy config/strategy.yaml`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}

func runCycle(cmd *cobra.Command, args []string) error {
	fmt.Println("=== insiderbot cycle ===")

	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Pipe.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	fmt.Printf("\n✅ Cycle completed in %.2fs\n\n", result.Duration.Seconds())

	fmt.Println("📥 Ingestion")
	fmt.Printf("  Ingested:   %d\n", result.Ingested)
	fmt.Printf("  Duplicates: %d\n", result.Duplicates)
	fmt.Printf("  Invalid:    %d\n", result.Invalid)
	fmt.Println()

	fmt.Println("📊 Signals")
	if len(result.Signals) == 0 {
		fmt.Println("  (none)")
	}
	for _, sig := range result.Signals {
		fmt.Printf("  %-6s score %5.1f  %-6s %s  (cluster %d)\n",
			sig.Ticker, sig.ConvictionScore, sig.StrengthTier, sig.RecommendedAction, sig.ClusterSize)
	}
	fmt.Println()

	if len(result.Opened) > 0 {
		fmt.Println("🟢 Opened")
		for _, p := range result.Opened {
			fmt.Printf("  %-6s %d @ %.2f (stop %.2f, target %.2f)\n",
				p.Ticker, p.Quantity, p.EntryPrice, p.StopLossPrice, p.ProfitTargetPrice)
		}
		fmt.Println()
	}

	if len(result.Closed) > 0 {
		fmt.Println("🔴 Closed")
		for _, p := range result.Closed {
			fmt.Printf("  %-6s %s @ %.2f  PnL %+.2f\n",
				p.Ticker, p.ExitReason, p.ExitPrice, p.RealizedPnL)
		}
		fmt.Println()
	}

	if len(result.Rejections) > 0 {
		fmt.Println("⛔ Rejected")
		for ticker, reason := range result.Rejections {
			fmt.Printf("  %-6s %s\n", ticker, reason)
		}
		fmt.Println()
	}

	if len(result.Deferred) > 0 {
		fmt.Println("⏸  Deferred (no price data)")
		for _, ticker := range result.Deferred {
			fmt.Printf("  %s\n", ticker)
		}
		fmt.Println()
	}

	pf := result.Portfolio
	fmt.Println("💰 Portfolio")
	fmt.Printf("  Cash:      %s\n", formatMoney(pf.Cash))
	fmt.Printf("  Exposure:  %s\n", formatMoney(pf.Exposure()))
	fmt.Printf("  Value:     %s\n", formatMoney(pf.Value()))
	fmt.Printf("  Positions: %d\n", pf.OpenCount())

	return nil
}
