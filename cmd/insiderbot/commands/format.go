package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/insiderbot/internal/contracts"
)

// formatMoney renders an amount with thousands separators
func formatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}

	whole := int64(v)
	frac := v - float64(whole)

	s := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := fmt.Sprintf("%s.%02d", b.String(), int(frac*100+0.5))
	if neg {
		return "-" + out
	}
	return out
}

func printPerformanceReport(report *contracts.PerformanceReport) {
	fmt.Println("\n✅ Backtest Completed")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()

	fmt.Println("📊 Summary")
	fmt.Printf("Period: %s ~ %s\n",
		report.StartDate.Format("2006-01-02"),
		report.EndDate.Format("2006-01-02"))
	fmt.Printf("Initial Capital: %s\n", formatMoney(report.InitialCapital))
	fmt.Printf("Final Equity:    %s\n", formatMoney(report.FinalEquity))
	fmt.Printf("Total Return:    %+.2f%%\n", report.TotalReturn*100)
	fmt.Println()

	fmt.Println("📉 Risk")
	fmt.Printf("Sharpe Ratio: %.2f\n", report.SharpeRatio)
	fmt.Printf("Max Drawdown: %.2f%%\n", report.MaxDrawdown*100)
	fmt.Printf("Benchmark (%s): %+.2f%%\n", report.BenchmarkSymbol, report.BenchmarkReturn*100)
	fmt.Printf("Alpha: %+.2f%%\n", report.Alpha*100)
	fmt.Println()

	fmt.Println("💹 Trades")
	fmt.Printf("Total:   %d\n", report.TotalTrades)
	fmt.Printf("Winners: %d (%.1f%%)\n", report.WinningTrades, report.WinRate*100)
	fmt.Printf("Losers:  %d\n", report.LosingTrades)
	fmt.Printf("Avg Return/Trade: %+.2f%%\n", report.AvgReturnPerTrade*100)
	fmt.Printf("Commission: %s\n", formatMoney(report.TotalCommission))
	fmt.Printf("Slippage:   %s\n", formatMoney(report.TotalSlippage))
	fmt.Println()

	if len(report.Trades) > 0 {
		fmt.Println("📋 Trade Log")
		for _, tr := range report.Trades {
			fmt.Printf("%s  %-6s %4d @ %8.2f -> %8.2f  %-13s %+10.2f (%+.2f%%)\n",
				tr.ExitDate.Format("2006-01-02"),
				tr.Ticker, tr.Quantity, tr.EntryPrice, tr.ExitPrice,
				tr.ExitReason, tr.NetPnL, tr.ReturnPct*100)
		}
		fmt.Println()
	}
}

func printWalkForwardReport(report *contracts.WalkForwardReport) {
	fmt.Println("\n✅ Walk-Forward Completed")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nSplit Date: %s\n", report.SplitDate.Format("2006-01-02"))

	fmt.Println("\n🔧 Tuned Parameters")
	keys := make([]string, 0, len(report.TunedParams))
	for k := range report.TunedParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-18s %.2f\n", k, report.TunedParams[k])
	}

	fmt.Println("\n───── In-Sample (tuning window) ─────")
	printPerformanceReport(report.InSample)

	fmt.Println("───── Out-of-Sample (frozen parameters) ─────")
	printPerformanceReport(report.OutOfSample)
}
