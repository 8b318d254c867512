package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/insiderbot/internal/backtest"
	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/pricing"
	"github.com/wonny/insiderbot/internal/scraper"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/config"
	"github.com/wonny/insiderbot/pkg/logger"
	"github.com/wonny/insiderbot/pkg/redis"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy over a historical window",
	Long: `Replays the full pipeline over historical filings and daily
prices. Entries fill on the next trading day's bar so the decision
never sees its own fill price.

Flags:
  --from     window start (YYYY-MM-DD, required)
  --to       window end (YYYY-MM-DD, default: today)
  --capital  starting capital (default: from strategy file)
  --split    walk-forward split date; tunes on the window before it
             and evaluates frozen parameters after it

Example:
  go run ./cmd/insiderbot backtest --from 2024-01-02 --to 2024-06-28
  go run ./cmd/insiderbot backtest --from 2024-01-02 --to 2024-12-30 --split 2024-07-01`,
	RunE: runBacktest,
}

var (
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
	backtestSplit   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "window start (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "window end (YYYY-MM-DD, default: today)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "starting capital (default: strategy file)")
	backtestCmd.Flags().StringVar(&backtestSplit, "split", "", "walk-forward split date (YYYY-MM-DD)")

	backtestCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== insiderbot backtest ===")

	start, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if backtestTo != "" {
		end, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	strat, err := loadStrategy(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("\n📅 Period: %s ~ %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	if hash, err := strategy.Hash(strat); err == nil {
		fmt.Printf("🔐 Strategy: %s v%s (%s)\n", strat.Meta.StrategyID, strat.Meta.Version, hash[:12])
	}

	// Fetch filings covering the window
	source := scraper.NewOpenInsiderSource(&cfg.Scraper, log)
	records, err := source.FetchRecent(ctx, time.Since(start))
	if err != nil {
		return fmt.Errorf("fetch filings: %w", err)
	}
	records = filterWindow(records, start, end)
	fmt.Printf("📄 Filings: %d purchase records\n", len(records))
	if len(records) == 0 {
		return fmt.Errorf("no filings in window; the disclosure source only reaches back so far")
	}

	// Fetch daily bars for every mentioned ticker plus the benchmark
	cache, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer cache.Close()
	provider := pricing.NewStooqProvider(&cfg.Pricing, redis.NewCache(cache, "pricing"), log)

	prices, err := fetchSeries(ctx, provider, records, strat.Backtest.BenchmarkSymbol, start, end)
	if err != nil {
		return err
	}

	input := &backtest.Input{
		Records:        records,
		Prices:         prices,
		Start:          start,
		End:            end,
		InitialCapital: backtestCapital,
	}

	fmt.Println("\n🚀 Running backtest...")

	if backtestSplit != "" {
		split, err := time.Parse("2006-01-02", backtestSplit)
		if err != nil {
			return fmt.Errorf("invalid split date: %w", err)
		}
		report, err := backtest.WalkForward(ctx, strat, input, split, log)
		if err != nil {
			return fmt.Errorf("walk-forward failed: %w", err)
		}
		printWalkForwardReport(report)
		return nil
	}

	report, err := backtest.NewEngine(strat, log).Run(ctx, input)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	printPerformanceReport(report)
	return nil
}

// filterWindow keeps records whose filing date falls inside the window
func filterWindow(records []*contracts.RawRecord, start, end time.Time) []*contracts.RawRecord {
	limit := end.AddDate(0, 0, 1)
	kept := make([]*contracts.RawRecord, 0, len(records))
	for _, r := range records {
		if !r.FilingDate.Before(start) && r.FilingDate.Before(limit) {
			kept = append(kept, r)
		}
	}
	return kept
}

func fetchSeries(
	ctx context.Context,
	provider *pricing.StooqProvider,
	records []*contracts.RawRecord,
	benchmark string,
	start, end time.Time,
) (map[string][]contracts.PricePoint, error) {
	seen := map[string]bool{benchmark: true}
	tickers := []string{benchmark}
	for _, r := range records {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			tickers = append(tickers, r.Ticker)
		}
	}
	sort.Strings(tickers)

	// a little slack before the window so entries near the start have bars
	from := start.AddDate(0, 0, -7)

	prices := make(map[string][]contracts.PricePoint, len(tickers))
	for i, ticker := range tickers {
		series, err := provider.HistoricalSeries(ctx, ticker, from, end)
		if err != nil {
			fmt.Printf("⚠️  %s: no price history, skipping\n", ticker)
			continue
		}
		prices[ticker] = series
		fmt.Printf("📈 %-6s %d bars [%d/%d]\n", ticker, len(series), i+1, len(tickers))
	}

	if len(prices[benchmark]) == 0 {
		return nil, fmt.Errorf("no price history for benchmark %s", benchmark)
	}
	return prices, nil
}
