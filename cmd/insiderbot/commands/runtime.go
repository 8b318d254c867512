package commands

import (
	"context"
	"fmt"

	"github.com/wonny/insiderbot/internal/broker"
	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/ingest"
	"github.com/wonny/insiderbot/internal/lifecycle"
	"github.com/wonny/insiderbot/internal/pipeline"
	"github.com/wonny/insiderbot/internal/policy"
	"github.com/wonny/insiderbot/internal/pricing"
	"github.com/wonny/insiderbot/internal/scoring"
	"github.com/wonny/insiderbot/internal/scraper"
	"github.com/wonny/insiderbot/internal/store"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/config"
	"github.com/wonny/insiderbot/pkg/database"
	"github.com/wonny/insiderbot/pkg/logger"
	"github.com/wonny/insiderbot/pkg/redis"
)

// appRuntime bundles the wired trading system for the run and cycle
// commands. Build it once per process via newRuntime.
type appRuntime struct {
	Config   *config.Config
	Strategy *strategy.Config
	Log      *logger.Logger

	Transactions contracts.TransactionRepository
	Signals      contracts.SignalRepository
	Positions    contracts.PositionRepository

	Source  contracts.DisclosureSource
	Prices  contracts.PriceProvider
	Manager *lifecycle.Manager
	Pipe    *pipeline.Pipeline

	db    *database.DB
	cache *redis.Client
}

// newRuntime loads configuration and wires the full pipeline. When
// DATABASE_URL is unset the stores fall back to in-memory, which is
// fine for paper trading but loses state on restart.
func newRuntime(ctx context.Context) (*appRuntime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	strat, err := loadStrategy(cfg)
	if err != nil {
		return nil, err
	}
	if hash, err := strategy.Hash(strat); err == nil {
		log.WithFields(map[string]interface{}{
			"strategy": strat.Meta.StrategyID,
			"version":  strat.Meta.Version,
			"hash":     hash[:12],
		}).Info("strategy loaded")
	}

	rt := &appRuntime{
		Config:   cfg,
		Strategy: strat,
		Log:      log,
	}

	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.db = db
		rt.Transactions = store.NewTransactionRepository(db.Pool)
		rt.Signals = store.NewSignalRepository(db.Pool)
		rt.Positions = store.NewPositionRepository(db.Pool)
		log.Info("connected to database")
	} else {
		rt.Transactions = store.NewMemoryTransactionRepository()
		rt.Signals = store.NewMemorySignalRepository()
		rt.Positions = store.NewMemoryPositionRepository()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	cache, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	rt.cache = cache

	rt.Source = scraper.NewOpenInsiderSource(&cfg.Scraper, log)
	rt.Prices = pricing.NewStooqProvider(&cfg.Pricing, redis.NewCache(cache, "pricing"), log)

	paperBroker := broker.NewPaper(strat.Backtest.SlippageRate, log)
	rt.Manager = lifecycle.NewManager(strat.Backtest.InitialCapital, rt.Positions, rt.Prices, paperBroker, strat, log)
	if err := rt.Manager.Restore(ctx); err != nil {
		return nil, err
	}

	rt.Pipe = pipeline.New(
		rt.Source,
		ingest.NewNormalizer(rt.Transactions, log),
		rt.Transactions,
		rt.Signals,
		scoring.NewScorer(&strat.Scoring, log),
		policy.New(&strat.Sizing),
		rt.Manager,
		rt.Prices,
		strat,
		log,
	)

	return rt, nil
}

// Close releases database and cache connections
func (rt *appRuntime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
	if rt.cache != nil {
		rt.cache.Close()
	}
}

// loadStrategy resolves the strategy file from the --strategy flag or
// the STRATEGY_FILE env default, falling back to built-in parameters
// when neither file exists.
func loadStrategy(cfg *config.Config) (*strategy.Config, error) {
	path := strategyFile
	if path == "" {
		path = cfg.StrategyFile
	}

	strat, err := strategy.Load(path)
	if err != nil {
		if strategyFile != "" {
			// an explicitly requested file must exist
			return nil, fmt.Errorf("load strategy %s: %w", path, err)
		}
		return strategy.Default(), nil
	}
	return strat, nil
}
