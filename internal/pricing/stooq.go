package pricing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/pkg/config"
	"github.com/wonny/insiderbot/pkg/httputil"
	"github.com/wonny/insiderbot/pkg/logger"
	"github.com/wonny/insiderbot/pkg/redis"
)

// staleTolerance bounds how far back Price walks for the most recent
// close. Covers weekends and short market holidays.
const staleTolerance = 5 * 24 * time.Hour

// StooqProvider serves daily closes from the stooq.com CSV endpoint.
// Implements contracts.PriceProvider. Outbound requests are rate
// limited, and fetched series are cached in Redis so every position in
// a cycle does not trigger its own download.
type StooqProvider struct {
	client  *httputil.Client
	cache   *redis.Cache
	baseURL string
	ttl     time.Duration
	log     *logger.Logger
}

// NewStooqProvider creates a new stooq daily price provider
func NewStooqProvider(cfg *config.PricingConfig, cache *redis.Cache, log *logger.Logger) *StooqProvider {
	client := httputil.New(log).
		WithTimeout(20 * time.Second).
		WithRateLimit(cfg.RequestsPerSec)

	return &StooqProvider{
		client:  client,
		cache:   cache,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.CacheTTL,
		log:     log,
	}
}

// Price returns the most recent close at or before the given time.
// A ticker with no bar inside the stale tolerance answers
// DataUnavailable so callers defer instead of trading on old data.
func (p *StooqProvider) Price(ctx context.Context, ticker string, at time.Time) (float64, error) {
	from := at.Add(-staleTolerance)

	series, err := p.HistoricalSeries(ctx, ticker, from, at)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, &contracts.DataUnavailable{Ticker: ticker, At: at}
	}

	// series is date-ascending; the last bar is the freshest
	return series[len(series)-1].Price, nil
}

// HistoricalSeries returns the ticker's daily closes inside [from, to],
// date-ascending.
func (p *StooqProvider) HistoricalSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	cacheKey := fmt.Sprintf("series:%s:%s:%s",
		strings.ToLower(ticker), from.UTC().Format("20060102"), to.UTC().Format("20060102"))

	var cached []contracts.PricePoint
	if hit, err := p.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	series, err := p.fetchSeries(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, cacheKey, series, p.ttl); err != nil {
		p.log.WithError(err).Warn("price cache write failed")
	}

	return series, nil
}

// fetchSeries downloads and parses the stooq daily CSV
func (p *StooqProvider) fetchSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	url := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		p.baseURL, stooqSymbol(ticker), from.UTC().Format("20060102"), to.UTC().Format("20060102"))

	resp, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch prices for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("price endpoint returned status %d for %s", resp.StatusCode, ticker)
	}

	series, err := parseDailyCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse prices for %s: %w", ticker, err)
	}

	p.log.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   len(series),
	}).Debug("fetched daily prices")

	return series, nil
}

// parseDailyCSV reads the stooq layout: Date,Open,High,Low,Close,Volume.
// Rows that fail to parse are skipped; "no data" responses yield an
// empty series, not an error.
func parseDailyCSV(r io.Reader) ([]contracts.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var series []contracts.PricePoint
	header := true

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(row) < 5 {
			continue
		}

		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(row[4], 64)
		if err != nil || closePrice <= 0 {
			continue
		}

		series = append(series, contracts.PricePoint{Date: date, Price: closePrice})
	}

	return series, nil
}

// stooqSymbol maps a US ticker to stooq's symbol convention
func stooqSymbol(ticker string) string {
	return strings.ToLower(ticker) + ".us"
}
