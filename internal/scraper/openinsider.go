package scraper

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/pkg/config"
	"github.com/wonny/insiderbot/pkg/httputil"
	"github.com/wonny/insiderbot/pkg/logger"
)

// OpenInsiderSource scrapes recent insider purchases from the
// OpenInsider screener. It implements contracts.DisclosureSource.
// Only purchase filings (trade type "P - Purchase") are returned; the
// screener may re-serve rows across polls, which the normalizer
// deduplicates downstream.
type OpenInsiderSource struct {
	client   *httputil.Client
	baseURL  string
	pageSize int
	log      *logger.Logger
}

// NewOpenInsiderSource creates a new OpenInsider disclosure source
func NewOpenInsiderSource(cfg *config.ScraperConfig, log *logger.Logger) *OpenInsiderSource {
	client := httputil.New(log).
		WithTimeout(30 * time.Second).
		WithUserAgent(cfg.UserAgent)

	return &OpenInsiderSource{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
		log:      log,
	}
}

// FetchRecent pulls purchase filings filed within the lookback window
func (s *OpenInsiderSource) FetchRecent(ctx context.Context, lookback time.Duration) ([]*contracts.RawRecord, error) {
	since := time.Now().UTC().Add(-lookback)

	url := fmt.Sprintf("%s/screener?s=&o=&pl=&ph=&ll=&lh=&fd=%d&fdr=&td=0&tdr=&xp=1&vl=&vh=&sic1=-1&t=P&cnt=%d&page=1",
		s.baseURL, lookbackDays(lookback), s.pageSize)

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch screener: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("screener returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read screener body: %w", err)
	}

	records := s.parseScreenerHTML(string(body), since)

	s.log.WithFields(map[string]interface{}{
		"count":    len(records),
		"lookback": lookback.String(),
	}).Debug("fetched insider purchases")

	return records, nil
}

// parseScreenerHTML extracts purchase rows from the screener table.
// Column layout: X | Filing Date | Trade Date | Ticker | Company |
// Insider Name | Title | Trade Type | Price | Qty | Owned | dOwn | Value
func (s *OpenInsiderSource) parseScreenerHTML(html string, since time.Time) []*contracts.RawRecord {
	var records []*contracts.RawRecord

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.log.WithError(err).Warn("screener HTML unparseable")
		return records
	}

	doc.Find("table.tinytable tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 13 {
			return
		}

		tradeType := strings.TrimSpace(cells.Eq(7).Text())
		if !strings.HasPrefix(tradeType, "P") {
			return
		}

		filingDate, err := parseFilingTime(cells.Eq(1).Text())
		if err != nil {
			return
		}
		if filingDate.Before(since) {
			return
		}

		tradeDate, err := time.Parse("2006-01-02", strings.TrimSpace(cells.Eq(2).Text()))
		if err != nil {
			return
		}

		records = append(records, &contracts.RawRecord{
			Ticker:          strings.TrimSpace(cells.Eq(3).Text()),
			InsiderName:     strings.TrimSpace(cells.Eq(5).Text()),
			InsiderRoleText: strings.TrimSpace(cells.Eq(6).Text()),
			PricePerShare:   parseMoney(cells.Eq(8).Text()),
			Shares:          parseMoney(cells.Eq(9).Text()),
			Value:           parseMoney(cells.Eq(12).Text()),
			TradeDate:       tradeDate,
			FilingDate:      filingDate,
		})
	})

	return records
}

// parseFilingTime accepts the screener's timestamped filing dates and
// falls back to date-only values.
func parseFilingTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse("2006-01-02 15:04:05", text); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", text)
}

// parseMoney strips currency formatting: "$1,234,567" -> 1234567
func parseMoney(text string) float64 {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "$", "")
	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, "+", "")
	if text == "" || text == "-" {
		return 0
	}
	v, _ := strconv.ParseFloat(text, 64)
	return v
}

func lookbackDays(lookback time.Duration) int {
	days := int(lookback.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}
