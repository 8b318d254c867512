package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/insiderbot/pkg/config"
	"github.com/wonny/insiderbot/pkg/logger"
)

const screenerFixture = `
<html><body>
<table class="tinytable">
<thead><tr><th>X</th><th>Filing Date</th><th>Trade Date</th><th>Ticker</th><th>Company</th><th>Insider Name</th><th>Title</th><th>Trade Type</th><th>Price</th><th>Qty</th><th>Owned</th><th>dOwn</th><th>Value</th></tr></thead>
<tbody>
<tr>
  <td></td><td>2026-03-03 16:12:11</td><td>2026-03-02</td><td>ACME</td><td>Acme Corp</td>
  <td>Smith Jane</td><td>CEO</td><td>P - Purchase</td>
  <td>$50.00</td><td>+5,000</td><td>120,000</td><td>+4%</td><td>+$250,000</td>
</tr>
<tr>
  <td></td><td>2026-03-03 09:30:00</td><td>2026-03-02</td><td>BETA</td><td>Beta Inc</td>
  <td>Doe John</td><td>Dir</td><td>S - Sale</td>
  <td>$20.00</td><td>-1,000</td><td>9,000</td><td>-10%</td><td>-$20,000</td>
</tr>
<tr>
  <td></td><td>2026-01-03 10:00:00</td><td>2026-01-02</td><td>OLD</td><td>Old Co</td>
  <td>Lee Alice</td><td>CFO</td><td>P - Purchase</td>
  <td>$10.00</td><td>+12,000</td><td>50,000</td><td>+30%</td><td>+$120,000</td>
</tr>
</tbody>
</table>
</body></html>`

func newSource() *OpenInsiderSource {
	return NewOpenInsiderSource(&config.ScraperConfig{
		BaseURL:   "http://openinsider.com",
		UserAgent: "insiderbot/1.0",
		PageSize:  100,
	}, logger.NewNop())
}

func TestParseScreenerHTML(t *testing.T) {
	s := newSource()
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	records := s.parseScreenerHTML(screenerFixture, since)

	// the sale row and the stale row are dropped
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "ACME", r.Ticker)
	assert.Equal(t, "Smith Jane", r.InsiderName)
	assert.Equal(t, "CEO", r.InsiderRoleText)
	assert.Equal(t, 50.0, r.PricePerShare)
	assert.Equal(t, 5000.0, r.Shares)
	assert.Equal(t, 250000.0, r.Value)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), r.TradeDate)
	assert.Equal(t, time.Date(2026, 3, 3, 16, 12, 11, 0, time.UTC), r.FilingDate)
}

func TestParseScreenerHTMLToleratesGarbage(t *testing.T) {
	s := newSource()
	since := time.Time{}

	assert.Empty(t, s.parseScreenerHTML("not html at all", since))
	assert.Empty(t, s.parseScreenerHTML("<table class=\"tinytable\"><tr><td>x</td></tr></table>", since))
}

func TestParseMoney(t *testing.T) {
	assert.Equal(t, 1234567.0, parseMoney("+$1,234,567"))
	assert.Equal(t, 50.25, parseMoney("$50.25"))
	assert.Zero(t, parseMoney("-"))
	assert.Zero(t, parseMoney(""))
}

func TestLookbackDays(t *testing.T) {
	assert.Equal(t, 30, lookbackDays(30*24*time.Hour))
	assert.Equal(t, 1, lookbackDays(time.Hour))
}
