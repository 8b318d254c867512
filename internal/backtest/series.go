package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
)

// dateKey collapses a timestamp to its UTC calendar day
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SeriesProvider serves historical daily prices from in-memory series.
// It implements contracts.PriceProvider for the backtest: a ticker with
// no bar on the queried day answers DataUnavailable, which defers the
// decision exactly as a live provider outage would.
type SeriesProvider struct {
	byDay  map[string]map[string]float64 // ticker -> day -> price
	series map[string][]contracts.PricePoint
}

// NewSeriesProvider indexes the given price series. Each series is
// sorted by date; duplicate days keep the last value.
func NewSeriesProvider(series map[string][]contracts.PricePoint) *SeriesProvider {
	p := &SeriesProvider{
		byDay:  make(map[string]map[string]float64, len(series)),
		series: make(map[string][]contracts.PricePoint, len(series)),
	}

	for ticker, points := range series {
		sorted := make([]contracts.PricePoint, len(points))
		copy(sorted, points)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

		days := make(map[string]float64, len(sorted))
		for _, point := range sorted {
			days[dateKey(point.Date)] = point.Price
		}

		p.byDay[ticker] = days
		p.series[ticker] = sorted
	}

	return p
}

// Price returns the ticker's bar for the day of at
func (p *SeriesProvider) Price(ctx context.Context, ticker string, at time.Time) (float64, error) {
	days, ok := p.byDay[ticker]
	if !ok {
		return 0, &contracts.DataUnavailable{Ticker: ticker, At: at}
	}
	price, ok := days[dateKey(at)]
	if !ok {
		return 0, &contracts.DataUnavailable{Ticker: ticker, At: at}
	}
	return price, nil
}

// HistoricalSeries returns the ticker's bars inside [from, to]
func (p *SeriesProvider) HistoricalSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	all, ok := p.series[ticker]
	if !ok {
		return nil, &contracts.DataUnavailable{Ticker: ticker, At: from}
	}

	var out []contracts.PricePoint
	for _, point := range all {
		if point.Date.Before(from) || point.Date.After(to) {
			continue
		}
		out = append(out, point)
	}
	return out, nil
}

// lastPriceOnOrBefore walks backwards from a day to the most recent
// bar. Used for mark-to-market of the equity curve over gaps.
func (p *SeriesProvider) lastPriceOnOrBefore(ticker string, at time.Time) (float64, bool) {
	all, ok := p.series[ticker]
	if !ok {
		return 0, false
	}

	idx := sort.Search(len(all), func(i int) bool { return all[i].Date.After(at) })
	if idx == 0 {
		return 0, false
	}
	return all[idx-1].Price, true
}
