package yahoo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wnjoon/go-yfinance/pkg/models"

	"github.com/wonny/breakscan/internal/contracts"
)

// Chart intervals and ranges used by the fetcher
const (
	Interval1m = "1m"
	Interval1d = "1d"
	Range1d    = "1d"
	Range5d    = "5d"
	Range1y    = "1y"
)

// ChartMeta is the quote metadata returned alongside the bars
type ChartMeta struct {
	Symbol             string
	Currency           string
	RegularMarketPrice *float64
	PreviousClose      *float64
	MarketTime         time.Time
}

// Chart is a decoded chart with empty bars removed, oldest first
type Chart struct {
	Meta ChartMeta
	Bars contracts.PriceHistory
}

// Chart fetches bars for symbol at the given interval and range.
// Prices are as quoted (not dividend adjusted) so the last daily close lines up
// with the intraday price. An empty but valid payload returns a Chart with no bars.
func (c *Client) Chart(ctx context.Context, symbol, interval, rng string) (*Chart, error) {
	op := fmt.Sprintf("chart %s %s/%s", symbol, interval, rng)

	var (
		raw  []models.Bar
		meta *models.ChartMeta
	)
	err := c.call(ctx, op, symbol, func(t tickerAPI) error {
		var err error
		raw, err = t.History(models.HistoryParams{
			Period:   rng,
			Interval: interval,
		})
		if err != nil {
			return err
		}
		meta = t.GetHistoryMetadata()
		return nil
	})
	if err != nil {
		return nil, err
	}

	chart := &Chart{Bars: toBars(raw)}
	if meta != nil {
		chart.Meta = ChartMeta{
			Symbol:             meta.Symbol,
			Currency:           meta.Currency,
			RegularMarketPrice: positive(meta.RegularMarketPrice),
			PreviousClose:      positive(meta.ChartPreviousClose),
		}
		if chart.Meta.PreviousClose == nil {
			chart.Meta.PreviousClose = positive(meta.PreviousClose)
		}
		if meta.RegularMarketTime > 0 {
			chart.Meta.MarketTime = time.Unix(meta.RegularMarketTime, 0).UTC()
		}
	}
	return chart, nil
}

// toBars drops bars without a trade and fills missing OHLC from the close
func toBars(raw []models.Bar) contracts.PriceHistory {
	bars := make(contracts.PriceHistory, 0, len(raw))
	for _, b := range raw {
		if !valid(b.Close) {
			continue // 거래 없는 봉 (휴장 등)
		}
		bar := contracts.PriceBar{
			Date:  b.Date.UTC(),
			Close: b.Close,
			Open:  orClose(b.Open, b.Close),
			High:  orClose(b.High, b.Close),
			Low:   orClose(b.Low, b.Close),
		}
		if b.Volume > 0 {
			bar.Volume = b.Volume
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func orClose(v, fallback float64) float64 {
	if !valid(v) {
		return fallback
	}
	return v
}

// positive returns a pointer to v, or nil when the provider left it unset
func positive(v float64) *float64 {
	if !valid(v) {
		return nil
	}
	return &v
}
