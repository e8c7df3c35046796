package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/external/yahoo"
	"github.com/wonny/breakscan/pkg/logger"
)

// Provider is the subset of the quote provider the fetcher uses
type Provider interface {
	Chart(ctx context.Context, symbol, interval, rng string) (*yahoo.Chart, error)
	Fundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error)
}

// Limiter admits one provider call (internal/ratelimit.Throttle)
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Fetcher obtains quote, one year of daily history and fundamentals for one symbol.
// Every provider call takes its own limiter slot, so the ceiling counts requests,
// not symbols. It never writes the cache and never retries; see internal/ratelimit.
// ⭐ SSOT: 종목 단위 시세 수집은 여기서만
type Fetcher struct {
	provider Provider
	limiter  Limiter
	logger   *logger.Logger
}

// New creates a new fetcher
func New(provider Provider, log *logger.Logger) *Fetcher {
	return &Fetcher{
		provider: provider,
		logger:   log.WithComponent("fetcher"),
	}
}

// WithLimiter gates every provider call; nil leaves calls unthrottled
func (f *Fetcher) WithLimiter(l Limiter) *Fetcher {
	f.limiter = l
	return f
}

func (f *Fetcher) chart(ctx context.Context, symbol, interval, rng string) (*yahoo.Chart, error) {
	if f.limiter != nil {
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return f.chart(ctx, symbol, interval, rng)
}

func (f *Fetcher) fundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	if f.limiter != nil {
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return f.provider.Fundamentals(ctx, symbol)
}

// Fetch runs one unit of work for symbol.
// ErrNoData when neither the intraday nor the daily path has a price.
// Transient errors from any required call are returned wrapped for the retry executor.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*contracts.FetchedQuote, error) {
	quote, err := f.fetchIntraday(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Debug("Intraday quote unavailable, falling back to daily bars")

		var fbErr error
		quote, fbErr = f.fetchDailyFallback(ctx, symbol)
		if fbErr != nil {
			// ErrNoData only when both paths say so
			if errors.Is(fbErr, contracts.ErrNoData) && !errors.Is(err, contracts.ErrNoData) && contracts.IsTransient(err) {
				return nil, err
			}
			return nil, fbErr
		}
	}

	history, err := f.fetchHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result := &contracts.FetchedQuote{
		Quote:   *quote,
		History: history,
	}

	fundamentals, err := f.fundamentals(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
		}).WithError(err).Warn("Fundamentals unavailable, continuing with partial metadata")
		result.Degraded = append(result.Degraded, contracts.StageFundamentals)
	} else {
		result.Fundamentals = *fundamentals
		result.Quote.MarketCap = fundamentals.MarketCap
	}

	f.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"price":  result.Quote.CurrentPrice,
		"source": result.Quote.Source,
		"bars":   len(history),
	}).Debug("Fetched quote")

	return result, nil
}

// fetchIntraday reads the latest trade from today's 1-minute bars
func (f *Fetcher) fetchIntraday(ctx context.Context, symbol string) (*contracts.QuoteSnapshot, error) {
	chart, err := f.chart(ctx, symbol, yahoo.Interval1m, yahoo.Range1d)
	if err != nil {
		return nil, err
	}
	if len(chart.Bars) == 0 {
		return nil, fmt.Errorf("intraday %s: empty rows: %w", symbol, contracts.ErrNoData)
	}

	last := chart.Bars[len(chart.Bars)-1]
	snap := &contracts.QuoteSnapshot{
		Symbol:       symbol,
		CurrentPrice: last.Close,
		Source:       contracts.SourceIntraday,
		Timestamp:    last.Date,
	}

	if chart.Meta.PreviousClose != nil && *chart.Meta.PreviousClose > 0 {
		snap.ChangePercent = (last.Close - *chart.Meta.PreviousClose) / *chart.Meta.PreviousClose * 100
	}

	// 당일 누적 거래량
	for _, b := range chart.Bars {
		snap.Volume += b.Volume
	}

	return snap, nil
}

// fetchDailyFallback derives the quote from the last two daily closes
func (f *Fetcher) fetchDailyFallback(ctx context.Context, symbol string) (*contracts.QuoteSnapshot, error) {
	chart, err := f.chart(ctx, symbol, yahoo.Interval1d, yahoo.Range5d)
	if err != nil {
		return nil, err
	}
	if len(chart.Bars) == 0 {
		return nil, fmt.Errorf("daily %s: empty rows: %w", symbol, contracts.ErrNoData)
	}

	last := chart.Bars[len(chart.Bars)-1]
	snap := &contracts.QuoteSnapshot{
		Symbol:       symbol,
		CurrentPrice: last.Close,
		Volume:       last.Volume,
		Source:       contracts.SourceDailyFallback,
		Timestamp:    last.Date,
	}
	snap.StalenessWarning = fmt.Sprintf("intraday data unavailable; price is the daily close of %s",
		last.Date.Format("2006-01-02"))

	if len(chart.Bars) >= 2 {
		prev := chart.Bars[len(chart.Bars)-2].Close
		if prev > 0 {
			snap.ChangePercent = (last.Close - prev) / prev * 100
		}
	}

	return snap, nil
}

// fetchHistory pulls one year of daily bars.
// No history is tolerated (indicators come out empty); any other failure is retryable.
func (f *Fetcher) fetchHistory(ctx context.Context, symbol string) (contracts.PriceHistory, error) {
	chart, err := f.chart(ctx, symbol, yahoo.Interval1d, yahoo.Range1y)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, contracts.ErrNoData) {
			f.logger.WithField("symbol", symbol).Warn("No daily history, indicators will be empty")
			return contracts.PriceHistory{}, nil
		}
		if contracts.IsTransient(err) {
			return nil, err
		}
		return nil, contracts.Transient("history "+symbol, err)
	}
	return chart.Bars, nil
}
