package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/external/yahoo"
	"github.com/wonny/breakscan/pkg/logger"
)

type chartKey struct{ interval, rng string }

// fakeProvider returns canned charts per interval/range
type fakeProvider struct {
	charts    map[chartKey]*yahoo.Chart
	chartErrs map[chartKey]error
	fund      *contracts.Fundamentals
	fundErr   error
	calls     []chartKey
}

func (p *fakeProvider) Chart(_ context.Context, _ string, interval, rng string) (*yahoo.Chart, error) {
	k := chartKey{interval, rng}
	p.calls = append(p.calls, k)
	if err := p.chartErrs[k]; err != nil {
		return nil, err
	}
	if c, ok := p.charts[k]; ok {
		return c, nil
	}
	return &yahoo.Chart{}, nil
}

func (p *fakeProvider) Fundamentals(context.Context, string) (*contracts.Fundamentals, error) {
	if p.fundErr != nil {
		return nil, p.fundErr
	}
	if p.fund == nil {
		return &contracts.Fundamentals{}, nil
	}
	return p.fund, nil
}

func bars(closes ...float64) contracts.PriceHistory {
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	out := make(contracts.PriceHistory, len(closes))
	for i, c := range closes {
		out[i] = contracts.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}

var (
	intraday = chartKey{yahoo.Interval1m, yahoo.Range1d}
	daily5d  = chartKey{yahoo.Interval1d, yahoo.Range5d}
	daily1y  = chartKey{yahoo.Interval1d, yahoo.Range1y}
)

func TestFetch_IntradayPath(t *testing.T) {
	prev := 100.0
	p := &fakeProvider{
		charts: map[chartKey]*yahoo.Chart{
			intraday: {Meta: yahoo.ChartMeta{PreviousClose: &prev}, Bars: bars(101, 102, 103)},
			daily1y:  {Bars: bars(90, 95, 100)},
		},
		fund: &contracts.Fundamentals{MarketCap: contracts.Float(3e12), Sector: "Technology"},
	}

	got, err := New(p, logger.Nop()).Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, contracts.SourceIntraday, got.Quote.Source)
	assert.Equal(t, 103.0, got.Quote.CurrentPrice)
	assert.InDelta(t, 3.0, got.Quote.ChangePercent, 1e-9)
	assert.Equal(t, int64(3000), got.Quote.Volume, "sum of the day's minute bars")
	assert.Empty(t, got.Quote.StalenessWarning)
	require.NotNil(t, got.Quote.MarketCap)
	assert.Equal(t, 3e12, *got.Quote.MarketCap)
	assert.Len(t, got.History, 3)
	assert.Empty(t, got.Degraded)
	assert.NotContains(t, p.calls, daily5d, "fallback not needed")
}

func TestFetch_FallbackOnEmptyIntraday(t *testing.T) {
	p := &fakeProvider{
		charts: map[chartKey]*yahoo.Chart{
			daily5d: {Bars: bars(98, 99, 100, 110)},
			daily1y: {Bars: bars(90, 100, 110)},
		},
	}

	got, err := New(p, logger.Nop()).Fetch(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, contracts.SourceDailyFallback, got.Quote.Source)
	assert.Equal(t, 110.0, got.Quote.CurrentPrice)
	assert.InDelta(t, 10.0, got.Quote.ChangePercent, 1e-9)
	assert.Contains(t, got.Quote.StalenessWarning, "2024-03-14")
}

func TestFetch_FallbackOnIntradayError(t *testing.T) {
	p := &fakeProvider{
		charts:    map[chartKey]*yahoo.Chart{daily5d: {Bars: bars(50)}},
		chartErrs: map[chartKey]error{intraday: contracts.Transient("chart", errors.New("502"))},
	}

	got, err := New(p, logger.Nop()).Fetch(context.Background(), "XOM")
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceDailyFallback, got.Quote.Source)
	assert.Zero(t, got.Quote.ChangePercent, "single bar has no previous close")
}

func TestFetch_BothEmptyIsNoData(t *testing.T) {
	p := &fakeProvider{}

	_, err := New(p, logger.Nop()).Fetch(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNoData)
	assert.False(t, contracts.IsTransient(err))
}

func TestFetch_TransientPrimaryWithEmptyFallbackIsRetried(t *testing.T) {
	p := &fakeProvider{
		chartErrs: map[chartKey]error{intraday: contracts.Transient("chart", errors.New("503"))},
	}

	_, err := New(p, logger.Nop()).Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, contracts.IsTransient(err))
}

func TestFetch_HistoryFailureIsTransient(t *testing.T) {
	p := &fakeProvider{
		charts:    map[chartKey]*yahoo.Chart{intraday: {Bars: bars(10)}},
		chartErrs: map[chartKey]error{daily1y: fmt.Errorf("decode: unexpected EOF")},
	}

	_, err := New(p, logger.Nop()).Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, contracts.IsTransient(err))
}

func TestFetch_HistoryNoDataYieldsEmptyHistory(t *testing.T) {
	p := &fakeProvider{
		charts:    map[chartKey]*yahoo.Chart{intraday: {Bars: bars(10)}},
		chartErrs: map[chartKey]error{daily1y: contracts.ErrNoData},
	}

	got, err := New(p, logger.Nop()).Fetch(context.Background(), "NEWIPO")
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestFetch_FundamentalsFailureDegrades(t *testing.T) {
	p := &fakeProvider{
		charts:  map[chartKey]*yahoo.Chart{intraday: {Bars: bars(10)}, daily1y: {Bars: bars(9, 10)}},
		fundErr: errors.New("401 unauthorized"),
	}

	got, err := New(p, logger.Nop()).Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{contracts.StageFundamentals}, got.Degraded)
	assert.Nil(t, got.Quote.MarketCap)
	assert.Nil(t, got.Fundamentals.Beta)
}

func TestFetch_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{chartErrs: map[chartKey]error{intraday: context.Canceled}}

	_, err := New(p, logger.Nop()).Fetch(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}

// countingLimiter admits calls and counts them; it refuses once ctx is done
type countingLimiter struct {
	acquired int
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.acquired++
	return nil
}

func TestFetch_LimiterGatesEveryProviderCall(t *testing.T) {
	p := &fakeProvider{
		charts: map[chartKey]*yahoo.Chart{
			daily5d: {Bars: bars(98, 99)},
			daily1y: {Bars: bars(90, 99)},
		},
	}
	lim := &countingLimiter{}

	_, err := New(p, logger.Nop()).WithLimiter(lim).Fetch(context.Background(), "MSFT")
	require.NoError(t, err)

	// intraday, daily fallback, history, fundamentals
	assert.Len(t, p.calls, 3)
	assert.Equal(t, 4, lim.acquired)
}

func TestFetch_LimiterRefusalStopsFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{}

	_, err := New(p, logger.Nop()).WithLimiter(&countingLimiter{}).Fetch(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.calls, "no request without a slot")
}
