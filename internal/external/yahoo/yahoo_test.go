package yahoo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yfclient "github.com/wnjoon/go-yfinance/pkg/client"
	"github.com/wnjoon/go-yfinance/pkg/models"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/config"
	"github.com/wonny/breakscan/pkg/logger"
)

type fakeTicker struct {
	mu       sync.Mutex
	bars     []models.Bar
	meta     *models.ChartMeta
	info     *models.Info
	err      error
	params   []models.HistoryParams
	infoHits int
	cleared  int
	closed   bool
	block    chan struct{}
}

func (f *fakeTicker) History(params models.HistoryParams) ([]models.Bar, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func (f *fakeTicker) GetHistoryMetadata() *models.ChartMeta { return f.meta }

func (f *fakeTicker) Info() (*models.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoHits++
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *fakeTicker) ClearCache() {
	f.mu.Lock()
	f.cleared++
	f.mu.Unlock()
}

func (f *fakeTicker) Close() { f.closed = true }

// newTestClient hands out ticker for every symbol and counts constructions
func newTestClient(tk *fakeTicker) (*Client, *int) {
	created := 0
	c := newClient(func(symbol string) (tickerAPI, error) {
		created++
		return tk, nil
	}, logger.Nop())
	return c, &created
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 20, 0, 0, 0, time.UTC)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(&config.Config{Provider: config.ProviderConfig{Timeout: 1500 * time.Millisecond}}, logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, c.yf)
	c.Close()
}

func TestChart_ConvertsBarsAndMeta(t *testing.T) {
	tk := &fakeTicker{
		bars: []models.Bar{
			{Date: day(15), Open: 188, High: 191, Low: 187.5, Close: 190.5, Volume: 51234567},
			{Date: day(13), Open: 185, High: 186.5, Low: 184, Close: 186, Volume: 38000000},
			{Date: day(14), Open: 0, High: 0, Low: 0, Close: 187, Volume: 40000000},
			{Date: day(16), Close: 0},
		},
		meta: &models.ChartMeta{
			Symbol:             "AAPL",
			Currency:           "USD",
			RegularMarketPrice: 190.5,
			ChartPreviousClose: 187,
			RegularMarketTime:  1710513000,
		},
	}
	client, _ := newTestClient(tk)

	chart, err := client.Chart(context.Background(), "AAPL", Interval1d, Range5d)
	require.NoError(t, err)

	require.Len(t, tk.params, 1)
	assert.Equal(t, "5d", tk.params[0].Period)
	assert.Equal(t, "1d", tk.params[0].Interval)
	assert.False(t, tk.params[0].AutoAdjust)

	require.NotNil(t, chart.Meta.RegularMarketPrice)
	assert.Equal(t, 190.5, *chart.Meta.RegularMarketPrice)
	require.NotNil(t, chart.Meta.PreviousClose)
	assert.Equal(t, 187.0, *chart.Meta.PreviousClose)
	assert.Equal(t, "USD", chart.Meta.Currency)
	assert.Equal(t, time.Unix(1710513000, 0).UTC(), chart.Meta.MarketTime)

	// no-trade bar dropped, sorted oldest first, missing OHLC filled from close
	require.Len(t, chart.Bars, 3)
	assert.Equal(t, 186.0, chart.Bars[0].Close)
	assert.Equal(t, 187.0, chart.Bars[1].Close)
	assert.Equal(t, 187.0, chart.Bars[1].Open)
	assert.Equal(t, 187.0, chart.Bars[1].Low)
	assert.Equal(t, 190.5, chart.Bars[2].Close)
	assert.Equal(t, int64(51234567), chart.Bars[2].Volume)
}

func TestChart_PreviousCloseFallback(t *testing.T) {
	tk := &fakeTicker{
		bars: []models.Bar{{Date: day(15), Close: 10}},
		meta: &models.ChartMeta{PreviousClose: 9.5},
	}
	client, _ := newTestClient(tk)

	chart, err := client.Chart(context.Background(), "X", Interval1m, Range1d)
	require.NoError(t, err)
	require.NotNil(t, chart.Meta.PreviousClose)
	assert.Equal(t, 9.5, *chart.Meta.PreviousClose)
	assert.Nil(t, chart.Meta.RegularMarketPrice)
}

func TestChart_ReusesTickerPerSymbol(t *testing.T) {
	tk := &fakeTicker{bars: []models.Bar{{Date: day(15), Close: 10}}}
	client, created := newTestClient(tk)

	for i := 0; i < 3; i++ {
		_, err := client.Chart(context.Background(), "aapl", Interval1d, Range1y)
		require.NoError(t, err)
	}
	_, err := client.Fundamentals(context.Background(), "AAPL")
	require.Error(t, err, "nil info")

	assert.Equal(t, 1, *created, "one crumb handshake per symbol")
}

func TestChart_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantNoData    bool
		wantTransient bool
	}{
		{"symbol not found", fmt.Errorf("failed to fetch history: %w", yfclient.WrapNotFoundError("ZZZZ")), true, false},
		{"no data", yfclient.WrapNoDataError("ZZZZ"), true, false},
		{"invalid symbol", yfclient.WrapInvalidSymbolError("??"), true, false},
		{"delisted payload", errors.New("API error: No data found, symbol may be delisted"), true, false},
		{"rate limited", fmt.Errorf("failed to fetch history: %w", yfclient.WrapRateLimitError()), false, true},
		{"server error", yfclient.HTTPStatusToError(503, ""), false, true},
		{"timeout", yfclient.WrapTimeoutError(errors.New("deadline")), false, true},
		{"expired crumb", yfclient.HTTPStatusToError(401, ""), false, true},
		{"crumb handshake", errors.New("failed to get crumb: authentication failed: EOF"), false, true},
		{"connection reset", errors.New("GET request failed: connection reset by peer"), false, true},
		{"bad request", yfclient.HTTPStatusToError(400, "bad"), false, false},
		{"malformed payload", yfclient.WrapInvalidResponseError(errors.New("unexpected EOF")), false, false},
		{"other api error", errors.New("API error: Invalid interval"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(&fakeTicker{err: tt.err})

			_, err := client.Chart(context.Background(), "ZZZZ", Interval1m, Range1d)
			require.Error(t, err)
			assert.Equal(t, tt.wantNoData, errors.Is(err, contracts.ErrNoData))
			assert.Equal(t, tt.wantTransient, contracts.IsTransient(err))
		})
	}
}

func TestChart_AuthFailureRenewsTicker(t *testing.T) {
	tk := &fakeTicker{err: yfclient.HTTPStatusToError(401, "")}
	client, created := newTestClient(tk)

	_, err := client.Chart(context.Background(), "AAPL", Interval1d, Range5d)
	require.Error(t, err)
	assert.True(t, tk.closed)

	tk.err = nil
	_, err = client.Chart(context.Background(), "AAPL", Interval1d, Range5d)
	require.NoError(t, err)
	assert.Equal(t, 2, *created)
}

func TestChart_ContextCancelled(t *testing.T) {
	tk := &fakeTicker{block: make(chan struct{})}
	defer close(tk.block)
	client, _ := newTestClient(tk)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Chart(ctx, "AAPL", Interval1d, Range1y)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// already cancelled: the provider is not touched
	done, stop := context.WithCancel(context.Background())
	stop()
	_, err = client.Fundamentals(done, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tk.infoHits)
}

func TestFundamentals(t *testing.T) {
	tk := &fakeTicker{info: &models.Info{
		Sector:           "Technology",
		Industry:         "Consumer Electronics",
		TrailingPE:       29.4,
		ForwardPE:        27.1,
		MarketCap:        2950000000000,
		Beta:             1.29,
		DividendYield:    0.0051,
		FiftyTwoWeekHigh: 199.62,
		FiftyTwoWeekLow:  164.08,
	}}
	client, _ := newTestClient(tk)

	f, err := client.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	require.NotNil(t, f.PE)
	assert.Equal(t, 29.4, *f.PE)
	require.NotNil(t, f.ForwardPE)
	assert.Equal(t, 27.1, *f.ForwardPE)
	require.NotNil(t, f.MarketCap)
	assert.Equal(t, 2.95e12, *f.MarketCap)
	require.NotNil(t, f.Beta)
	assert.Equal(t, 1.29, *f.Beta)
	assert.Equal(t, "Technology", f.Sector)
	assert.Equal(t, "Consumer Electronics", f.Industry)
	assert.NotNil(t, f.FiftyTwoWeekHigh)
	assert.Equal(t, 1, tk.cleared, "memoized info is dropped before each read")
}

func TestFundamentals_Partial(t *testing.T) {
	client, _ := newTestClient(&fakeTicker{info: &models.Info{MarketCap: 1500000000, Beta5Y: -0.3}})

	f, err := client.Fundamentals(context.Background(), "TINY")
	require.NoError(t, err)
	assert.Nil(t, f.PE)
	require.NotNil(t, f.MarketCap)
	assert.Equal(t, 1.5e9, *f.MarketCap)
	require.NotNil(t, f.Beta, "falls back to the 5y beta")
	assert.Equal(t, -0.3, *f.Beta)
	assert.Empty(t, f.Sector)
}

func TestFundamentals_NotFound(t *testing.T) {
	client, _ := newTestClient(&fakeTicker{err: fmt.Errorf("failed to fetch info: %w", yfclient.WrapNotFoundError("GONE"))})

	_, err := client.Fundamentals(context.Background(), "GONE")
	assert.ErrorIs(t, err, contracts.ErrNoData)
}
