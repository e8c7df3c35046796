package yahoo

import (
	"context"
	"fmt"
	"math"

	"github.com/wnjoon/go-yfinance/pkg/models"

	"github.com/wonny/breakscan/internal/contracts"
)

// Fundamentals fetches company metadata. Fields the provider leaves unset stay nil.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	op := fmt.Sprintf("info %s", symbol)

	var info *models.Info
	err := c.call(ctx, op, symbol, func(t tickerAPI) error {
		// Info is memoized per ticker; every scan wants a fresh read
		t.ClearCache()
		var err error
		info, err = t.Info()
		return err
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%s: %w", op, contracts.ErrNoData)
	}

	f := &contracts.Fundamentals{
		PE:               positive(info.TrailingPE),
		ForwardPE:        positive(info.ForwardPE),
		DividendYield:    positive(info.DividendYield),
		FiftyTwoWeekHigh: positive(info.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  positive(info.FiftyTwoWeekLow),
		Sector:           info.Sector,
		Industry:         info.Industry,
	}
	if info.MarketCap > 0 {
		f.MarketCap = positive(float64(info.MarketCap))
	}

	// beta may be negative; zero means unreported
	f.Beta = nonZero(info.Beta)
	if f.Beta == nil {
		f.Beta = nonZero(info.Beta5Y)
	}

	return f, nil
}

func nonZero(v float64) *float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
