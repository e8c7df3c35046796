package contracts

import "time"

// PriceBar is one daily (or intraday) OHLCV bar
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceHistory is ordered oldest first, most recent last
// ⭐ SSOT: 모든 지표 계산은 이 순서를 전제로 함
type PriceHistory []PriceBar

// Len returns the number of bars
func (h PriceHistory) Len() int { return len(h) }

// Last returns the most recent bar, false when empty
func (h PriceHistory) Last() (PriceBar, bool) {
	if len(h) == 0 {
		return PriceBar{}, false
	}
	return h[len(h)-1], true
}

// Closes extracts the close series
func (h PriceHistory) Closes() []float64 {
	out := make([]float64, len(h))
	for i, b := range h {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series
func (h PriceHistory) Highs() []float64 {
	out := make([]float64, len(h))
	for i, b := range h {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series
func (h PriceHistory) Lows() []float64 {
	out := make([]float64, len(h))
	for i, b := range h {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series as float64
func (h PriceHistory) Volumes() []float64 {
	out := make([]float64, len(h))
	for i, b := range h {
		out[i] = float64(b.Volume)
	}
	return out
}

// Quote sources
const (
	SourceIntraday      = "intraday"
	SourceDailyFallback = "daily_fallback"
)

// QuoteSnapshot is the latest observed price for one symbol
type QuoteSnapshot struct {
	Symbol           string    `json:"symbol"`
	CurrentPrice     float64   `json:"current_price"`
	ChangePercent    float64   `json:"change_percent"`
	Volume           int64     `json:"volume"`
	MarketCap        *float64  `json:"market_cap,omitempty"`
	Source           string    `json:"source"` // intraday | daily_fallback
	Timestamp        time.Time `json:"timestamp"`
	StalenessWarning string    `json:"staleness_warning,omitempty"`
}

// Fundamentals is best-effort company metadata; every field may be missing
type Fundamentals struct {
	PE               *float64 `json:"pe,omitempty"`
	ForwardPE        *float64 `json:"forward_pe,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	DividendYield    *float64 `json:"dividend_yield,omitempty"`
	Sector           string   `json:"sector,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
}

// FetchedQuote is the product of one fetch unit of work
type FetchedQuote struct {
	Quote        QuoteSnapshot `json:"quote"`
	History      PriceHistory  `json:"history"`
	Fundamentals Fundamentals  `json:"fundamentals"`
	Degraded     []string      `json:"degraded,omitempty"` // stages that fell back, e.g. fundamentals
}

// Float returns a pointer to v (optional field helper)
func Float(v float64) *float64 {
	return &v
}
