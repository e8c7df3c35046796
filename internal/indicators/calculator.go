package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/logger"
)

// Indicator windows
const (
	SMAShort  = 20
	SMAMedium = 50
	SMALong   = 200
	EMAFast   = 12
	EMASlow   = 26

	RSIPeriod  = 14
	MACDSignal = 9

	BollingerPeriod = 20
	BollingerStdDev = 2.0

	StochKPeriod = 14
	StochDPeriod = 3

	ATRPeriod    = 14
	VWAPPeriod   = 20
	VolumePeriod = 20
	LevelPeriod  = 20 // support/resistance lookback, excluding the latest bar
)

// Minimum bars before each value is reported
const (
	minRSI        = RSIPeriod + 1
	minMACDLine   = EMASlow
	minMACDSignal = EMASlow + MACDSignal
	minStoch      = StochKPeriod + StochDPeriod - 1
	minATR        = ATRPeriod + 1
	minLevels     = LevelPeriod + 1
)

// Calculator computes the technical indicator set from a daily history.
// Values that need more bars than available are left nil.
// ⭐ SSOT: 기술적 지표 계산은 여기서만
type Calculator struct {
	logger *logger.Logger
}

// NewCalculator creates a new indicator calculator
func NewCalculator(log *logger.Logger) *Calculator {
	return &Calculator{
		logger: log.WithComponent("indicators"),
	}
}

// Compute returns the latest indicator values for history (oldest first).
// A panic inside the math is recovered into an empty set and a non-nil error.
func (c *Calculator) Compute(symbol string, history contracts.PriceHistory) (set contracts.IndicatorSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = contracts.IndicatorSet{}
			err = fmt.Errorf("indicator computation panicked: %v", r)
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"bars":   len(history),
			}).WithError(err).Warn("Indicators degraded to empty set")
		}
	}()

	set = compute(history)

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(history),
	}).Debug("Computed indicators")

	return set, nil
}

func compute(history contracts.PriceHistory) contracts.IndicatorSet {
	var set contracts.IndicatorSet
	n := len(history)
	if n == 0 {
		return set
	}

	closes := history.Closes()
	highs := history.Highs()
	lows := history.Lows()
	volumes := history.Volumes()

	// Moving averages
	set.SMA20 = lastOf(closes, SMAShort, func() []float64 { return talib.Sma(closes, SMAShort) })
	set.SMA50 = lastOf(closes, SMAMedium, func() []float64 { return talib.Sma(closes, SMAMedium) })
	set.SMA200 = lastOf(closes, SMALong, func() []float64 { return talib.Sma(closes, SMALong) })
	set.EMA12 = lastOf(closes, EMAFast, func() []float64 { return talib.Ema(closes, EMAFast) })
	set.EMA26 = lastOf(closes, EMASlow, func() []float64 { return talib.Ema(closes, EMASlow) })

	// RSI (Wilder)
	set.RSI = clampPercent(lastOf(closes, minRSI, func() []float64 { return talib.Rsi(closes, RSIPeriod) }))

	// MACD: line from the two EMAs; signal/histogram once the signal EMA is seeded
	if n >= minMACDSignal {
		macd, signal, hist := talib.Macd(closes, EMAFast, EMASlow, MACDSignal)
		set.MACD = finite(macd[n-1])
		set.MACDSignal = finite(signal[n-1])
		set.MACDHistogram = finite(hist[n-1])
	} else if n >= minMACDLine && set.EMA12 != nil && set.EMA26 != nil {
		set.MACD = finite(*set.EMA12 - *set.EMA26)
	}

	// Bollinger Bands
	if n >= BollingerPeriod {
		upper, middle, lower := talib.BBands(closes, BollingerPeriod, BollingerStdDev, BollingerStdDev, talib.SMA)
		u, m, l := finite(upper[n-1]), finite(middle[n-1]), finite(lower[n-1])
		if u != nil && m != nil && l != nil {
			set.BollingerUpper, set.BollingerMiddle, set.BollingerLower = u, m, l
		}
	}

	// Fast stochastic
	if n >= minStoch {
		k, d := talib.StochF(highs, lows, closes, StochKPeriod, StochDPeriod, talib.SMA)
		set.StochasticK = clampPercent(finite(k[n-1]))
		set.StochasticD = clampPercent(finite(d[n-1]))
	}

	// ATR
	set.ATR = lastOf(closes, minATR, func() []float64 { return talib.Atr(highs, lows, closes, ATRPeriod) })

	// VWAP of typical price
	if n >= VWAPPeriod {
		set.VWAP = vwap(history[n-VWAPPeriod:])
	}

	// Volume ratio: latest volume vs 20-bar mean including the latest bar
	if n >= VolumePeriod {
		mean := stat.Mean(volumes[n-VolumePeriod:], nil)
		if mean > 0 {
			set.VolumeRatio = finite(volumes[n-1] / mean)
		}
	}

	// Support/resistance over the bars preceding the latest
	if n >= minLevels {
		window := history[n-1-LevelPeriod : n-1]
		support, resistance := window[0].Low, window[0].High
		for _, b := range window[1:] {
			support = math.Min(support, b.Low)
			resistance = math.Max(resistance, b.High)
		}
		set.SupportLevel = finite(support)
		set.ResistanceLevel = finite(resistance)
	}

	return set
}

// lastOf returns the last element of series() when at least minBars inputs exist
func lastOf(in []float64, minBars int, series func() []float64) *float64 {
	if len(in) < minBars {
		return nil
	}
	out := series()
	if len(out) == 0 {
		return nil
	}
	return finite(out[len(out)-1])
}

func vwap(bars contracts.PriceHistory) *float64 {
	var pv, vol float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * float64(b.Volume)
		vol += float64(b.Volume)
	}
	if vol == 0 {
		return nil
	}
	return finite(pv / vol)
}

// finite maps NaN/Inf to nil
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func clampPercent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := math.Max(0, math.Min(100, *v))
	return &x
}
