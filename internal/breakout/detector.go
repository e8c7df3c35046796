package breakout

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/strategyconfig"
	"github.com/wonny/breakscan/pkg/logger"
)

// Detector evaluates the breakout patterns against the latest indicators.
// At most one signal is reported per symbol: the highest confidence,
// ties broken by contracts.AllBreakoutTypes order.
// ⭐ SSOT: 브레이크아웃 판정은 여기서만
type Detector struct {
	cfg    strategyconfig.BreakoutConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewDetector creates a new breakout detector
func NewDetector(cfg strategyconfig.BreakoutConfig, log *logger.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: log.WithComponent("breakout"),
		now:    time.Now,
	}
}

// WithClock overrides the DetectedAt clock (tests)
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Detect returns the winning signal, or nil when no pattern fires.
// A panic is recovered into (nil, error).
func (d *Detector) Detect(symbol string, price float64, ind contracts.IndicatorSet) (sig *contracts.BreakoutSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = nil
			err = fmt.Errorf("breakout detection panicked: %v", r)
			d.logger.WithField("symbol", symbol).WithError(err).Warn("Breakout detection degraded")
		}
	}()

	candidates := d.DetectAll(symbol, price, ind)
	if len(candidates) == 0 {
		return nil, nil
	}

	// candidates are in priority order; only a strictly higher confidence displaces
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	d.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"type":       best.Type,
		"confidence": best.Confidence,
		"fired":      len(candidates),
	}).Debug("Breakout detected")

	return &best, nil
}

// DetectAll returns every pattern that fires, in priority order
func (d *Detector) DetectAll(symbol string, price float64, ind contracts.IndicatorSet) []contracts.BreakoutSignal {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil
	}

	var out []contracts.BreakoutSignal
	detectedAt := d.now()

	for _, t := range contracts.AllBreakoutTypes {
		level, confidence, ok := d.evaluate(t, price, ind)
		if !ok {
			continue
		}
		out = append(out, contracts.BreakoutSignal{
			Symbol:        symbol,
			Type:          t,
			BreakoutPrice: level,
			CurrentPrice:  price,
			Confidence:    clampUnit(confidence),
			DetectedAt:    detectedAt,
		})
	}
	return out
}

// evaluate returns the crossed level and confidence when pattern t fires.
// A missing indicator means the pattern does not fire.
func (d *Detector) evaluate(t contracts.BreakoutType, price float64, ind contracts.IndicatorSet) (float64, float64, bool) {
	switch t {
	case contracts.Breakout200DMA:
		return priceVolume(d.cfg.DMA200, price, ind.SMA200, ind.VolumeRatio)

	case contracts.BreakoutResistance:
		return priceVolume(d.cfg.Resistance, price, ind.ResistanceLevel, ind.VolumeRatio)

	case contracts.BreakoutBollinger:
		return priceVolume(d.cfg.Bollinger, price, ind.BollingerUpper, ind.VolumeRatio)

	case contracts.BreakoutMACD:
		c := d.cfg.MACD
		if ind.MACD == nil || ind.MACDSignal == nil || ind.RSI == nil || ind.SMA50 == nil {
			return 0, 0, false
		}
		if *ind.MACD > *ind.MACDSignal && *ind.RSI > c.RSIMin && *ind.RSI < c.RSIMax && price > *ind.SMA50 {
			return price, c.Confidence, true
		}

	case contracts.BreakoutStochastic:
		c := d.cfg.Stochastic
		if ind.StochasticK == nil || ind.StochasticD == nil {
			return 0, 0, false
		}
		k := *ind.StochasticK
		if k > *ind.StochasticD && k > c.KMin && k < c.KMax {
			return price, c.Confidence, true
		}
	}
	return 0, 0, false
}

// priceVolume fires when price > level×(1+margin) and volume_ratio > min
func priceVolume(p strategyconfig.PriceVolumePattern, price float64, level, volumeRatio *float64) (float64, float64, bool) {
	if level == nil || volumeRatio == nil || *level <= 0 {
		return 0, 0, false
	}
	if price > *level*(1+p.PriceMargin) && *volumeRatio > p.VolumeRatioMin {
		return *level, p.Confidence, true
	}
	return 0, 0, false
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
