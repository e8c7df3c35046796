package recommend

import (
	"errors"
	"fmt"
	"math"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/strategyconfig"
	"github.com/wonny/breakscan/pkg/logger"
)

// ErrInvalidInput is returned (with the fallback recommendation) when no
// recommendation can be derived from the inputs
var ErrInvalidInput = errors.New("invalid recommendation input")

// Engine derives entry/stop/target/size/action from a breakout
// ⭐ SSOT: 매매 추천 계산은 여기서만, 파라미터는 strategyconfig.RecommendationConfig
type Engine struct {
	cfg    strategyconfig.RecommendationConfig
	logger *logger.Logger
}

// NewEngine creates a new recommendation engine
func NewEngine(cfg strategyconfig.RecommendationConfig, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.WithComponent("recommend"),
	}
}

// Recommend derives the recommendation for a detected breakout.
// On invalid input or a panic it returns Fallback(price) together with the error;
// the returned recommendation is always usable.
func (e *Engine) Recommend(symbol string, price float64, sig *contracts.BreakoutSignal, ind contracts.IndicatorSet, risk contracts.RiskAssessment) (rec contracts.TradingRecommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recommendation panicked: %v", r)
		}
		if err != nil {
			rec = e.Fallback(price)
			e.logger.WithField("symbol", symbol).WithError(err).Warn("Recommendation degraded to fallback")
		}
	}()

	if sig == nil {
		return rec, fmt.Errorf("%w: no breakout", ErrInvalidInput)
	}
	if !positive(price) || !positive(sig.BreakoutPrice) {
		return rec, fmt.Errorf("%w: price=%v breakout_price=%v", ErrInvalidInput, price, sig.BreakoutPrice)
	}

	// 1. 진입가
	premium := e.entryPremium(sig.Type)
	entry := sig.BreakoutPrice * (1 + premium)

	// 2. 손절가
	stop, stopRationale := e.stopLoss(entry, ind, risk)

	// 3. 목표가
	multiple := e.rewardMultiple(sig.Confidence)
	target := entry + multiple*(entry-stop)

	if !(stop > 0 && stop < entry && entry < target) {
		return rec, fmt.Errorf("%w: stop=%.4f entry=%.4f target=%.4f", ErrInvalidInput, stop, entry, target)
	}

	rec = contracts.TradingRecommendation{
		EntryPrice:          entry,
		StopLoss:            stop,
		TargetPrice:         target,
		RiskRewardRatio:     multiple,
		PositionSizePercent: e.positionSize(sig.Confidence, risk.RiskScore),
		Action:              e.action(sig.Confidence, risk.RiskScore),
		EntryRationale:      entryRationale(sig, premium),
		StopLossRationale:   stopRationale,
	}

	e.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"entry":  entry,
		"stop":   stop,
		"target": target,
		"action": rec.Action,
	}).Debug("Built recommendation")

	return rec, nil
}

// Fallback is the safe default around the current price
func (e *Engine) Fallback(price float64) contracts.TradingRecommendation {
	f := e.cfg.Fallback
	entry := price * (1 + f.EntryPremium)
	stop := price * (1 - f.StopPct)
	target := price * (1 + f.TargetPct)

	var rr float64
	if entry > stop {
		rr = (target - entry) / (entry - stop)
	}

	return contracts.TradingRecommendation{
		EntryPrice:          entry,
		StopLoss:            stop,
		TargetPrice:         target,
		RiskRewardRatio:     rr,
		PositionSizePercent: e.cfg.Position.MinPct,
		Action:              contracts.ActionWait,
		EntryRationale:      fmt.Sprintf("Default entry %.1f%% above current price", f.EntryPremium*100),
		StopLossRationale:   fmt.Sprintf("Default stop %.1f%% below current price", f.StopPct*100),
	}
}

func (e *Engine) entryPremium(t contracts.BreakoutType) float64 {
	p := e.cfg.EntryPremium
	switch t {
	case contracts.Breakout200DMA:
		return p.DMA200
	case contracts.BreakoutResistance:
		return p.Resistance
	case contracts.BreakoutMACD:
		return p.MACD
	default:
		return p.Default
	}
}

// stopLoss picks the highest candidate strictly below entry
func (e *Engine) stopLoss(entry float64, ind contracts.IndicatorSet, risk contracts.RiskAssessment) (float64, string) {
	s := e.cfg.Stop

	type candidate struct {
		price     float64
		rationale string
	}
	var candidates []candidate

	if ind.SupportLevel != nil {
		candidates = append(candidates, candidate{
			price:     *ind.SupportLevel * (1 - s.SupportBuffer),
			rationale: fmt.Sprintf("%.0f%% below support at %.2f", s.SupportBuffer*100, *ind.SupportLevel),
		})
	}
	if ind.ATR != nil && *ind.ATR > 0 {
		candidates = append(candidates, candidate{
			price:     entry - s.ATRMultiple*(*ind.ATR),
			rationale: fmt.Sprintf("%.1f× ATR (%.2f) below entry", s.ATRMultiple, *ind.ATR),
		})
	}
	if risk.Volatility != nil && *risk.Volatility > 0 {
		pct := math.Max(s.VolatilityMinPct, math.Min(s.VolatilityMaxPct, *risk.Volatility*s.VolatilityFactor))
		candidates = append(candidates, candidate{
			price:     entry * (1 - pct),
			rationale: fmt.Sprintf("Volatility-scaled %.1f%% below entry", pct*100),
		})
	}

	best := candidate{}
	found := false
	for _, c := range candidates {
		if !positive(c.price) || c.price >= entry {
			continue
		}
		if !found || c.price > best.price {
			best = c
			found = true
		}
	}
	if !found {
		return entry * (1 - s.DefaultPct), fmt.Sprintf("Default %.0f%% below entry", s.DefaultPct*100)
	}
	return best.price, best.rationale
}

func (e *Engine) rewardMultiple(confidence float64) float64 {
	t := e.cfg.Target
	switch {
	case confidence >= t.HighConfidence:
		return t.HighMultiple
	case confidence >= t.MediumConfidence:
		return t.MediumMultiple
	default:
		return t.DefaultMultiple
	}
}

// positionSize = clamp(min(base × confidence × risk_multiplier, cap), min, max)
func (e *Engine) positionSize(confidence, riskScore float64) float64 {
	p := e.cfg.Position

	multiplier := p.DefaultMultiplier
	for _, m := range p.RiskMultipliers {
		if riskScore <= m.MaxScore {
			multiplier = m.Multiplier
			break
		}
	}

	size := math.Min(p.BasePct*confidence*multiplier, p.CapPct)
	return math.Max(p.MinPct, math.Min(p.MaxPct, size))
}

func (e *Engine) action(confidence, riskScore float64) contracts.Action {
	a := e.cfg.Action
	switch {
	case confidence >= a.BuyMinConfidence && riskScore <= a.BuyMaxRisk:
		return contracts.ActionBuy
	case confidence >= a.WaitMinConfidence && riskScore <= a.WaitMaxRisk:
		return contracts.ActionWait
	default:
		return contracts.ActionAvoid
	}
}

func entryRationale(sig *contracts.BreakoutSignal, premium float64) string {
	var level string
	switch sig.Type {
	case contracts.Breakout200DMA:
		level = "200-day SMA"
	case contracts.BreakoutResistance:
		level = "resistance"
	case contracts.BreakoutBollinger:
		level = "upper Bollinger band"
	default:
		level = "current price"
	}
	return fmt.Sprintf("%s: entry %.1f%% above %s at %.2f", sig.Type, premium*100, level, sig.BreakoutPrice)
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
