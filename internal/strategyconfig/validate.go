package strategyconfig

import (
	"fmt"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Breakout ===
	b := cfg.Breakout
	patterns := []struct {
		field string
		p     PriceVolumePattern
	}{
		{"breakout.dma_200", b.DMA200},
		{"breakout.resistance", b.Resistance},
		{"breakout.bollinger", b.Bollinger},
	}
	for _, pv := range patterns {
		if pv.p.PriceMargin < 0 || pv.p.PriceMargin > 0.5 {
			return ValidationError{pv.field + ".price_margin", "must be in [0, 0.5]"}
		}
		if pv.p.VolumeRatioMin < 0 {
			return ValidationError{pv.field + ".volume_ratio_min", "must be >= 0"}
		}
		if err := validateConfidence(pv.p.Confidence, pv.field+".confidence"); err != nil {
			return err
		}
	}
	if err := validateConfidence(b.MACD.Confidence, "breakout.macd.confidence"); err != nil {
		return err
	}
	if err := validateOpenRange(b.MACD.RSIMin, b.MACD.RSIMax, 0, 100, "breakout.macd"); err != nil {
		return err
	}
	if err := validateConfidence(b.Stochastic.Confidence, "breakout.stochastic.confidence"); err != nil {
		return err
	}
	if err := validateOpenRange(b.Stochastic.KMin, b.Stochastic.KMax, 0, 100, "breakout.stochastic"); err != nil {
		return err
	}

	// === Risk ===
	r := cfg.Risk
	if r.MinScore >= r.MaxScore {
		return ValidationError{"risk", "min_score must be < max_score"}
	}
	if r.Baseline < r.MinScore || r.Baseline > r.MaxScore {
		return ValidationError{"risk.baseline", fmt.Sprintf("must be in [%g, %g]", r.MinScore, r.MaxScore)}
	}
	if r.LowMax > r.MediumMax {
		return ValidationError{"risk", "low_max must be <= medium_max"}
	}
	if r.Volatility.MinReturns < 2 {
		return ValidationError{"risk.volatility.min_returns", "must be >= 2"}
	}
	if r.Volatility.Medium > r.Volatility.High {
		return ValidationError{"risk.volatility", "medium must be <= high"}
	}
	if r.RSI.Oversold >= r.RSI.Overbought {
		return ValidationError{"risk.rsi", "oversold must be < overbought"}
	}
	penalties := map[string]float64{
		"risk.volatility.high_penalty":   r.Volatility.HighPenalty,
		"risk.volatility.medium_penalty": r.Volatility.MediumPenalty,
		"risk.rsi.overbought_penalty":    r.RSI.OverboughtPenalty,
		"risk.rsi.oversold_penalty":      r.RSI.OversoldPenalty,
		"risk.below_sma200.penalty":      r.Trend.Penalty,
		"risk.low_volume.penalty":        r.Volume.Penalty,
		"risk.small_cap.penalty":         r.SmallCap.Penalty,
		"risk.high_beta.penalty":         r.HighBeta.Penalty,
	}
	for field, v := range penalties {
		if v < 0 {
			return ValidationError{field, "must be >= 0"}
		}
	}

	// === Recommendation ===
	rec := cfg.Recommendation
	premiums := map[string]float64{
		"recommendation.entry_premium.dma_200":    rec.EntryPremium.DMA200,
		"recommendation.entry_premium.resistance": rec.EntryPremium.Resistance,
		"recommendation.entry_premium.macd":       rec.EntryPremium.MACD,
		"recommendation.entry_premium.default":    rec.EntryPremium.Default,
		"recommendation.fallback.entry_premium":   rec.Fallback.EntryPremium,
	}
	for field, v := range premiums {
		if v < 0 || v > 0.1 {
			return ValidationError{field, "must be in [0, 0.1]"}
		}
	}

	s := rec.Stop
	if err := validatePctRange(s.SupportBuffer, "recommendation.stop.support_buffer"); err != nil {
		return err
	}
	if s.ATRMultiple <= 0 {
		return ValidationError{"recommendation.stop.atr_multiple", "must be > 0"}
	}
	if s.VolatilityMinPct <= 0 || s.VolatilityMinPct > s.VolatilityMaxPct || s.VolatilityMaxPct >= 1 {
		return ValidationError{"recommendation.stop", "must satisfy 0 < volatility_min_pct <= volatility_max_pct < 1"}
	}
	if s.DefaultPct <= 0 || s.DefaultPct >= 1 {
		return ValidationError{"recommendation.stop.default_pct", "must be in (0, 1)"}
	}

	t := rec.Target
	if t.HighConfidence < t.MediumConfidence {
		return ValidationError{"recommendation.target", "high_confidence must be >= medium_confidence"}
	}
	if t.DefaultMultiple <= 0 || t.MediumMultiple <= 0 || t.HighMultiple <= 0 {
		return ValidationError{"recommendation.target", "multiples must be > 0"}
	}

	p := rec.Position
	if p.MinPct <= 0 || p.MinPct > p.MaxPct {
		return ValidationError{"recommendation.position", "must satisfy 0 < min_pct <= max_pct"}
	}
	if p.BasePct <= 0 || p.CapPct <= 0 {
		return ValidationError{"recommendation.position", "base_pct and cap_pct must be > 0"}
	}
	if p.DefaultMultiplier <= 0 {
		return ValidationError{"recommendation.position.default_multiplier", "must be > 0"}
	}
	// risk_multipliers: max_score 오름차순
	for i, m := range p.RiskMultipliers {
		if m.Multiplier <= 0 {
			return ValidationError{
				Field:   fmt.Sprintf("recommendation.position.risk_multipliers[%d].multiplier", i),
				Message: "must be > 0",
			}
		}
		if i > 0 && m.MaxScore <= p.RiskMultipliers[i-1].MaxScore {
			return ValidationError{
				Field:   fmt.Sprintf("recommendation.position.risk_multipliers[%d].max_score", i),
				Message: "must be strictly ascending",
			}
		}
	}

	a := rec.Action
	if a.BuyMinConfidence < a.WaitMinConfidence {
		return ValidationError{"recommendation.action", "buy_min_confidence must be >= wait_min_confidence"}
	}
	if a.BuyMaxRisk > a.WaitMaxRisk {
		return ValidationError{"recommendation.action", "buy_max_risk must be <= wait_max_risk"}
	}

	f := rec.Fallback
	if err := validatePctRange(f.StopPct, "recommendation.fallback.stop_pct"); err != nil {
		return err
	}
	if f.TargetPct <= f.EntryPremium {
		return ValidationError{"recommendation.fallback", "target_pct must be > entry_premium"}
	}

	return nil
}

// validatePctRange 퍼센트 범위 검증 (0~1)
func validatePctRange(v float64, field string) error {
	if v < 0 || v > 1 {
		return ValidationError{field, fmt.Sprintf("must be in [0, 1], got %.4f", v)}
	}
	return nil
}

func validateConfidence(v float64, field string) error {
	if v <= 0 || v > 1 {
		return ValidationError{field, fmt.Sprintf("must be in (0, 1], got %.4f", v)}
	}
	return nil
}

// validateOpenRange checks lo < hi inside [floor, ceil]
func validateOpenRange(lo, hi, floor, ceil float64, field string) error {
	if lo < floor || hi > ceil || lo >= hi {
		return ValidationError{field, fmt.Sprintf("bounds must satisfy %g <= min < max <= %g", floor, ceil)}
	}
	return nil
}
