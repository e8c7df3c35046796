package risk

import (
	"fmt"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/strategyconfig"
	"github.com/wonny/breakscan/pkg/logger"
)

// VaRConfidence is the confidence level of the reported VaR
const VaRConfidence = 0.95

// NeutralFactor is reported when the assessment itself failed
const NeutralFactor = "Unable to assess risk"

// Assessor scores risk additively from a baseline (pure calculation)
// ⭐ SSOT: 리스크 점수 계산은 여기서만, 임계값은 strategyconfig.RiskConfig
type Assessor struct {
	cfg    strategyconfig.RiskConfig
	logger *logger.Logger
}

// NewAssessor creates a new risk assessor
func NewAssessor(cfg strategyconfig.RiskConfig, log *logger.Logger) *Assessor {
	return &Assessor{
		cfg:    cfg,
		logger: log.WithComponent("risk"),
	}
}

// Neutral returns the default assessment used when scoring fails
func (a *Assessor) Neutral() contracts.RiskAssessment {
	return contracts.RiskAssessment{
		RiskScore:   a.cfg.Baseline,
		RiskLevel:   a.level(a.cfg.Baseline),
		RiskFactors: []string{NeutralFactor},
	}
}

// Assess scores one symbol. price <= 0 falls back to the last close.
// Missing inputs simply contribute nothing; a panic yields Neutral() and an error.
func (a *Assessor) Assess(symbol string, price float64, history contracts.PriceHistory, ind contracts.IndicatorSet, fund contracts.Fundamentals) (out contracts.RiskAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = a.Neutral()
			err = fmt.Errorf("risk assessment panicked: %v", r)
			a.logger.WithField("symbol", symbol).WithError(err).Warn("Risk degraded to neutral")
		}
	}()

	if price <= 0 {
		if last, ok := history.Last(); ok {
			price = last.Close
		}
	}

	cfg := a.cfg
	score := cfg.Baseline
	factors := make([]string, 0)

	// 1. 변동성
	returns := DailyReturns(history.Closes())
	if len(returns) >= cfg.Volatility.MinReturns {
		vol := AnnualizedVolatility(returns)
		out.Volatility = contracts.Float(vol)
		out.VaR95 = contracts.Float(HistoricalVaR(returns, VaRConfidence))

		switch {
		case vol > cfg.Volatility.High:
			score += cfg.Volatility.HighPenalty
			factors = append(factors, fmt.Sprintf("High volatility (%.1f%% annualized)", vol*100))
		case vol >= cfg.Volatility.Medium:
			score += cfg.Volatility.MediumPenalty
			factors = append(factors, fmt.Sprintf("Elevated volatility (%.1f%% annualized)", vol*100))
		}
	}

	// 2. RSI 과매수/과매도
	if ind.RSI != nil {
		switch {
		case *ind.RSI > cfg.RSI.Overbought:
			score += cfg.RSI.OverboughtPenalty
			factors = append(factors, fmt.Sprintf("Overbought (RSI %.1f)", *ind.RSI))
		case *ind.RSI < cfg.RSI.Oversold:
			score += cfg.RSI.OversoldPenalty
			factors = append(factors, fmt.Sprintf("Oversold (RSI %.1f)", *ind.RSI))
		}
	}

	// 3. 장기 추세
	if ind.SMA200 != nil && price > 0 && price < *ind.SMA200 {
		score += cfg.Trend.Penalty
		factors = append(factors, "Trading below 200-day SMA")
	}

	// 4. 거래량
	if ind.VolumeRatio != nil && *ind.VolumeRatio < cfg.Volume.Threshold {
		score += cfg.Volume.Penalty
		factors = append(factors, fmt.Sprintf("Low relative volume (%.2fx)", *ind.VolumeRatio))
	}

	// 5. 시가총액
	if fund.MarketCap != nil && *fund.MarketCap > 0 && *fund.MarketCap < cfg.SmallCap.Threshold {
		score += cfg.SmallCap.Penalty
		factors = append(factors, fmt.Sprintf("Small market cap ($%.2fB)", *fund.MarketCap/1e9))
	}

	// 6. 베타
	if fund.Beta != nil {
		out.Beta = fund.Beta
		if *fund.Beta > cfg.HighBeta.Threshold {
			score += cfg.HighBeta.Penalty
			factors = append(factors, fmt.Sprintf("High beta (%.2f)", *fund.Beta))
		}
	}

	score = clamp(score, cfg.MinScore, cfg.MaxScore)
	out.RiskScore = score
	out.RiskLevel = a.level(score)
	out.RiskFactors = factors

	a.logger.WithFields(map[string]interface{}{
		"symbol":  symbol,
		"score":   score,
		"level":   out.RiskLevel,
		"factors": len(factors),
	}).Debug("Assessed risk")

	return out, nil
}

func (a *Assessor) level(score float64) string {
	switch {
	case score <= a.cfg.LowMax:
		return contracts.RiskLow
	case score <= a.cfg.MediumMax:
		return contracts.RiskMedium
	default:
		return contracts.RiskHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
