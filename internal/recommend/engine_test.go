package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/strategyconfig"
	"github.com/wonny/breakscan/pkg/logger"
)

func newEngine() *Engine {
	return NewEngine(strategyconfig.Default().Recommendation, logger.Nop())
}

func signal(t contracts.BreakoutType, level, conf float64) *contracts.BreakoutSignal {
	return &contracts.BreakoutSignal{Symbol: "X", Type: t, BreakoutPrice: level, CurrentPrice: level * 1.03, Confidence: conf}
}

func TestRecommend_200DMA(t *testing.T) {
	ind := contracts.IndicatorSet{
		SupportLevel: contracts.Float(95),
		ATR:          contracts.Float(2),
	}
	risk := contracts.RiskAssessment{RiskScore: 5, Volatility: contracts.Float(0.2)}

	rec, err := newEngine().Recommend("AAPL", 103, signal(contracts.Breakout200DMA, 100, 0.85), ind, risk)
	require.NoError(t, err)

	assert.InDelta(t, 100.5, rec.EntryPrice, 1e-9)
	// candidates: support 93.1, ATR 96.5, volatility 95.475 → highest is ATR
	assert.InDelta(t, 96.5, rec.StopLoss, 1e-9)
	assert.InDelta(t, 112.5, rec.TargetPrice, 1e-9)
	assert.Equal(t, 3.0, rec.RiskRewardRatio)
	assert.InDelta(t, 8.5, rec.PositionSizePercent, 1e-9)
	assert.Equal(t, contracts.ActionBuy, rec.Action)
	assert.Contains(t, rec.StopLossRationale, "ATR")
	assert.Contains(t, rec.EntryRationale, "200-day SMA")
}

func TestRecommend_DefaultStopWhenNoCandidates(t *testing.T) {
	rec, err := newEngine().Recommend("MSFT", 102, signal(contracts.BreakoutResistance, 100, 0.75), contracts.IndicatorSet{}, contracts.RiskAssessment{RiskScore: 5})
	require.NoError(t, err)

	assert.InDelta(t, 101.0, rec.EntryPrice, 1e-9)
	assert.InDelta(t, 95.95, rec.StopLoss, 1e-9)
	assert.InDelta(t, 101+2.5*5.05, rec.TargetPrice, 1e-9)
	assert.Equal(t, 2.5, rec.RiskRewardRatio)
	assert.Equal(t, contracts.ActionBuy, rec.Action)
	assert.Contains(t, rec.StopLossRationale, "Default")
}

func TestRecommend_CandidateAboveEntryIgnored(t *testing.T) {
	// support × 0.98 = 107.8 sits above entry 100.2
	ind := contracts.IndicatorSet{SupportLevel: contracts.Float(110)}
	risk := contracts.RiskAssessment{RiskScore: 4, Volatility: contracts.Float(0.28)}

	rec, err := newEngine().Recommend("X", 100, signal(contracts.BreakoutMACD, 100, 0.70), ind, risk)
	require.NoError(t, err)

	assert.InDelta(t, 100.2, rec.EntryPrice, 1e-9)
	assert.InDelta(t, 100.2*(1-0.07), rec.StopLoss, 1e-9)
	assert.Contains(t, rec.StopLossRationale, "Volatility")
}

func TestRecommend_VolatilityStopClamped(t *testing.T) {
	e := newEngine()

	low, _ := e.stopLoss(100, contracts.IndicatorSet{}, contracts.RiskAssessment{Volatility: contracts.Float(0.05)})
	assert.InDelta(t, 95.0, low, 1e-9)

	high, _ := e.stopLoss(100, contracts.IndicatorSet{}, contracts.RiskAssessment{Volatility: contracts.Float(1.2)})
	assert.InDelta(t, 92.0, high, 1e-9)
}

func TestRecommend_EntryPremiums(t *testing.T) {
	e := newEngine()
	assert.Equal(t, 0.005, e.entryPremium(contracts.Breakout200DMA))
	assert.Equal(t, 0.01, e.entryPremium(contracts.BreakoutResistance))
	assert.Equal(t, 0.002, e.entryPremium(contracts.BreakoutMACD))
	assert.Equal(t, 0.005, e.entryPremium(contracts.BreakoutBollinger))
	assert.Equal(t, 0.005, e.entryPremium(contracts.BreakoutStochastic))
}

func TestRewardMultiple(t *testing.T) {
	e := newEngine()
	assert.Equal(t, 3.0, e.rewardMultiple(0.85))
	assert.Equal(t, 3.0, e.rewardMultiple(0.8))
	assert.Equal(t, 2.5, e.rewardMultiple(0.75))
	assert.Equal(t, 2.5, e.rewardMultiple(0.7))
	assert.Equal(t, 2.0, e.rewardMultiple(0.65))
}

func TestPositionSize(t *testing.T) {
	tests := []struct {
		conf, score, want float64
	}{
		{1.0, 2, 12},   // 10 × 1.0 × 1.2
		{0.85, 5, 8.5}, // × 1.0
		{0.75, 6.5, 6}, // × 0.8
		{0.6, 9, 3},    // × 0.5
		{0.1, 9, 1},    // clamped to min
	}

	e := newEngine()
	for _, tt := range tests {
		assert.InDelta(t, tt.want, e.positionSize(tt.conf, tt.score), 1e-9, "conf=%v score=%v", tt.conf, tt.score)
	}

	cfg := strategyconfig.Default().Recommendation
	cfg.Position.BasePct = 30
	capped := NewEngine(cfg, logger.Nop())
	assert.Equal(t, 15.0, capped.positionSize(1.0, 2))
}

func TestAction(t *testing.T) {
	tests := []struct {
		conf, score float64
		want        contracts.Action
	}{
		{0.85, 6, contracts.ActionBuy},
		{0.75, 6, contracts.ActionBuy},
		{0.85, 6.5, contracts.ActionWait},
		{0.70, 7, contracts.ActionWait},
		{0.60, 3, contracts.ActionWait},
		{0.85, 7.5, contracts.ActionAvoid},
		{0.55, 2, contracts.ActionAvoid},
	}

	e := newEngine()
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.action(tt.conf, tt.score), "conf=%v score=%v", tt.conf, tt.score)
	}
}

func TestRecommend_FallbackOnInvalidInput(t *testing.T) {
	e := newEngine()

	rec, err := e.Recommend("X", 50, nil, contracts.IndicatorSet{}, contracts.RiskAssessment{})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.InDelta(t, 50.5, rec.EntryPrice, 1e-9)
	assert.InDelta(t, 47.5, rec.StopLoss, 1e-9)
	assert.InDelta(t, 55.0, rec.TargetPrice, 1e-9)
	assert.Equal(t, contracts.ActionWait, rec.Action)
	assert.InDelta(t, 1.5, rec.RiskRewardRatio, 1e-9)
	assert.Equal(t, 1.0, rec.PositionSizePercent)

	_, err = e.Recommend("X", 50, signal(contracts.Breakout200DMA, 0, 0.85), contracts.IndicatorSet{}, contracts.RiskAssessment{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecommend_Invariants(t *testing.T) {
	e := newEngine()

	for _, bt := range contracts.AllBreakoutTypes {
		for _, conf := range []float64{0.6, 0.65, 0.7, 0.75, 0.85, 1.0} {
			for _, score := range []float64{1, 3, 5, 6, 7, 8.5, 10} {
				for _, atr := range []float64{0.1, 2, 80} {
					ind := contracts.IndicatorSet{SupportLevel: contracts.Float(90), ATR: contracts.Float(atr)}
					risk := contracts.RiskAssessment{RiskScore: score, Volatility: contracts.Float(0.3)}

					rec, err := e.Recommend("X", 103, signal(bt, 100, conf), ind, risk)
					require.NoError(t, err)

					assert.Less(t, rec.StopLoss, rec.EntryPrice)
					assert.Less(t, rec.EntryPrice, rec.TargetPrice)
					assert.GreaterOrEqual(t, rec.PositionSizePercent, 1.0)
					assert.LessOrEqual(t, rec.PositionSizePercent, 20.0)
					assert.True(t, rec.Action.Valid())
				}
			}
		}
	}
}
