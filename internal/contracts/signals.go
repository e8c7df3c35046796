package contracts

import "time"

// IndicatorSet holds the latest value of every technical indicator.
// nil means the history was too short or the value was not finite.
// ⭐ SSOT: 지표 엔진 → 리스크/브레이크아웃/추천 데이터 전달
type IndicatorSet struct {
	SMA20  *float64 `json:"sma_20"`
	SMA50  *float64 `json:"sma_50"`
	SMA200 *float64 `json:"sma_200"`
	EMA12  *float64 `json:"ema_12"`
	EMA26  *float64 `json:"ema_26"`

	RSI           *float64 `json:"rsi"` // 0~100
	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`
	StochasticK   *float64 `json:"stochastic_k"` // 0~100
	StochasticD   *float64 `json:"stochastic_d"` // 0~100

	BollingerUpper  *float64 `json:"bollinger_upper"`
	BollingerMiddle *float64 `json:"bollinger_middle"`
	BollingerLower  *float64 `json:"bollinger_lower"`

	ATR         *float64 `json:"atr"`
	VWAP        *float64 `json:"vwap"`
	VolumeRatio *float64 `json:"volume_ratio"`

	SupportLevel    *float64 `json:"support_level"`
	ResistanceLevel *float64 `json:"resistance_level"`
}

// Risk levels
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// RiskAssessment is the additive risk score for one symbol
type RiskAssessment struct {
	RiskScore   float64  `json:"risk_score"` // 1~10
	RiskLevel   string   `json:"risk_level"` // Low | Medium | High
	RiskFactors []string `json:"risk_factors"`
	Volatility  *float64 `json:"volatility,omitempty"` // annualized, fraction
	VaR95       *float64 `json:"var_95,omitempty"`     // one-day historical, loss as positive fraction
	Beta        *float64 `json:"beta,omitempty"`
}

// BreakoutType names a breakout pattern
type BreakoutType string

// Breakout patterns
const (
	Breakout200DMA     BreakoutType = "200_dma"
	BreakoutResistance BreakoutType = "resistance_breakout"
	BreakoutBollinger  BreakoutType = "bollinger_breakout"
	BreakoutMACD       BreakoutType = "macd_crossover"
	BreakoutStochastic BreakoutType = "stochastic_crossover"
)

// AllBreakoutTypes lists every pattern in tie-break priority order
var AllBreakoutTypes = []BreakoutType{
	Breakout200DMA,
	BreakoutResistance,
	BreakoutMACD,
	BreakoutBollinger,
	BreakoutStochastic,
}

// Valid reports whether t is a known pattern
func (t BreakoutType) Valid() bool {
	for _, known := range AllBreakoutTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BreakoutSignal is a detected breakout (at most one per symbol per scan)
type BreakoutSignal struct {
	Symbol        string       `json:"symbol"`
	Type          BreakoutType `json:"type"`
	BreakoutPrice float64      `json:"breakout_price"`
	CurrentPrice  float64      `json:"current_price"`
	Confidence    float64      `json:"confidence"` // 0~1
	DetectedAt    time.Time    `json:"detected_at"`
}

// Action is the recommended trade action
type Action string

// Actions
const (
	ActionBuy   Action = "BUY"
	ActionWait  Action = "WAIT"
	ActionAvoid Action = "AVOID"
)

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionWait || a == ActionAvoid
}

// TradingRecommendation is derived from a breakout; stop < entry < target
type TradingRecommendation struct {
	EntryPrice          float64 `json:"entry_price"`
	StopLoss            float64 `json:"stop_loss"`
	TargetPrice         float64 `json:"target_price"`
	RiskRewardRatio     float64 `json:"risk_reward_ratio"`
	PositionSizePercent float64 `json:"position_size_percent"` // 1~20
	Action              Action  `json:"action"`
	EntryRationale      string  `json:"entry_rationale"`
	StopLossRationale   string  `json:"stop_loss_rationale"`
}

// Pipeline stages that can degrade without failing the symbol
const (
	StageFundamentals   = "fundamentals"
	StageIndicators     = "indicators"
	StageRisk           = "risk"
	StageBreakout       = "breakout"
	StageRecommendation = "recommendation"
)

// SymbolResult is the composite per-symbol record written to the cache
type SymbolResult struct {
	Symbol         string                 `json:"symbol"`
	Sector         string                 `json:"sector"`
	Quote          QuoteSnapshot          `json:"quote"`
	Fundamentals   Fundamentals           `json:"fundamentals"`
	Indicators     IndicatorSet           `json:"indicators"`
	Risk           RiskAssessment         `json:"risk"`
	Breakout       *BreakoutSignal        `json:"breakout,omitempty"`
	Recommendation *TradingRecommendation `json:"recommendation,omitempty"`
	Degraded       []string               `json:"degraded,omitempty"`
	FetchedAt      time.Time              `json:"fetched_at"`
}

// HasBreakout reports whether a breakout was detected
func (r *SymbolResult) HasBreakout() bool {
	return r != nil && r.Breakout != nil
}

// MarkDegraded records a stage that fell back to its default
func (r *SymbolResult) MarkDegraded(stage string) {
	for _, s := range r.Degraded {
		if s == stage {
			return
		}
	}
	r.Degraded = append(r.Degraded, stage)
}
