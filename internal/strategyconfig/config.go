package strategyconfig

// Config is the full set of scanner heuristics (YAML ↔ struct 1:1)
// ⭐ SSOT: 패턴 임계값/리스크 가중치/추천 파라미터는 여기서만
type Config struct {
	Meta           Meta                 `yaml:"meta" json:"meta"`
	Breakout       BreakoutConfig       `yaml:"breakout" json:"breakout"`
	Risk           RiskConfig           `yaml:"risk" json:"risk"`
	Recommendation RecommendationConfig `yaml:"recommendation" json:"recommendation"`
}

// Meta identifies the strategy document
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// =============================================================================
// Breakout patterns
// =============================================================================

// BreakoutConfig holds one block per pattern
type BreakoutConfig struct {
	DMA200     PriceVolumePattern `yaml:"dma_200" json:"dma_200"`
	Resistance PriceVolumePattern `yaml:"resistance" json:"resistance"`
	Bollinger  PriceVolumePattern `yaml:"bollinger" json:"bollinger"`
	MACD       MACDPattern        `yaml:"macd" json:"macd"`
	Stochastic StochasticPattern  `yaml:"stochastic" json:"stochastic"`
}

// PriceVolumePattern fires when price clears level×(1+PriceMargin) on volume
type PriceVolumePattern struct {
	PriceMargin    float64 `yaml:"price_margin" json:"price_margin"`         // 0.02 = 2% 위
	VolumeRatioMin float64 `yaml:"volume_ratio_min" json:"volume_ratio_min"` // 초과해야 발동
	Confidence     float64 `yaml:"confidence" json:"confidence"`
}

// MACDPattern fires on MACD above signal with RSI inside (RSIMin, RSIMax)
type MACDPattern struct {
	RSIMin     float64 `yaml:"rsi_min" json:"rsi_min"`
	RSIMax     float64 `yaml:"rsi_max" json:"rsi_max"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// StochasticPattern fires on %K above %D with %K inside (KMin, KMax)
type StochasticPattern struct {
	KMin       float64 `yaml:"k_min" json:"k_min"`
	KMax       float64 `yaml:"k_max" json:"k_max"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// =============================================================================
// Risk
// =============================================================================

// RiskConfig is the additive risk model
type RiskConfig struct {
	Baseline float64 `yaml:"baseline" json:"baseline"`
	MinScore float64 `yaml:"min_score" json:"min_score"`
	MaxScore float64 `yaml:"max_score" json:"max_score"`

	// level: score <= LowMax → Low, <= MediumMax → Medium, else High
	LowMax    float64 `yaml:"low_max" json:"low_max"`
	MediumMax float64 `yaml:"medium_max" json:"medium_max"`

	Volatility VolatilityRisk `yaml:"volatility" json:"volatility"`
	RSI        RSIRisk        `yaml:"rsi" json:"rsi"`
	Trend      PenaltyRule    `yaml:"below_sma200" json:"below_sma200"`
	Volume     ThresholdRule  `yaml:"low_volume" json:"low_volume"`
	SmallCap   ThresholdRule  `yaml:"small_cap" json:"small_cap"`
	HighBeta   ThresholdRule  `yaml:"high_beta" json:"high_beta"`
}

// VolatilityRisk scores annualized volatility (fraction, 0.40 = 40%)
type VolatilityRisk struct {
	MinReturns    int     `yaml:"min_returns" json:"min_returns"`
	High          float64 `yaml:"high" json:"high"`
	HighPenalty   float64 `yaml:"high_penalty" json:"high_penalty"`
	Medium        float64 `yaml:"medium" json:"medium"`
	MediumPenalty float64 `yaml:"medium_penalty" json:"medium_penalty"`
}

// RSIRisk scores overbought/oversold RSI
type RSIRisk struct {
	Overbought        float64 `yaml:"overbought" json:"overbought"`
	OverboughtPenalty float64 `yaml:"overbought_penalty" json:"overbought_penalty"`
	Oversold          float64 `yaml:"oversold" json:"oversold"`
	OversoldPenalty   float64 `yaml:"oversold_penalty" json:"oversold_penalty"`
}

// PenaltyRule is a fixed increment for a boolean condition
type PenaltyRule struct {
	Penalty float64 `yaml:"penalty" json:"penalty"`
}

// ThresholdRule adds Penalty when the value crosses Threshold
type ThresholdRule struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Penalty   float64 `yaml:"penalty" json:"penalty"`
}

// =============================================================================
// Recommendation
// =============================================================================

// RecommendationConfig derives entry/stop/target/size/action
type RecommendationConfig struct {
	EntryPremium EntryPremium   `yaml:"entry_premium" json:"entry_premium"`
	Stop         StopConfig     `yaml:"stop" json:"stop"`
	Target       TargetConfig   `yaml:"target" json:"target"`
	Position     PositionConfig `yaml:"position" json:"position"`
	Action       ActionConfig   `yaml:"action" json:"action"`
	Fallback     FallbackConfig `yaml:"fallback" json:"fallback"`
}

// EntryPremium is added on top of the breakout price
// 주의: map 대신 struct 사용 (해시 재현성)
type EntryPremium struct {
	DMA200     float64 `yaml:"dma_200" json:"dma_200"`
	Resistance float64 `yaml:"resistance" json:"resistance"`
	MACD       float64 `yaml:"macd" json:"macd"`
	Default    float64 `yaml:"default" json:"default"`
}

// StopConfig lists the stop-loss candidates
type StopConfig struct {
	SupportBuffer    float64 `yaml:"support_buffer" json:"support_buffer"` // support × (1 - buffer)
	ATRMultiple      float64 `yaml:"atr_multiple" json:"atr_multiple"`
	VolatilityFactor float64 `yaml:"volatility_factor" json:"volatility_factor"`
	VolatilityMinPct float64 `yaml:"volatility_min_pct" json:"volatility_min_pct"`
	VolatilityMaxPct float64 `yaml:"volatility_max_pct" json:"volatility_max_pct"`
	DefaultPct       float64 `yaml:"default_pct" json:"default_pct"` // 후보가 없을 때
}

// TargetConfig maps confidence to reward multiple
type TargetConfig struct {
	HighConfidence   float64 `yaml:"high_confidence" json:"high_confidence"`
	HighMultiple     float64 `yaml:"high_multiple" json:"high_multiple"`
	MediumConfidence float64 `yaml:"medium_confidence" json:"medium_confidence"`
	MediumMultiple   float64 `yaml:"medium_multiple" json:"medium_multiple"`
	DefaultMultiple  float64 `yaml:"default_multiple" json:"default_multiple"`
}

// PositionConfig sizes the position in percent of capital
type PositionConfig struct {
	BasePct           float64          `yaml:"base_pct" json:"base_pct"`
	CapPct            float64          `yaml:"cap_pct" json:"cap_pct"`
	MinPct            float64          `yaml:"min_pct" json:"min_pct"`
	MaxPct            float64          `yaml:"max_pct" json:"max_pct"`
	RiskMultipliers   []RiskMultiplier `yaml:"risk_multipliers" json:"risk_multipliers"` // max_score 오름차순
	DefaultMultiplier float64          `yaml:"default_multiplier" json:"default_multiplier"`
}

// RiskMultiplier applies when risk score <= MaxScore
type RiskMultiplier struct {
	MaxScore   float64 `yaml:"max_score" json:"max_score"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// ActionConfig holds the BUY/WAIT gates; everything else is AVOID
type ActionConfig struct {
	BuyMinConfidence  float64 `yaml:"buy_min_confidence" json:"buy_min_confidence"`
	BuyMaxRisk        float64 `yaml:"buy_max_risk" json:"buy_max_risk"`
	WaitMinConfidence float64 `yaml:"wait_min_confidence" json:"wait_min_confidence"`
	WaitMaxRisk       float64 `yaml:"wait_max_risk" json:"wait_max_risk"`
}

// FallbackConfig is the recommendation used when derivation fails
type FallbackConfig struct {
	EntryPremium float64 `yaml:"entry_premium" json:"entry_premium"`
	StopPct      float64 `yaml:"stop_pct" json:"stop_pct"`
	TargetPct    float64 `yaml:"target_pct" json:"target_pct"`
}

// Default returns the built-in heuristics (configs/strategy.yaml mirrors these)
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "breakout_v1",
			Version:    "1.0.0",
		},
		Breakout: BreakoutConfig{
			DMA200:     PriceVolumePattern{PriceMargin: 0.02, VolumeRatioMin: 1.5, Confidence: 0.85},
			Resistance: PriceVolumePattern{PriceMargin: 0.01, VolumeRatioMin: 1.3, Confidence: 0.75},
			Bollinger:  PriceVolumePattern{PriceMargin: 0, VolumeRatioMin: 1.2, Confidence: 0.65},
			MACD:       MACDPattern{RSIMin: 50, RSIMax: 80, Confidence: 0.70},
			Stochastic: StochasticPattern{KMin: 20, KMax: 80, Confidence: 0.60},
		},
		Risk: RiskConfig{
			Baseline:  5.0,
			MinScore:  1,
			MaxScore:  10,
			LowMax:    3,
			MediumMax: 6,
			Volatility: VolatilityRisk{
				MinReturns:    20,
				High:          0.40,
				HighPenalty:   1.5,
				Medium:        0.25,
				MediumPenalty: 0.5,
			},
			RSI: RSIRisk{
				Overbought:        80,
				OverboughtPenalty: 1.0,
				Oversold:          20,
				OversoldPenalty:   0.5,
			},
			Trend:    PenaltyRule{Penalty: 0.5},
			Volume:   ThresholdRule{Threshold: 0.5, Penalty: 0.5},
			SmallCap: ThresholdRule{Threshold: 2e9, Penalty: 1.0},
			HighBeta: ThresholdRule{Threshold: 1.5, Penalty: 0.5},
		},
		Recommendation: RecommendationConfig{
			EntryPremium: EntryPremium{DMA200: 0.005, Resistance: 0.01, MACD: 0.002, Default: 0.005},
			Stop: StopConfig{
				SupportBuffer:    0.02,
				ATRMultiple:      2.0,
				VolatilityFactor: 0.25,
				VolatilityMinPct: 0.05,
				VolatilityMaxPct: 0.08,
				DefaultPct:       0.05,
			},
			Target: TargetConfig{
				HighConfidence:   0.8,
				HighMultiple:     3.0,
				MediumConfidence: 0.7,
				MediumMultiple:   2.5,
				DefaultMultiple:  2.0,
			},
			Position: PositionConfig{
				BasePct: 10,
				CapPct:  15,
				MinPct:  1,
				MaxPct:  20,
				RiskMultipliers: []RiskMultiplier{
					{MaxScore: 3, Multiplier: 1.2},
					{MaxScore: 5, Multiplier: 1.0},
					{MaxScore: 7, Multiplier: 0.8},
				},
				DefaultMultiplier: 0.5,
			},
			Action: ActionConfig{
				BuyMinConfidence:  0.75,
				BuyMaxRisk:        6,
				WaitMinConfidence: 0.6,
				WaitMaxRisk:       7,
			},
			Fallback: FallbackConfig{EntryPremium: 0.01, StopPct: 0.05, TargetPct: 0.10},
		},
	}
}
