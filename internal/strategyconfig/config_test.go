package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoad_ShippedConfigMatchesDefault(t *testing.T) {
	path := "../../configs/strategy.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)
	assert.Equal(t, Default(), cfg)

	// 동일 설정 → 동일 해시
	h1, err := Hash(cfg)
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
}

func TestParse_PartialOverridesKeepDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
breakout:
  dma_200:
    confidence: 0.9
`))
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Breakout.DMA200.Confidence)
	assert.Equal(t, 1.5, cfg.Breakout.DMA200.VolumeRatioMin)
	assert.Equal(t, 5.0, cfg.Risk.Baseline)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(`
risk:
  baselin: 4.0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baselin")
}

func TestParse_InvalidRejected(t *testing.T) {
	_, err := Parse([]byte(`
breakout:
  macd:
    rsi_min: 80
    rsi_max: 50
`))
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "breakout.macd", verr.Field)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHash_ChangesWithConfig(t *testing.T) {
	a := Default()
	b := Default()
	b.Risk.Baseline = 4.5

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"confidence above one", func(c *Config) { c.Breakout.DMA200.Confidence = 1.2 }, "breakout.dma_200.confidence"},
		{"zero confidence", func(c *Config) { c.Breakout.Stochastic.Confidence = 0 }, "breakout.stochastic.confidence"},
		{"negative volume ratio", func(c *Config) { c.Breakout.Bollinger.VolumeRatioMin = -1 }, "breakout.bollinger.volume_ratio_min"},
		{"score bounds", func(c *Config) { c.Risk.MinScore = 10 }, "risk"},
		{"baseline outside bounds", func(c *Config) { c.Risk.Baseline = 11 }, "risk.baseline"},
		{"negative penalty", func(c *Config) { c.Risk.HighBeta.Penalty = -0.5 }, "risk.high_beta.penalty"},
		{"stop band inverted", func(c *Config) { c.Recommendation.Stop.VolatilityMinPct = 0.1 }, "recommendation.stop"},
		{"multipliers not ascending", func(c *Config) {
			c.Recommendation.Position.RiskMultipliers[2].MaxScore = 4
		}, "recommendation.position.risk_multipliers[2].max_score"},
		{"buy below wait", func(c *Config) { c.Recommendation.Action.BuyMinConfidence = 0.5 }, "recommendation.action"},
		{"fallback target", func(c *Config) { c.Recommendation.Fallback.TargetPct = 0.005 }, "recommendation.fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
