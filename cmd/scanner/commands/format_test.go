package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/breakscan/internal/contracts"
)

func TestPrintScanResult(t *testing.T) {
	r := &contracts.ScanResult{
		Breakouts: []*contracts.SymbolResult{{
			Symbol:   "AAPL",
			Sector:   "Technology",
			Risk:     contracts.RiskAssessment{RiskScore: 5, RiskLevel: contracts.RiskMedium},
			Breakout: &contracts.BreakoutSignal{Type: contracts.Breakout200DMA, Confidence: 0.85, CurrentPrice: 103},
			Recommendation: &contracts.TradingRecommendation{
				EntryPrice: 103.5, StopLoss: 98, TargetPrice: 117, RiskRewardRatio: 2.5,
				PositionSizePercent: 8.5, Action: contracts.ActionBuy,
			},
		}},
		Stats:      contracts.ScanStats{TotalCandidates: 3, TotalScanned: 3, BreakoutsFound: 1, Returned: 1, Batches: 1},
		ConfigHash: "0123456789abcdef0123",
	}

	var buf bytes.Buffer
	PrintScanResult(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "200_dma")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abc")
}

func TestPrintScanResult_Outage(t *testing.T) {
	var buf bytes.Buffer
	PrintScanResult(&buf, &contracts.ScanResult{Stats: contracts.ScanStats{TotalCandidates: 5, Unavailable: 5}})
	assert.Contains(t, buf.String(), "provider may be unavailable")

	buf.Reset()
	PrintScanResult(&buf, &contracts.ScanResult{Stats: contracts.ScanStats{TotalCandidates: 5, TotalScanned: 5, NoBreakout: 5}})
	assert.Contains(t, buf.String(), "No breakouts matched")
}

func TestPrintSymbolResult(t *testing.T) {
	sig := contracts.BreakoutSignal{Type: contracts.BreakoutResistance, Confidence: 0.75, BreakoutPrice: 101}
	r := &contracts.SymbolResult{
		Symbol:   "XOM",
		Sector:   "Energy",
		Breakout: &sig,
		Risk:     contracts.RiskAssessment{RiskScore: 6.5, RiskLevel: contracts.RiskHigh, RiskFactors: []string{"High beta"}},
		Degraded: []string{contracts.StageFundamentals},
	}

	var buf bytes.Buffer
	PrintSymbolResult(&buf, r, []contracts.BreakoutSignal{sig}, true)
	out := buf.String()

	assert.Contains(t, out, "* resistance_breakout")
	assert.Contains(t, out, "High beta")
	assert.Contains(t, out, "Degraded   : fundamentals")
	assert.Contains(t, out, "n/a", "missing indicators")
}

func TestNormalizeRiskLevel(t *testing.T) {
	assert.Equal(t, "", normalizeRiskLevel(" "))
	assert.Equal(t, contracts.RiskLow, normalizeRiskLevel("low"))
	assert.Equal(t, contracts.RiskHigh, normalizeRiskLevel("HIGH"))
	assert.Equal(t, contracts.RiskMedium, normalizeRiskLevel("Medium"))
}

func TestScanFilters_FromFlags(t *testing.T) {
	scanAction, scanRiskLevel, scanNoCache = "buy", "low", true
	defer func() { scanAction, scanRiskLevel, scanNoCache = "", "", false }()

	f := scanFilters()
	assert.Equal(t, contracts.ActionBuy, f.Action)
	assert.Equal(t, contracts.RiskLow, f.RiskLevel)
	assert.False(t, f.UseCache)
	assert.NoError(t, f.Validate())
}
