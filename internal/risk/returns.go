package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily volatility
const TradingDaysPerYear = 252

// DailyReturns 종가 기준 일별 수익률 (양수=이익, 음수=손실)
// Pairs with a non-positive previous close are skipped.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev <= 0 {
			continue
		}
		r := closes[i]/prev - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// AnnualizedVolatility 표본 표준편차 × √252
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
}

// HistoricalVaR Historical Simulation VaR
// ⭐ SSOT: VaR는 손실을 양수로 표현 (0.03 = 신뢰수준 내 최대 3% 일간 손실)
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 || confidence <= 0 || confidence >= 1 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
	if q >= 0 {
		return 0 // 손실 없음
	}
	return -q
}
