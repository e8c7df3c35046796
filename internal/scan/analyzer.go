package scan

import (
	"time"

	"github.com/wonny/breakscan/internal/breakout"
	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/indicators"
	"github.com/wonny/breakscan/internal/recommend"
	"github.com/wonny/breakscan/internal/risk"
	"github.com/wonny/breakscan/internal/strategyconfig"
	"github.com/wonny/breakscan/pkg/logger"
)

// Analyzer runs indicators → risk → breakout → recommendation for one symbol.
// Each stage degrades to its safe default on failure; the chain never fails.
// ⭐ SSOT: 종목 분석 체인 조립은 여기서만
type Analyzer struct {
	indicators *indicators.Calculator
	risk       *risk.Assessor
	breakout   *breakout.Detector
	recommend  *recommend.Engine
	logger     *logger.Logger
	now        func() time.Time
}

// NewAnalyzer wires the analysis stages from the strategy config
func NewAnalyzer(cfg *strategyconfig.Config, log *logger.Logger) *Analyzer {
	return &Analyzer{
		indicators: indicators.NewCalculator(log),
		risk:       risk.NewAssessor(cfg.Risk, log),
		breakout:   breakout.NewDetector(cfg.Breakout, log),
		recommend:  recommend.NewEngine(cfg.Recommendation, log),
		logger:     log.WithComponent("analyzer"),
		now:        time.Now,
	}
}

// WithClock overrides the FetchedAt/DetectedAt clock (tests)
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	a.breakout.WithClock(now)
	return a
}

// Analyze builds the SymbolResult for one fetched quote
func (a *Analyzer) Analyze(symbol, sector string, fetched *contracts.FetchedQuote) *contracts.SymbolResult {
	if fetched == nil {
		fetched = &contracts.FetchedQuote{}
	}

	result := &contracts.SymbolResult{
		Symbol:       symbol,
		Sector:       sector,
		Quote:        fetched.Quote,
		Fundamentals: fetched.Fundamentals,
		FetchedAt:    a.now(),
	}
	if result.Sector == "" || result.Sector == "Unknown" {
		if fetched.Fundamentals.Sector != "" {
			result.Sector = fetched.Fundamentals.Sector
		} else {
			result.Sector = "Unknown"
		}
	}
	for _, stage := range fetched.Degraded {
		result.MarkDegraded(stage)
	}

	price := fetched.Quote.CurrentPrice

	// 1. 지표
	ind, err := a.indicators.Compute(symbol, fetched.History)
	if err != nil {
		result.MarkDegraded(contracts.StageIndicators)
	}
	result.Indicators = ind

	// 2. 리스크
	assessment, err := a.risk.Assess(symbol, price, fetched.History, ind, fetched.Fundamentals)
	if err != nil {
		result.MarkDegraded(contracts.StageRisk)
	}
	result.Risk = assessment

	// 3. 브레이크아웃
	sig, err := a.breakout.Detect(symbol, price, ind)
	if err != nil {
		result.MarkDegraded(contracts.StageBreakout)
	}
	result.Breakout = sig

	// 4. 추천 (브레이크아웃이 있을 때만)
	if sig != nil {
		rec, err := a.recommend.Recommend(symbol, price, sig, ind, assessment)
		if err != nil {
			result.MarkDegraded(contracts.StageRecommendation)
		}
		result.Recommendation = &rec
	}

	if len(result.Degraded) > 0 {
		a.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"degraded": result.Degraded,
		}).Warn("Analysis degraded")
	}

	return result
}

// Diagnose lists every breakout pattern that fires for an analyzed symbol
func (a *Analyzer) Diagnose(r *contracts.SymbolResult) []contracts.BreakoutSignal {
	if r == nil {
		return nil
	}
	return a.breakout.DetectAll(r.Symbol, r.Quote.CurrentPrice, r.Indicators)
}
