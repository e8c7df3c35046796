package contracts

import "context"

// UniverseSource loads the symbol universe at startup
// ⭐ SSOT: 유니버스 로딩 인터페이스 (embedded / file / postgres)
type UniverseSource interface {
	Load(ctx context.Context) (*SymbolUniverse, error)
}

// QuoteFetcher obtains one symbol's quote, history and fundamentals
// ⭐ SSOT: 외부 시세 조회 인터페이스
type QuoteFetcher interface {
	Fetch(ctx context.Context, symbol string) (*FetchedQuote, error)
}

// Analyzer runs the indicator → risk → breakout → recommendation chain
// ⭐ SSOT: 종목 분석 체인 인터페이스
type Analyzer interface {
	Analyze(symbol, sector string, fetched *FetchedQuote) *SymbolResult
}

// Scanner runs a batch scan over the universe
type Scanner interface {
	Scan(ctx context.Context, filters ScanFilters) (*ScanResult, error)
	ScanSymbol(ctx context.Context, symbol string, useCache bool) (SymbolOutcome, error)
}
