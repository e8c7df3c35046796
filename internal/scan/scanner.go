package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/breakscan/internal/cache"
	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/ratelimit"
	"github.com/wonny/breakscan/internal/universe"
	"github.com/wonny/breakscan/pkg/config"
	"github.com/wonny/breakscan/pkg/logger"
)

// Batch defaults
const (
	DefaultBatchSize  = 50
	DefaultBatchPause = 500 * time.Millisecond
	DefaultWorkers    = 5
)

// Config holds batch orchestration settings
type Config struct {
	BatchSize  int
	BatchPause time.Duration
	Workers    int // per batch
}

// ConfigFrom maps the environment config onto the scanner
func ConfigFrom(c config.ScanConfig) Config {
	return Config{
		BatchSize:  c.BatchSize,
		BatchPause: c.BatchPause,
		Workers:    c.Workers,
	}
}

// Scanner runs batched, cached, rate-limited scans over the universe
// ⭐ SSOT: 배치 스캔 오케스트레이션은 여기서만
type Scanner struct {
	universe   *contracts.SymbolUniverse
	fetcher    contracts.QuoteFetcher
	analyzer   contracts.Analyzer
	cache      *cache.QuoteCache
	executor   *ratelimit.Executor
	cfg        Config
	configHash string
	logger     *logger.Logger

	now   func() time.Time
	sleep ratelimit.SleepFunc
}

// New creates a new scanner
func New(
	u *contracts.SymbolUniverse,
	fetcher contracts.QuoteFetcher,
	analyzer contracts.Analyzer,
	quoteCache *cache.QuoteCache,
	executor *ratelimit.Executor,
	cfg Config,
	log *logger.Logger,
) *Scanner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	return &Scanner{
		universe: u,
		fetcher:  fetcher,
		analyzer: analyzer,
		cache:    quoteCache,
		executor: executor,
		cfg:      cfg,
		logger:   log.WithComponent("scanner"),
		now:      time.Now,
		sleep:    ratelimit.Sleep,
	}
}

// WithConfigHash stamps results with the strategy config hash
func (s *Scanner) WithConfigHash(hash string) *Scanner {
	s.configHash = hash
	return s
}

// WithClock replaces the time source and the batch-pause sleeper (tests)
func (s *Scanner) WithClock(now func() time.Time, sleep ratelimit.SleepFunc) *Scanner {
	s.now = now
	s.sleep = sleep
	return s
}

// Scan runs one full scan. The only error is an invalid filter; provider
// trouble and cancellation show up as misses and in the stats.
func (s *Scanner) Scan(ctx context.Context, filters contracts.ScanFilters) (*contracts.ScanResult, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	start := s.now()
	candidates := universe.Candidates(s.universe, filters.Sector, filters.Limit)
	batches := partition(candidates, s.cfg.BatchSize)

	result := &contracts.ScanResult{
		Breakouts:  make([]*contracts.SymbolResult, 0),
		Misses:     make([]contracts.Miss, 0),
		ConfigHash: s.configHash,
		StartedAt:  start,
	}
	stats := &result.Stats
	stats.TotalCandidates = len(candidates)
	stats.FiltersApplied = filters.Applied()
	if stats.FiltersApplied == nil {
		stats.FiltersApplied = []string{}
	}

	s.logger.WithFields(map[string]interface{}{
		"candidates":  len(candidates),
		"batches":     len(batches),
		"workers":     s.cfg.Workers,
		"filters":     strings.Join(stats.FiltersApplied, ","),
		"config_hash": s.configHash,
	}).Info("Starting breakout scan")

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			// 남은 배치는 시도하지 않음
			for _, rest := range batches[i:] {
				for _, sym := range rest {
					s.tally(result, filters, notScanned(sym, err))
				}
			}
			break
		}

		batchStart := s.now()
		outcomes := s.runBatch(ctx, batch, filters.UseCache)
		stats.Batches++

		var ok, missed int
		for _, o := range outcomes {
			if o.Kind == contracts.OutcomeOK {
				ok++
			} else {
				missed++
			}
			s.tally(result, filters, o)
		}

		s.logger.WithFields(map[string]interface{}{
			"batch":    i + 1,
			"of":       len(batches),
			"symbols":  len(batch),
			"analyzed": ok,
			"missed":   missed,
			"duration": s.now().Sub(batchStart).String(),
		}).Info("Batch completed")

		// 배치 간 대기 (마지막 배치 이후는 생략)
		if i < len(batches)-1 && s.cfg.BatchPause > 0 {
			_ = s.sleep(ctx, s.cfg.BatchPause) // cancellation is picked up at the top of the loop
		}
	}

	sort.SliceStable(result.Breakouts, func(i, j int) bool {
		a, b := result.Breakouts[i], result.Breakouts[j]
		if a.Breakout.Confidence != b.Breakout.Confidence {
			return a.Breakout.Confidence > b.Breakout.Confidence
		}
		return a.Symbol < b.Symbol
	})
	sort.SliceStable(result.Misses, func(i, j int) bool {
		return result.Misses[i].Symbol < result.Misses[j].Symbol
	})

	result.FinishedAt = s.now()
	stats.Returned = len(result.Breakouts)
	stats.Elapsed = result.FinishedAt.Sub(start)

	fields := map[string]interface{}{
		"candidates":  stats.TotalCandidates,
		"scanned":     stats.TotalScanned,
		"unavailable": stats.Unavailable,
		"failed":      stats.Failed,
		"breakouts":   stats.BreakoutsFound,
		"returned":    stats.Returned,
		"cache_hits":  stats.CacheHits,
		"elapsed":     stats.Elapsed.String(),
	}
	switch {
	case result.Outage():
		s.logger.WithFields(fields).Warn("Scan completed without any analyzed symbol, provider may be unavailable")
	case ctx.Err() != nil:
		s.logger.WithFields(fields).WithError(ctx.Err()).Warn("Scan stopped early")
	default:
		s.logger.WithFields(fields).Info("Scan completed")
	}

	return result, nil
}

// ScanSymbol analyzes a single symbol outside of a batch.
// The error is non-nil whenever the outcome is not OutcomeOK.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string, useCache bool) (contracts.SymbolOutcome, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return contracts.SymbolOutcome{Kind: contracts.OutcomeFailed, Reason: "empty symbol"}, fmt.Errorf("empty symbol")
	}
	return s.process(ctx, sym, useCache)
}

// tally folds one outcome into the result
func (s *Scanner) tally(result *contracts.ScanResult, filters contracts.ScanFilters, o contracts.SymbolOutcome) {
	stats := &result.Stats

	switch o.Kind {
	case contracts.OutcomeOK:
		stats.TotalScanned++
		if o.CacheHit {
			stats.CacheHits++
		}
		if !o.Result.HasBreakout() {
			stats.NoBreakout++
			return
		}
		stats.BreakoutsFound++
		if filters.Match(o.Result) {
			result.Breakouts = append(result.Breakouts, o.Result)
		}

	case contracts.OutcomeUnavailable:
		stats.Unavailable++
		result.Misses = append(result.Misses, contracts.Miss{Symbol: o.Symbol, Kind: o.Kind, Reason: o.Reason})

	default:
		stats.Failed++
		result.Misses = append(result.Misses, contracts.Miss{Symbol: o.Symbol, Kind: contracts.OutcomeFailed, Reason: o.Reason})
	}
}

// runBatch fans the batch out to a bounded worker pool
func (s *Scanner) runBatch(ctx context.Context, batch []string, useCache bool) []contracts.SymbolOutcome {
	workers := s.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}

	outcomes := make([]contracts.SymbolOutcome, 0, len(batch))
	resultCh := make(chan contracts.SymbolOutcome, len(batch))
	symbolCh := make(chan string, len(batch))

	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, symbolCh, resultCh, useCache)
		}(i)
	}

	// Send symbols to workers
	for _, sym := range batch {
		symbolCh <- sym
	}
	close(symbolCh)

	// Wait for all workers to complete
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for o := range resultCh {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (s *Scanner) worker(ctx context.Context, workerID int, symbolCh <-chan string, resultCh chan<- contracts.SymbolOutcome, useCache bool) {
	for sym := range symbolCh {
		if err := ctx.Err(); err != nil {
			resultCh <- notScanned(sym, err)
			continue
		}

		outcome, err := s.process(ctx, sym, useCache)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"worker": workerID,
				"symbol": sym,
				"kind":   outcome.Kind,
			}).WithError(err).Debug("Symbol missed")
		}
		resultCh <- outcome
	}
}

// process runs cache → gate → fetch with retry → analyze → cache write for one symbol
func (s *Scanner) process(ctx context.Context, sym string, useCache bool) (outcome contracts.SymbolOutcome, err error) {
	outcome.Symbol = sym

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
			outcome = contracts.SymbolOutcome{Symbol: sym, Kind: contracts.OutcomeFailed, Reason: err.Error()}
		}
	}()

	if useCache && s.cache != nil {
		if cached, ok := s.cache.Get(sym); ok {
			outcome.Kind = contracts.OutcomeOK
			outcome.Result = cached
			outcome.CacheHit = true
			return outcome, nil
		}
	}

	var fetched *contracts.FetchedQuote
	err = s.executor.Do(ctx, "fetch "+sym, func(ctx context.Context) error {
		f, ferr := s.fetcher.Fetch(ctx, sym)
		if ferr != nil {
			return ferr
		}
		fetched = f
		return nil
	})
	if err != nil {
		outcome.Kind = classify(err)
		outcome.Reason = err.Error()
		return outcome, err
	}

	var sector string
	if s.universe != nil {
		sector, _ = s.universe.Sector(sym)
	}
	result := s.analyzer.Analyze(sym, sector, fetched)

	if s.cache != nil {
		s.cache.Put(sym, result)
	}

	outcome.Kind = contracts.OutcomeOK
	outcome.Result = result
	return outcome, nil
}

// classify maps a fetch error to an outcome kind
func classify(err error) contracts.OutcomeKind {
	switch {
	case errors.Is(err, contracts.ErrNoData), errors.Is(err, contracts.ErrRetriesExhausted):
		return contracts.OutcomeUnavailable
	default:
		return contracts.OutcomeFailed
	}
}

func notScanned(sym string, err error) contracts.SymbolOutcome {
	return contracts.SymbolOutcome{
		Symbol: sym,
		Kind:   contracts.OutcomeFailed,
		Reason: "not scanned: " + err.Error(),
	}
}

// partition splits symbols into consecutive batches of at most size
func partition(symbols []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]string, 0, (len(symbols)+size-1)/size)
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		batches = append(batches, symbols[start:end])
	}
	return batches
}
