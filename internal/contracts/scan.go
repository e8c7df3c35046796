package contracts

import (
	"fmt"
	"strings"
	"time"
)

// ScanFilters narrows a scan. Zero values mean "no filter".
type ScanFilters struct {
	Sector        string       `json:"sector,omitempty"`
	MinConfidence float64      `json:"min_confidence,omitempty"`
	RiskLevel     string       `json:"risk_level,omitempty"`
	Action        Action       `json:"action,omitempty"`
	BreakoutType  BreakoutType `json:"breakout_type,omitempty"`
	Limit         int          `json:"limit,omitempty"` // 0 = whole universe
	UseCache      bool         `json:"use_cache"`
}

// DefaultScanFilters scans the whole universe with the cache on
func DefaultScanFilters() ScanFilters {
	return ScanFilters{UseCache: true}
}

// Validate checks filter values
func (f ScanFilters) Validate() error {
	if f.MinConfidence < 0 || f.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be within [0, 1], got %v", ErrInvalidFilter, f.MinConfidence)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidFilter, f.Limit)
	}
	if f.RiskLevel != "" && f.RiskLevel != RiskLow && f.RiskLevel != RiskMedium && f.RiskLevel != RiskHigh {
		return fmt.Errorf("%w: unknown risk_level %q", ErrInvalidFilter, f.RiskLevel)
	}
	if f.Action != "" && !f.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidFilter, f.Action)
	}
	if f.BreakoutType != "" && !f.BreakoutType.Valid() {
		return fmt.Errorf("%w: unknown breakout_type %q", ErrInvalidFilter, f.BreakoutType)
	}
	return nil
}

// Applied lists the active filters as key=value pairs for the stats block
func (f ScanFilters) Applied() []string {
	var out []string
	if f.Sector != "" {
		out = append(out, "sector="+f.Sector)
	}
	if f.MinConfidence > 0 {
		out = append(out, fmt.Sprintf("min_confidence=%.2f", f.MinConfidence))
	}
	if f.RiskLevel != "" {
		out = append(out, "risk_level="+f.RiskLevel)
	}
	if f.Action != "" {
		out = append(out, "action="+string(f.Action))
	}
	if f.BreakoutType != "" {
		out = append(out, "breakout_type="+string(f.BreakoutType))
	}
	if f.Limit > 0 {
		out = append(out, fmt.Sprintf("limit=%d", f.Limit))
	}
	if !f.UseCache {
		out = append(out, "use_cache=false")
	}
	return out
}

// Match applies the post-scan filters to one breakout record.
// Sector and limit are pre-scan filters and are not checked here.
func (f ScanFilters) Match(r *SymbolResult) bool {
	if r == nil || r.Breakout == nil {
		return false
	}
	if r.Breakout.Confidence < f.MinConfidence {
		return false
	}
	if f.RiskLevel != "" && !strings.EqualFold(r.Risk.RiskLevel, f.RiskLevel) {
		return false
	}
	if f.Action != "" && (r.Recommendation == nil || r.Recommendation.Action != f.Action) {
		return false
	}
	if f.BreakoutType != "" && r.Breakout.Type != f.BreakoutType {
		return false
	}
	return true
}

// OutcomeKind tags a per-symbol outcome
type OutcomeKind string

// Outcome kinds
const (
	OutcomeOK          OutcomeKind = "ok"          // analyzed (breakout or not)
	OutcomeUnavailable OutcomeKind = "unavailable" // no data, or retries exhausted
	OutcomeFailed      OutcomeKind = "failed"      // unexpected error, or never attempted
)

// SymbolOutcome is the explicit result of scanning one symbol
type SymbolOutcome struct {
	Symbol   string
	Kind     OutcomeKind
	Result   *SymbolResult // set when Kind == OutcomeOK
	Reason   string        // set otherwise
	CacheHit bool
}

// Miss is a symbol that produced no analysis
type Miss struct {
	Symbol string      `json:"symbol"`
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason"`
}

// ScanStats lets consumers tell "no breakouts today" from "provider outage"
type ScanStats struct {
	TotalCandidates int           `json:"total_candidates"`
	TotalScanned    int           `json:"total_scanned"` // analyzed successfully
	Unavailable     int           `json:"unavailable"`
	Failed          int           `json:"failed"`
	NoBreakout      int           `json:"no_breakout"`
	BreakoutsFound  int           `json:"breakouts_found"` // before post-filters
	Returned        int           `json:"returned"`        // after post-filters
	CacheHits       int           `json:"cache_hits"`
	Batches         int           `json:"batches"`
	Elapsed         time.Duration `json:"elapsed"`
	FiltersApplied  []string      `json:"filters_applied"`
}

// ScanResult is created fresh per scan and never persisted
type ScanResult struct {
	Breakouts  []*SymbolResult `json:"breakouts"`
	Misses     []Miss          `json:"misses"`
	Stats      ScanStats       `json:"stats"`
	ConfigHash string          `json:"config_hash"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Outage reports whether candidates existed but none could be analyzed
func (r *ScanResult) Outage() bool {
	return r.Stats.TotalCandidates > 0 && r.Stats.TotalScanned == 0
}
