package cache

import (
	"sync"
	"time"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/logger"
)

// DefaultTTL is how long a per-symbol analysis stays fresh
const DefaultTTL = 15 * time.Minute

// Entry is one cached analysis
type Entry struct {
	Data      *contracts.SymbolResult
	FetchedAt time.Time
}

// QuoteCache is an in-memory TTL cache of per-symbol analyses.
// Per-key last-write-wins; no cross-key transactions.
// ⭐ SSOT: 종목 분석 결과 캐싱은 이 구조체에서만
type QuoteCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	logger  *logger.Logger
}

// NewQuoteCache creates a new quote cache
func NewQuoteCache(ttl time.Duration, log *logger.Logger) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QuoteCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  log,
	}
}

// WithClock replaces the time source (tests)
func (c *QuoteCache) WithClock(now func() time.Time) *QuoteCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// TTL returns the freshness window
func (c *QuoteCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached analysis when younger than TTL.
// Stale entries stay in place until the next Sweep.
func (c *QuoteCache) Get(symbol string) (*contracts.SymbolResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[symbol]
	if !exists {
		return nil, false
	}
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.Data, true
}

// Put stores data stamped with the current time, overwriting any previous entry
func (c *QuoteCache) Put(symbol string, data *contracts.SymbolResult) {
	if data == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[symbol] = Entry{Data: data, FetchedAt: c.now()}
}

// Sweep removes entries whose age is at least TTL and returns how many were removed
func (c *QuoteCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for symbol, entry := range c.entries {
		if now.Sub(entry.FetchedAt) >= c.ttl {
			delete(c.entries, symbol)
			removed++
		}
	}

	if removed > 0 {
		c.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": len(c.entries),
		}).Debug("Swept stale cache entries")
	}

	return removed
}

// Clear drops every entry
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	c.logger.Info("Quote cache cleared")
}

// Len returns the number of entries, fresh or stale
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache statistics
func (c *QuoteCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	stats := Stats{Total: len(c.entries), TTL: c.ttl}
	for _, entry := range c.entries {
		if now.Sub(entry.FetchedAt) >= c.ttl {
			stats.Stale++
		} else {
			stats.Fresh++
		}
	}
	return stats
}

// Stats represents cache statistics
type Stats struct {
	Total int           `json:"total"`
	Fresh int           `json:"fresh"`
	Stale int           `json:"stale"`
	TTL   time.Duration `json:"ttl"`
}
