package contracts

import "sort"

// Index tiers used to order scan candidates
const (
	TierPrimary   = "primary"
	TierSecondary = "secondary"
	TierOther     = "other"
)

// SymbolUniverse is the static symbol → sector mapping plus the priority tiers.
// Built once at startup, read-only afterwards.
// ⭐ SSOT: 스캔 대상 종목은 여기서만 정의
type SymbolUniverse struct {
	sectors   map[string]string
	primary   []string
	secondary []string
}

// NewSymbolUniverse copies its inputs so later mutation by the caller has no effect.
// Tier members missing from sectors are still scannable with sector "Unknown".
func NewSymbolUniverse(sectors map[string]string, primary, secondary []string) *SymbolUniverse {
	u := &SymbolUniverse{
		sectors:   make(map[string]string, len(sectors)),
		primary:   append([]string(nil), primary...),
		secondary: append([]string(nil), secondary...),
	}
	for sym, sector := range sectors {
		u.sectors[sym] = sector
	}
	for _, sym := range append(append([]string(nil), primary...), secondary...) {
		if _, ok := u.sectors[sym]; !ok {
			u.sectors[sym] = "Unknown"
		}
	}
	return u
}

// Sector returns the sector for a symbol
func (u *SymbolUniverse) Sector(symbol string) (string, bool) {
	s, ok := u.sectors[symbol]
	return s, ok
}

// Contains checks if a symbol is in the universe
func (u *SymbolUniverse) Contains(symbol string) bool {
	_, ok := u.sectors[symbol]
	return ok
}

// Count returns the number of symbols
func (u *SymbolUniverse) Count() int {
	return len(u.sectors)
}

// Primary returns the primary index constituents in published order
func (u *SymbolUniverse) Primary() []string {
	return append([]string(nil), u.primary...)
}

// Secondary returns the secondary index constituents in published order
func (u *SymbolUniverse) Secondary() []string {
	return append([]string(nil), u.secondary...)
}

// Symbols returns every symbol sorted alphabetically
func (u *SymbolUniverse) Symbols() []string {
	out := make([]string, 0, len(u.sectors))
	for sym := range u.sectors {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Sectors returns the distinct sector labels sorted alphabetically
func (u *SymbolUniverse) Sectors() []string {
	seen := make(map[string]struct{})
	for _, s := range u.sectors {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Tier reports which priority tier a symbol belongs to
func (u *SymbolUniverse) Tier(symbol string) string {
	for _, s := range u.primary {
		if s == symbol {
			return TierPrimary
		}
	}
	for _, s := range u.secondary {
		if s == symbol {
			return TierSecondary
		}
	}
	return TierOther
}
