package universe

import (
	"sort"
	"strings"

	"github.com/wonny/breakscan/internal/contracts"
)

// Candidates returns the symbols to scan in priority order:
// primary tier, then secondary tier, then the rest alphabetically.
// The sector filter (case-insensitive) is applied before truncating to limit;
// limit <= 0 keeps everything.
// ⭐ SSOT: 스캔 순서는 여기서만 결정
func Candidates(u *contracts.SymbolUniverse, sector string, limit int) []string {
	if u == nil {
		return nil
	}

	seen := make(map[string]struct{}, u.Count())
	out := make([]string, 0, u.Count())

	add := func(sym string) {
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		if sector != "" {
			s, _ := u.Sector(sym)
			if !strings.EqualFold(s, sector) {
				return
			}
		}
		out = append(out, sym)
	}

	for _, sym := range u.Primary() {
		add(sym)
	}
	for _, sym := range u.Secondary() {
		add(sym)
	}

	rest := u.Symbols()
	sort.Strings(rest)
	for _, sym := range rest {
		add(sym)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
