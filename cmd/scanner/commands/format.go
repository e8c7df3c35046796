package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/breakscan/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	doubleLine = "═══════════════════════════════════════════════════════════"
	singleLine = "───────────────────────────────────────────────────────────"
)

// commandContext returns the command context, never nil
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// PrintScanResult renders a scan as a breakout table plus a stats block
func PrintScanResult(w io.Writer, r *contracts.ScanResult) {
	s := r.Stats

	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleLine)
	fmt.Fprintf(w, "  Breakout Scan  %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, singleLine)
	fmt.Fprintf(w, "  Candidates : %d (%d batches)\n", s.TotalCandidates, s.Batches)
	fmt.Fprintf(w, "  Analyzed   : %d (cache hits %d)\n", s.TotalScanned, s.CacheHits)
	fmt.Fprintf(w, "  Missed     : %d unavailable, %d failed\n", s.Unavailable, s.Failed)
	fmt.Fprintf(w, "  Breakouts  : %d found, %d returned\n", s.BreakoutsFound, s.Returned)
	if len(s.FiltersApplied) > 0 {
		fmt.Fprintf(w, "  Filters    : %s\n", strings.Join(s.FiltersApplied, ", "))
	}
	fmt.Fprintf(w, "  Elapsed    : %s\n", s.Elapsed.Round(time.Millisecond))
	if r.ConfigHash != "" {
		fmt.Fprintf(w, "  Config     : %s\n", shortHash(r.ConfigHash))
	}
	fmt.Fprintln(w, singleLine)

	if r.Outage() {
		PrintWarningTo(w, "No symbol could be analyzed. The quote provider may be unavailable.")
		return
	}
	if len(r.Breakouts) == 0 {
		fmt.Fprintln(w, "  No breakouts matched.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SYMBOL\tSECTOR\tTYPE\tCONF\tPRICE\tENTRY\tSTOP\tTARGET\tR:R\tSIZE\tRISK\tACTION")
	for _, b := range r.Breakouts {
		rec := b.Recommendation
		if rec == nil {
			rec = &contracts.TradingRecommendation{}
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f%%\t%.1f %s\t%s\n",
			b.Symbol, b.Sector, b.Breakout.Type, b.Breakout.Confidence, b.Breakout.CurrentPrice,
			rec.EntryPrice, rec.StopLoss, rec.TargetPrice, rec.RiskRewardRatio, rec.PositionSizePercent,
			b.Risk.RiskScore, b.Risk.RiskLevel, rec.Action)
	}
	_ = tw.Flush()

	if s.Unavailable+s.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %d symbols missed (use --json for reasons)\n", s.Unavailable+s.Failed)
	}
}

// PrintSymbolResult renders one analyzed symbol with every firing pattern
func PrintSymbolResult(w io.Writer, r *contracts.SymbolResult, fired []contracts.BreakoutSignal, cacheHit bool) {
	q := r.Quote

	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleLine)
	fmt.Fprintf(w, "  %s  (%s)\n", r.Symbol, r.Sector)
	fmt.Fprintln(w, singleLine)
	fmt.Fprintf(w, "  Price      : %.2f (%+.2f%%) via %s\n", q.CurrentPrice, q.ChangePercent, q.Source)
	if q.StalenessWarning != "" {
		fmt.Fprintf(w, "  ⚠️  %s\n", q.StalenessWarning)
	}
	if cacheHit {
		fmt.Fprintf(w, "  Cached     : %s\n", r.FetchedAt.Format("15:04:05"))
	}
	if len(r.Degraded) > 0 {
		fmt.Fprintf(w, "  Degraded   : %s\n", strings.Join(r.Degraded, ", "))
	}

	ind := r.Indicators
	fmt.Fprintln(w, singleLine)
	fmt.Fprintf(w, "  SMA 20/50/200 : %s / %s / %s\n", opt(ind.SMA20), opt(ind.SMA50), opt(ind.SMA200))
	fmt.Fprintf(w, "  RSI           : %s\n", opt(ind.RSI))
	fmt.Fprintf(w, "  MACD / Signal : %s / %s\n", opt(ind.MACD), opt(ind.MACDSignal))
	fmt.Fprintf(w, "  Bollinger     : %s / %s / %s\n", opt(ind.BollingerLower), opt(ind.BollingerMiddle), opt(ind.BollingerUpper))
	fmt.Fprintf(w, "  Stoch %%K/%%D   : %s / %s\n", opt(ind.StochasticK), opt(ind.StochasticD))
	fmt.Fprintf(w, "  ATR / VWAP    : %s / %s\n", opt(ind.ATR), opt(ind.VWAP))
	fmt.Fprintf(w, "  Volume ratio  : %s\n", opt(ind.VolumeRatio))
	fmt.Fprintf(w, "  Support/Resist: %s / %s\n", opt(ind.SupportLevel), opt(ind.ResistanceLevel))

	risk := r.Risk
	fmt.Fprintln(w, singleLine)
	fmt.Fprintf(w, "  Risk          : %.1f (%s)\n", risk.RiskScore, risk.RiskLevel)
	if risk.Volatility != nil {
		fmt.Fprintf(w, "  Volatility    : %.1f%% annualized\n", *risk.Volatility*100)
	}
	if risk.VaR95 != nil {
		fmt.Fprintf(w, "  1d VaR 95%%    : %.2f%%\n", *risk.VaR95*100)
	}
	for _, f := range risk.RiskFactors {
		fmt.Fprintf(w, "    - %s\n", f)
	}

	fmt.Fprintln(w, singleLine)
	if len(fired) == 0 {
		fmt.Fprintln(w, "  No breakout pattern fired.")
		return
	}
	for _, sig := range fired {
		marker := " "
		if r.Breakout != nil && r.Breakout.Type == sig.Type {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %-22s conf %.2f  level %.2f\n", marker, sig.Type, sig.Confidence, sig.BreakoutPrice)
	}

	if rec := r.Recommendation; rec != nil {
		fmt.Fprintln(w, singleLine)
		fmt.Fprintf(w, "  Action   : %s\n", rec.Action)
		fmt.Fprintf(w, "  Entry    : %.2f  (%s)\n", rec.EntryPrice, rec.EntryRationale)
		fmt.Fprintf(w, "  Stop     : %.2f  (%s)\n", rec.StopLoss, rec.StopLossRationale)
		fmt.Fprintf(w, "  Target   : %.2f\n", rec.TargetPrice)
		fmt.Fprintf(w, "  R:R      : %.2f\n", rec.RiskRewardRatio)
		fmt.Fprintf(w, "  Position : %.1f%% of portfolio\n", rec.PositionSizePercent)
	}
}

// PrintWarning prints a warning message to stdout
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
}

// PrintWarningTo prints a warning message to w
func PrintWarningTo(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func opt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeRiskLevel accepts "low"/"LOW" for "Low"
func normalizeRiskLevel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
