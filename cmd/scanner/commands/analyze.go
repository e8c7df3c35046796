package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// analyzeCmd analyzes one symbol outside of a batch
var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "단일 종목 분석 (지표, 리스크, 패턴, 추천)",
	Long: `Fetches and analyzes one symbol and lists every breakout pattern that fires.
The symbol does not have to be in the universe.

Example:
  go run ./cmd/scanner analyze AAPL
  go run ./cmd/scanner analyze tsla --no-cache --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeNoCache bool
	analyzeJSON    bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "ignore cached analyses")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.scanner.ScanSymbol(ctx, args[0], !analyzeNoCache)
	if err != nil {
		return err
	}

	fired := a.analyzer.Diagnose(outcome.Result)

	if analyzeJSON {
		return printJSON(os.Stdout, struct {
			Result   interface{} `json:"result"`
			Patterns interface{} `json:"patterns"`
		}{outcome.Result, fired})
	}
	PrintSymbolResult(os.Stdout, outcome.Result, fired, outcome.CacheHit)
	return nil
}
