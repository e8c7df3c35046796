package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile      string
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Breakout scanner - 미국 주식 브레이크아웃 스크리너",
	Long: `Breakout Scanner CLI

Scans a curated US equity universe for technical breakouts
(200-day SMA, resistance, Bollinger, MACD, stochastic), scores risk
and derives entry / stop / target / position size.

Usage:
  go run ./cmd/scanner [command]

Examples:
  go run ./cmd/scanner scan --min-confidence 0.7
  go run ./cmd/scanner scan --sector Technology --json
  go run ./cmd/scanner analyze NVDA
  go run ./cmd/scanner universe --limit 20
  go run ./cmd/scanner scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before the environment (default: .env lookup)")
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (overrides STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
