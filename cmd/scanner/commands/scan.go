package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/redis"
)

// scanCmd runs one scan over the universe
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "유니버스 전체 브레이크아웃 스캔",
	Long: `Scans the symbol universe in batches and prints the breakouts found.

Sector and limit narrow the candidates before fetching; confidence,
risk level, action and type filter the breakouts afterwards.

Example:
  go run ./cmd/scanner scan
  go run ./cmd/scanner scan --sector Energy --limit 10
  go run ./cmd/scanner scan --min-confidence 0.75 --action BUY --json`,
	RunE: runScan,
}

var (
	scanSector        string
	scanMinConfidence float64
	scanRiskLevel     string
	scanAction        string
	scanType          string
	scanLimit         int
	scanNoCache       bool
	scanTimeout       time.Duration
	scanJSON          bool
	scanPublish       bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	f := scanCmd.Flags()
	f.StringVar(&scanSector, "sector", "", "only scan this sector (case-insensitive)")
	f.Float64Var(&scanMinConfidence, "min-confidence", 0, "minimum breakout confidence (0~1)")
	f.StringVar(&scanRiskLevel, "risk-level", "", "Low | Medium | High")
	f.StringVar(&scanAction, "action", "", "BUY | WAIT | AVOID")
	f.StringVar(&scanType, "type", "", "200_dma | resistance_breakout | bollinger_breakout | macd_crossover | stochastic_crossover")
	f.IntVar(&scanLimit, "limit", 0, "scan at most N candidates (0 = all)")
	f.BoolVar(&scanNoCache, "no-cache", false, "ignore cached analyses")
	f.DurationVar(&scanTimeout, "timeout", 0, "overall deadline (default SCAN_TIMEOUT)")
	f.BoolVar(&scanJSON, "json", false, "print the full result as JSON")
	f.BoolVar(&scanPublish, "publish", false, "share the result via Redis for 'scanner last'")
}

// scanFilters builds filters from flags
func scanFilters() contracts.ScanFilters {
	return contracts.ScanFilters{
		Sector:        scanSector,
		MinConfidence: scanMinConfidence,
		RiskLevel:     normalizeRiskLevel(scanRiskLevel),
		Action:        contracts.Action(upper(scanAction)),
		BreakoutType:  contracts.BreakoutType(scanType),
		Limit:         scanLimit,
		UseCache:      !scanNoCache,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	filters := scanFilters()
	if err := filters.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	timeout := scanTimeout
	if timeout <= 0 {
		timeout = a.cfg.Scan.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := a.scanner.Scan(ctx, filters)
	if err != nil {
		return err
	}

	if scanPublish {
		if !a.snapshots.Enabled() {
			PrintWarning("--publish ignored: REDIS_ENABLED is false")
		} else if err := a.snapshots.Put(context.Background(), redis.LatestScanKey, result, redis.TTLScan); err != nil {
			return fmt.Errorf("publish result: %w", err)
		}
	}

	if scanJSON {
		return printJSON(os.Stdout, result)
	}
	PrintScanResult(os.Stdout, result)
	return nil
}

// lastCmd prints the most recently published scan
var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "최근 공유된 스캔 결과 조회 (Redis)",
	Long: `Prints the scan last published to Redis by "scan --publish" or the
scheduled breakout_scan job.

Example:
  go run ./cmd/scanner last
  go run ./cmd/scanner last --json
  go run ./cmd/scanner last --clear`,
	RunE: runLast,
}

var (
	lastJSON  bool
	lastClear bool
)

func init() {
	rootCmd.AddCommand(lastCmd)
	lastCmd.Flags().BoolVar(&lastJSON, "json", false, "print the full result as JSON")
	lastCmd.Flags().BoolVar(&lastClear, "clear", false, "delete the published result instead of printing it")
}

// snapshotStore is the part of redis.SnapshotStore `last` uses
type snapshotStore interface {
	Get(ctx context.Context, name string, dest interface{}) (bool, error)
	Delete(ctx context.Context, name string) error
}

func runLast(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rc.Close()

	store := redis.NewSnapshotStore(rc, redisPrefix)
	if !store.Enabled() {
		return fmt.Errorf("redis is disabled (set REDIS_ENABLED=true)")
	}

	if lastClear {
		return clearLast(ctx, os.Stdout, store)
	}
	return showLast(ctx, os.Stdout, store, lastJSON)
}

// showLast prints the published scan, or a notice when there is none
func showLast(ctx context.Context, w io.Writer, store snapshotStore, asJSON bool) error {
	var result contracts.ScanResult
	found, err := store.Get(ctx, redis.LatestScanKey, &result)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(w, "No published scan yet")
		return nil
	}

	if asJSON {
		return printJSON(w, &result)
	}
	PrintScanResult(w, &result)
	return nil
}

// clearLast drops the published scan so `last` stops serving it
func clearLast(ctx context.Context, w io.Writer, store snapshotStore) error {
	if err := store.Delete(ctx, redis.LatestScanKey); err != nil {
		return fmt.Errorf("clear published scan: %w", err)
	}
	fmt.Fprintln(w, "Published scan cleared")
	return nil
}
