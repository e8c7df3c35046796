package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/breakscan/pkg/redis"
)

// ratelimitCmd inspects the provider ceiling shared through Redis
var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "공유 레이트 리밋 윈도우 관리 (Redis)",
	Long: `Shows or resets the sliding window every scanner process shares
when REDIS_ENABLED=true.

Example:
  go run ./cmd/scanner ratelimit status
  go run ./cmd/scanner ratelimit reset`,
}

var ratelimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "현재 윈도우 사용량 조회",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRateWindow(cmd, printRateWindow)
	},
}

var ratelimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "윈도우 초기화 (상한 변경 후 등)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRateWindow(cmd, resetRateWindow)
	},
}

func init() {
	rootCmd.AddCommand(ratelimitCmd)
	ratelimitCmd.AddCommand(ratelimitStatusCmd)
	ratelimitCmd.AddCommand(ratelimitResetCmd)
}

// rateWindow is the part of redis.RateLimiter the admin commands use
type rateWindow interface {
	InWindow(ctx context.Context) (int64, error)
	Limit() redis.RateLimitConfig
	Reset(ctx context.Context) error
}

func withRateWindow(cmd *cobra.Command, fn func(context.Context, io.Writer, rateWindow) error) error {
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

	if !rc.Enabled() {
		return fmt.Errorf("redis is disabled (set REDIS_ENABLED=true)")
	}

	limiter := redis.NewRateLimiter(rc, redisPrefix, redis.ProviderRateLimit(cfg.RateLimit.RequestsPerMinute))
	return fn(ctx, os.Stdout, limiter)
}

func printRateWindow(ctx context.Context, w io.Writer, rw rateWindow) error {
	n, err := rw.InWindow(ctx)
	if err != nil {
		return err
	}
	lim := rw.Limit()
	fmt.Fprintf(w, "%s: %d/%d requests in the last %s\n", lim.Key, n, lim.Limit, lim.Window)
	return nil
}

func resetRateWindow(ctx context.Context, w io.Writer, rw rateWindow) error {
	if err := rw.Reset(ctx); err != nil {
		return fmt.Errorf("reset rate window: %w", err)
	}
	fmt.Fprintf(w, "%s: rate window cleared\n", rw.Limit().Key)
	return nil
}
