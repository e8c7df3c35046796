package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/wonny/breakscan/internal/cache"
	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/internal/external/yahoo"
	"github.com/wonny/breakscan/internal/fetcher"
	"github.com/wonny/breakscan/internal/ratelimit"
	"github.com/wonny/breakscan/internal/scan"
	"github.com/wonny/breakscan/internal/strategyconfig"
	"github.com/wonny/breakscan/internal/universe"
	"github.com/wonny/breakscan/pkg/config"
	"github.com/wonny/breakscan/pkg/database"
	"github.com/wonny/breakscan/pkg/logger"
	"github.com/wonny/breakscan/pkg/redis"
)

// redisPrefix namespaces every shared key
const redisPrefix = "breakscan"

// app is the fully wired pipeline shared by every command
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	strategy   *strategyconfig.Config
	configHash string
	universe   *contracts.SymbolUniverse
	cache      *cache.QuoteCache
	analyzer   *scan.Analyzer
	scanner    *scan.Scanner
	snapshots  *redis.SnapshotStore

	closers []func()
}

// loadConfig reads the environment (plus --env-file) and applies global flags
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strategyFile != "" {
		cfg.StrategyConfigPath = strategyFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires config → logger → strategy → universe → provider → limiter → scanner.
// Logs go to logOut so stdout stays clean for --json.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	log := logger.NewWithWriter(logOut, cfg)

	a := &app{cfg: cfg, log: log}

	// 1. Strategy thresholds
	a.strategy, err = strategyconfig.LoadOrDefault(cfg.StrategyConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy config: %w", err)
	}
	a.configHash, err = strategyconfig.Hash(a.strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	// 2. Universe (Postgres only when configured)
	var db universe.Querier
	if cfg.Universe.Source == config.UniversePostgres {
		conn, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		db = conn.Pool
	}
	src, err := universe.NewSource(cfg, db, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.universe, err = src.Load(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load universe: %w", err)
	}

	// 3. Shared rate window + snapshots (Redis optional)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rc.Close() })
	a.snapshots = redis.NewSnapshotStore(rc, redisPrefix)

	var gate ratelimit.Gate
	if rc.Enabled() {
		gate = redis.NewRateLimiter(rc, redisPrefix, redis.ProviderRateLimit(cfg.RateLimit.RequestsPerMinute))
	}
	throttle := ratelimit.NewThrottle(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.MinInterval, gate, log.WithComponent("throttle"))
	executor := ratelimit.NewExecutor(ratelimit.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: cfg.Retry.InitialWait,
		MaxWait:     cfg.Retry.MaxWait,
		Jitter:      cfg.Retry.Jitter,
	}, log.WithComponent("retry"))

	// 4. Provider (every request takes a throttle slot)
	provider, err := yahoo.NewClient(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, provider.Close)
	quoteFetcher := fetcher.New(provider, log).WithLimiter(throttle)

	// 5. Pipeline
	a.cache = cache.NewQuoteCache(cfg.Cache.TTL, log.WithComponent("quote_cache"))
	a.analyzer = scan.NewAnalyzer(a.strategy, log)
	a.scanner = scan.New(a.universe, quoteFetcher, a.analyzer, a.cache, executor, scan.ConfigFrom(cfg.Scan), log).
		WithConfigHash(a.configHash)

	log.WithFields(map[string]interface{}{
		"env":         cfg.Env,
		"universe":    a.universe.Count(),
		"source":      cfg.Universe.Source,
		"strategy":    a.strategy.Meta.StrategyID,
		"config_hash": a.configHash,
		"redis":       rc.Enabled(),
	}).Debug("Scanner initialized")

	return a, nil
}

// Close releases connections in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
