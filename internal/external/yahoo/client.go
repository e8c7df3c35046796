package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	yfclient "github.com/wnjoon/go-yfinance/pkg/client"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/config"
	"github.com/wonny/breakscan/pkg/logger"
)

// defaultTimeout applies when PROVIDER_TIMEOUT is unset
const defaultTimeout = 15 * time.Second

// tickerAPI is the part of a go-yfinance ticker this client reads
type tickerAPI interface {
	History(params models.HistoryParams) ([]models.Bar, error)
	GetHistoryMetadata() *models.ChartMeta
	Info() (*models.Info, error)
	ClearCache()
	Close()
}

// tickerEntry serializes calls on one ticker; History and its metadata are read as a pair
type tickerEntry struct {
	mu sync.Mutex
	t  tickerAPI
}

// Client reads charts and company info from Yahoo Finance through go-yfinance.
// Tickers are kept per symbol so the cookie/crumb handshake happens once per
// symbol, not once per request. It does no throttling or retrying; callers
// wrap it with internal/ratelimit.
// ⭐ SSOT: Yahoo Finance API 호출은 이 클라이언트에서만
type Client struct {
	yf        *yfclient.Client
	newTicker func(symbol string) (tickerAPI, error)
	logger    *logger.Logger

	mu      sync.Mutex
	tickers map[string]*tickerEntry
}

// NewClient creates a client sharing one go-yfinance transport across all tickers
func NewClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	timeout := cfg.Provider.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	yf, err := yfclient.New(yfclient.WithTimeout(int(math.Ceil(timeout.Seconds()))))
	if err != nil {
		return nil, fmt.Errorf("create yahoo client: %w", err)
	}

	c := newClient(func(symbol string) (tickerAPI, error) {
		return ticker.New(symbol, ticker.WithClient(yf))
	}, log)
	c.yf = yf
	return c, nil
}

func newClient(newTicker func(symbol string) (tickerAPI, error), log *logger.Logger) *Client {
	return &Client{
		newTicker: newTicker,
		logger:    log.WithComponent("yahoo"),
		tickers:   make(map[string]*tickerEntry),
	}
}

// Close releases every ticker and the shared transport
func (c *Client) Close() {
	c.mu.Lock()
	for symbol, e := range c.tickers {
		e.t.Close()
		delete(c.tickers, symbol)
	}
	c.mu.Unlock()

	if c.yf != nil {
		c.yf.Close()
	}
}

func (c *Client) ticker(symbol string) (*tickerEntry, error) {
	key := strings.ToUpper(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.tickers[key]; ok {
		return e, nil
	}
	t, err := c.newTicker(key)
	if err != nil {
		return nil, err
	}
	e := &tickerEntry{t: t}
	c.tickers[key] = e
	return e, nil
}

// evict drops a ticker so the next call starts a fresh crumb handshake
func (c *Client) evict(symbol string) {
	key := strings.ToUpper(symbol)

	c.mu.Lock()
	e, ok := c.tickers[key]
	delete(c.tickers, key)
	c.mu.Unlock()

	if ok {
		e.t.Close()
		c.logger.WithField("symbol", key).Debug("Yahoo auth rejected, ticker renewed on next call")
	}
}

// call runs fn on the symbol's ticker and classifies its error.
// go-yfinance takes no context: on cancellation call returns at once and the
// request finishes in the background, bounded by the transport timeout.
func (c *Client) call(ctx context.Context, op, symbol string, fn func(t tickerAPI) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry, err := c.ticker(symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	done := make(chan error, 1)
	go func() {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		done <- fn(entry.t)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(err, yfclient.ErrAuth) {
			// 만료된 crumb: 다음 시도에서 새로 발급
			c.evict(symbol)
		}
		return classify(ctx, op, err)
	}
}

// classify maps go-yfinance failures onto the pipeline's error kinds:
// not found / no data → ErrNoData, rate limit / network / timeout / auth → transient,
// everything else as is.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	switch {
	case errors.Is(err, yfclient.ErrNotFound), errors.Is(err, yfclient.ErrNoData), errors.Is(err, yfclient.ErrInvalidSymbol):
		return fmt.Errorf("%s: %w: %w", op, contracts.ErrNoData, err)
	case errors.Is(err, yfclient.ErrRateLimit), errors.Is(err, yfclient.ErrNetwork),
		errors.Is(err, yfclient.ErrTimeout), errors.Is(err, yfclient.ErrAuth):
		return contracts.Transient(op, err)
	}

	var yfErr *yfclient.YFError
	if errors.As(err, &yfErr) {
		// invalid response, other 4xx
		return fmt.Errorf("%s: %w", op, err)
	}

	// chart/quoteSummary error payloads come back as untyped "API error: ..."
	msg := err.Error()
	if strings.Contains(msg, "API error") {
		if strings.Contains(msg, "No data found") || strings.Contains(msg, "delisted") {
			return fmt.Errorf("%s: %w: %w", op, contracts.ErrNoData, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	// untyped transport failures: connection errors, crumb handshake
	return contracts.Transient(op, err)
}
