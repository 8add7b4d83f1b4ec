// Package backend provides an HTTP client for the market-data backend API.
//
// The backtester can read candles from files (see pkg/loader) or fetch them
// from the backend's REST API. Requests are rate limited on the client side,
// retried on transient failures and guarded by a circuit breaker so a batch
// run over many symbols does not hammer an unhealthy backend.
//
// Usage:
//
//	client := backend.NewClient("http://localhost:8000", nil)
//	candles, err := client.GetCandles(ctx, "RELIANCE", "1Day", start, end)
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// DefaultTimeout is the per-request timeout applied to API calls.
const DefaultTimeout = 30 * time.Second

// MaxRetries is the number of retry attempts for transient errors.
const MaxRetries = 3

// Config holds optional configuration for the backend client.
type Config struct {
	// Timeout per HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxRetries for transient errors. Zero means the package default.
	MaxRetries int

	// RPS and Burst bound the client-side request rate. Zero RPS disables
	// rate limiting.
	RPS   float64
	Burst int

	// BreakerFailures is the number of consecutive failed calls that open
	// the circuit. Zero means 5.
	BreakerFailures uint32

	// BreakerCooldown is how long the circuit stays open. Zero means 30s.
	BreakerCooldown time.Duration

	// Logger for debug/info output. Nil uses slog.Default().
	Logger *slog.Logger

	// EnableCache enables in-memory caching of responses.
	EnableCache bool
}

// StatusError is returned for non-retryable 4xx responses.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Detail)
	}
	return fmt.Sprintf("%s (status %d)", http.StatusText(e.Code), e.Code)
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("backend circuit open")

// Client is an HTTP client for the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger

	// In-memory cache (symbol+timeframe+range -> candles)
	cacheMu sync.RWMutex
	cache   map[string][]types.Candle
	cacheOn bool
}

// NewClient creates a new backend API client.
//
// baseURL should include the scheme and host, e.g. "http://localhost:8000".
// A nil config uses sensible defaults.
func NewClient(baseURL string, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := DefaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	retries := MaxRetries
	if cfg.MaxRetries > 0 {
		retries = cfg.MaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "backend",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A 4xx is the caller's problem, not the backend's.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.As(err, &se)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Backend circuit state changed", "from", from.String(), "to", to.String())
		},
	})

	logger.Info("Backend client initialised",
		"base_url", baseURL,
		"timeout", timeout,
		"max_retries", retries,
		"rps", cfg.RPS,
		"cache", cfg.EnableCache,
	)

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
		cache:      make(map[string][]types.Candle),
		cacheOn:    cfg.EnableCache,
	}
}

type barsResponse struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Count     int          `json:"count"`
	Bars      []barPayload `json:"bars"`
}

type barPayload struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type apiError struct {
	Detail string `json:"detail"`
}

// GetCandles fetches OHLCV candles for one symbol and range. Results are
// cached in memory when caching is enabled.
func (c *Client) GetCandles(
	ctx context.Context,
	symbol, timeframe string,
	start, end time.Time,
) ([]types.Candle, error) {
	cacheKey := fmt.Sprintf("%s|%s|%s|%s", symbol, timeframe,
		start.Format(time.RFC3339), end.Format(time.RFC3339))

	if c.cacheOn {
		c.cacheMu.RLock()
		cached, ok := c.cache[cacheKey]
		c.cacheMu.RUnlock()
		if ok {
			c.logger.Debug("Cache hit for candles", "key", cacheKey)
			return cached, nil
		}
	}

	params := url.Values{
		"symbol":          {symbol},
		"timeframe":       {timeframe},
		"start_timestamp": {start.Format(time.RFC3339)},
		"end_timestamp":   {end.Format(time.RFC3339)},
	}

	c.logger.Debug("Fetching candles", "symbol", symbol, "timeframe", timeframe)

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doGet(ctx, "/api/bars", params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("GetCandles %s: %w", symbol, ErrCircuitOpen)
		}
		return nil, fmt.Errorf("GetCandles %s: %w", symbol, err)
	}

	var resp barsResponse
	if err := json.Unmarshal(out.([]byte), &resp); err != nil {
		return nil, fmt.Errorf("GetCandles %s: decoding response: %w", symbol, err)
	}

	candles := make([]types.Candle, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		ts, err := types.ParseTimestamp(b.Timestamp)
		if err != nil {
			c.logger.Warn("Skipping bar with unparseable timestamp", "ts", b.Timestamp, "err", err)
			continue
		}
		candles = append(candles, types.Candle{
			Timestamp: ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	if c.cacheOn {
		c.cacheMu.Lock()
		c.cache[cacheKey] = candles
		c.cacheMu.Unlock()
	}

	c.logger.Info("Fetched candles", "symbol", symbol, "timeframe", timeframe, "count", len(candles))
	return candles, nil
}

// ClearCache removes all cached entries.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	c.cache = make(map[string][]types.Candle)
	c.cacheMu.Unlock()
	c.logger.Debug("Cache cleared")
}

// doGet executes a GET request with retries and exponential backoff.
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			c.logger.Debug("Retrying request",
				"attempt", attempt, "backoff", backoff, "url", u,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("HTTP request failed", "url", u, "attempt", attempt, "err", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response body: %w", readErr)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error (status %d)", resp.StatusCode)
			c.logger.Warn("Server error, will retry",
				"status", resp.StatusCode, "attempt", attempt,
			)
			continue
		case resp.StatusCode >= 400:
			se := &StatusError{Code: resp.StatusCode}
			var apiErr apiError
			if json.Unmarshal(body, &apiErr) == nil {
				se.Detail = apiErr.Detail
			}
			return nil, se
		default:
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("all %d retries exhausted: %w", c.maxRetries, lastErr)
}
