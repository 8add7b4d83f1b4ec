// Package cache stores finished backtest reports in Redis.
//
// A backtest is a pure function of (strategy, parameters, candles), so the
// SHA-256 of those inputs identifies the report exactly and a hit can be
// returned without recomputing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/engine"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// KeyPrefix namespaces report keys.
const KeyPrefix = "backtest:report:"

// Cache wraps a Redis client for report lookups.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to Redis using cfg.
func New(cfg config.RedisConfig, logger *slog.Logger) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.TTL, logger)
}

// NewWithClient wraps an existing client. A zero ttl stores keys without
// expiry.
func NewWithClient(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// HealthCheck verifies Redis connectivity.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close shuts down the Redis client if it owns one.
func (c *Cache) Close() error {
	if cl, ok := c.client.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

// Key hashes the inputs of a run into a cache key.
func Key(strategy string, params config.Strategy, candles []types.Candle) (string, error) {
	h := sha256.New()
	h.Write([]byte(strategy))
	h.Write([]byte{0})

	enc := json.NewEncoder(h)
	if err := enc.Encode(params); err != nil {
		return "", fmt.Errorf("hashing params: %w", err)
	}
	if err := enc.Encode(candles); err != nil {
		return "", fmt.Errorf("hashing candles: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached report for key. found is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*engine.Report, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Report cache miss", "key", key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}

	var rep engine.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, false, fmt.Errorf("decoding cached report: %w", err)
	}
	c.logger.Debug("Report cache hit", "key", key)
	return &rep, true, nil
}

// Set stores rep under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, rep *engine.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
