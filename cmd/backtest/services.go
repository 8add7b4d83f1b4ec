package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/algomatic/regime-backtest/pkg/backend"
	"github.com/algomatic/regime-backtest/pkg/batch"
	"github.com/algomatic/regime-backtest/pkg/cache"
	"github.com/algomatic/regime-backtest/pkg/loader"
	"github.com/algomatic/regime-backtest/pkg/persistence"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// services holds the optional report store and cache.
type services struct {
	store *persistence.Client
	cache *cache.Cache
}

// openServices connects to Postgres and Redis when they are configured.
// A missing DSN or address leaves that service nil.
func openServices(ctx context.Context, usePersist, useCache bool) (*services, error) {
	s := &services{}
	if usePersist && cfg.Database.DSN != "" {
		store, err := persistence.NewClient(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		s.store = store
	}
	if useCache && cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis, logger)
		if err := c.HealthCheck(ctx); err != nil {
			logger.Warn("Report cache unavailable, continuing without it", "addr", cfg.Redis.Addr, "error", err)
			c.Close()
		} else {
			s.cache = c
		}
	}
	return s, nil
}

func (s *services) options() []batch.Option {
	var opts []batch.Option
	if s.store != nil {
		opts = append(opts, batch.WithStore(s.store))
	}
	if s.cache != nil {
		opts = append(opts, batch.WithCache(s.cache))
	}
	return opts
}

func (s *services) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

// dateRange parses the optional --start/--end values.
func dateRange(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = types.ParseTimestamp(start); err != nil {
			return from, to, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if end != "" {
		if to, err = types.ParseTimestamp(end); err != nil {
			return from, to, fmt.Errorf("invalid --end: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return from, to, nil
}

// fileSource loads a candle file and trims it to [from, to].
func fileSource(path string, from, to time.Time) batch.LoadFunc {
	return func(context.Context) ([]types.Candle, error) {
		candles, err := loader.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return loader.FilterRange(candles, from, to), nil
	}
}

// backendSource fetches candles for symbol from the configured backend API.
func backendSource(client *backend.Client, symbol, timeframe string, from, to time.Time) batch.LoadFunc {
	return func(ctx context.Context) ([]types.Candle, error) {
		if from.IsZero() || to.IsZero() {
			return nil, fmt.Errorf("--start and --end are required when loading from the backend")
		}
		candles, err := client.GetCandles(ctx, symbol, timeframe, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", symbol, err)
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("no candles returned for %s/%s", symbol, timeframe)
		}
		return candles, nil
	}
}

func newBackendClient() (*backend.Client, error) {
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend url not configured (set backend.url or BT_BACKEND_URL)")
	}
	return backend.NewClient(cfg.Backend.URL, &backend.Config{
		Timeout:     cfg.Backend.Timeout,
		RPS:         cfg.Backend.RPS,
		Burst:       cfg.Backend.Burst,
		Logger:      logger,
		EnableCache: true,
	}), nil
}

// symbolFromPath turns data/nifty.json into NIFTY.
func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}
