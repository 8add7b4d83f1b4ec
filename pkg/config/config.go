// Package config loads backtest and service configuration.
//
// Sources, lowest to highest precedence: built-in defaults, an optional YAML
// file, then BT_-prefixed environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/algomatic/regime-backtest/pkg/indicators"
	"github.com/algomatic/regime-backtest/pkg/regime"
)

// Config holds all configuration for the backtester.
type Config struct {
	Strategy Strategy       `yaml:"strategy"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Backend  BackendConfig  `yaml:"backend"`
	Batch    BatchConfig    `yaml:"batch"`
}

// Strategy holds every numeric parameter of a backtest run.
type Strategy struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	// RiskPerTrade is the fraction of equity risked per trade.
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade"`
	// Slippage is a fraction of the entry close, charged on entry and exit.
	Slippage  float64 `yaml:"slippage" json:"slippage"`
	Brokerage float64 `yaml:"brokerage" json:"brokerage"`
	STTRate   float64 `yaml:"stt_rate" json:"stt_rate"`

	Indicators indicators.Params `yaml:"indicators" json:"indicators"`

	// StopATRMult is the ATR buffer beyond the swing extreme for the initial stop.
	StopATRMult float64 `yaml:"stop_atr_mult" json:"stop_atr_mult"`
	// TrailingATRMult scales entry ATR into the trailing distance.
	TrailingATRMult float64 `yaml:"trailing_atr_mult" json:"trailing_atr_mult"`
	// ExitHorizon bounds the forward scan after entry, in candles.
	ExitHorizon int `yaml:"exit_horizon" json:"exit_horizon"`
	// Lookback is the number of prior candles in each evaluation window.
	Lookback int `yaml:"lookback" json:"lookback"`
	// WarmupOffset is added to the slow EMA period to get the first
	// evaluated index.
	WarmupOffset int `yaml:"warmup_offset" json:"warmup_offset"`

	Regimes regime.Table `yaml:"regimes" json:"regimes"`
}

// LogConfig holds logging parameters.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty DSN
// disables report persistence.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig holds report cache parameters. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// HTTPConfig holds the monitoring server address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// BackendConfig holds the HTTP candle source parameters.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

// BatchConfig holds parallel run parameters.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Strategy: DefaultStrategy(),
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{MaxConns: 10, MinConns: 2},
		Redis:    RedisConfig{TTL: 24 * time.Hour},
		HTTP:     HTTPConfig{Addr: ":8090"},
		Backend:  BackendConfig{Timeout: 30 * time.Second, RPS: 5, Burst: 5},
		Batch:    BatchConfig{Workers: 4},
	}
}

// DefaultStrategy returns the default strategy parameters.
func DefaultStrategy() Strategy {
	return Strategy{
		InitialCapital:  500000,
		RiskPerTrade:    0.003,
		Slippage:        0.0005,
		Brokerage:       20,
		STTRate:         0.001,
		Indicators:      indicators.DefaultParams(),
		StopATRMult:     0.5,
		TrailingATRMult: 1.5,
		ExitHorizon:     20,
		Lookback:        60,
		WarmupOffset:    30,
		Regimes:         regime.DefaultTable(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// not empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := overrideFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func overrideFromEnv(cfg *Config) error {
	s := &cfg.Strategy
	floats := map[string]*float64{
		"BT_INITIAL_CAPITAL": &s.InitialCapital,
		"BT_RISK_PER_TRADE":  &s.RiskPerTrade,
		"BT_SLIPPAGE":        &s.Slippage,
		"BT_BROKERAGE":       &s.Brokerage,
		"BT_STT_RATE":        &s.STTRate,
		"BT_BACKEND_RPS":     &cfg.Backend.RPS,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}

	ints := map[string]*int{
		"BT_EXIT_HORIZON": &s.ExitHorizon,
		"BT_LOOKBACK":     &s.Lookback,
		"BT_REDIS_DB":     &cfg.Redis.DB,
		"BT_WORKERS":      &cfg.Batch.Workers,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"BT_REDIS_TTL":       &cfg.Redis.TTL,
		"BT_BACKEND_TIMEOUT": &cfg.Backend.Timeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	strs := map[string]*string{
		"BT_LOG_LEVEL":      &cfg.Log.Level,
		"BT_DATABASE_DSN":   &cfg.Database.DSN,
		"BT_REDIS_ADDR":     &cfg.Redis.Addr,
		"BT_REDIS_PASSWORD": &cfg.Redis.Password,
		"BT_HTTP_ADDR":      &cfg.HTTP.Addr,
		"BT_BACKEND_URL":    &cfg.Backend.URL,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", c.Log.Level)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be >= 1, got %d", c.Batch.Workers)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis ttl must be >= 0, got %s", c.Redis.TTL)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return c.Strategy.Validate()
}

// Validate checks the strategy parameters.
func (s Strategy) Validate() error {
	if s.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be > 0, got %g", s.InitialCapital)
	}
	if s.RiskPerTrade <= 0 || s.RiskPerTrade >= 1 {
		return fmt.Errorf("risk_per_trade must be in (0,1), got %g", s.RiskPerTrade)
	}
	if s.Slippage < 0 || s.Brokerage < 0 || s.STTRate < 0 {
		return fmt.Errorf("costs must be >= 0 (slippage %g, brokerage %g, stt_rate %g)",
			s.Slippage, s.Brokerage, s.STTRate)
	}

	p := s.Indicators
	periods := map[string]int{
		"ema_fast":         p.FastPeriod,
		"ema_slow":         p.SlowPeriod,
		"atr_period":       p.ATRPeriod,
		"adx_period":       p.ADXPeriod,
		"slope_ema_period": p.SlopePeriod,
		"slope_lag":        p.SlopeLag,
		"swing_lookback":   p.SwingLookback,
		"volume_lookback":  p.VolumeLookback,
		"exit_horizon":     s.ExitHorizon,
		"lookback":         s.Lookback,
	}
	for _, name := range []string{
		"ema_fast", "ema_slow", "atr_period", "adx_period", "slope_ema_period",
		"slope_lag", "swing_lookback", "volume_lookback", "exit_horizon", "lookback",
	} {
		if periods[name] <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", name, periods[name])
		}
	}
	if p.FastPeriod >= p.SlowPeriod {
		return fmt.Errorf("ema_fast (%d) must be below ema_slow (%d)", p.FastPeriod, p.SlowPeriod)
	}
	if s.WarmupOffset < 0 {
		return fmt.Errorf("warmup_offset must be >= 0, got %d", s.WarmupOffset)
	}
	if p.PullbackATRMult <= 0 || p.PullbackMinFraction < 0 || p.PullbackMinFraction >= 1 {
		return fmt.Errorf("pullback_atr_mult must be > 0 and pullback_min_fraction in [0,1), got %g / %g",
			p.PullbackATRMult, p.PullbackMinFraction)
	}
	if s.StopATRMult < 0 || s.TrailingATRMult <= 0 {
		return fmt.Errorf("stop_atr_mult must be >= 0 and trailing_atr_mult > 0, got %g / %g",
			s.StopATRMult, s.TrailingATRMult)
	}
	if err := s.Regimes.Validate(); err != nil {
		return err
	}
	return nil
}

// FirstIndex returns the first evaluated candle index.
func (s Strategy) FirstIndex() int {
	return s.Indicators.SlowPeriod + s.WarmupOffset
}
