// Command backtest runs the regime-adaptive strategy over historical candles.
//
// Usage:
//
//	backtest run --file data/NIFTY.json --start 2020-03-01 --end 2020-09-30
//	backtest run --symbol NIFTY --start 2020-03-01 --end 2020-09-30
//	backtest batch --dir data/ --workers 8 --serve :8090
//	backtest scan --file data/NIFTY.json --window 60
//	backtest strategies
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/algomatic/regime-backtest/pkg/config"
)

const version = "0.4.0"

var (
	configPath string
	envFile    string
	logLevel   string

	capital float64
	risk    float64

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Regime-adaptive trend-following backtester",
	Long: `backtest replays daily candles through an ADX regime classifier, EMA
trend and pullback filters, ATR risk sizing and a trailing-stop simulator,
and reports trades, returns and drawdown.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "Path to .env file (ignored if missing)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.Float64Var(&capital, "capital", 0, "Starting capital (overrides config)")
	pf.Float64Var(&risk, "risk", 0, "Fraction of equity risked per trade (overrides config)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads .env, the config file and flag overrides, then builds the
// logger shared by every subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("capital") {
		c.Strategy.InitialCapital = capital
	}
	if flags.Changed("risk") {
		c.Strategy.RiskPerTrade = risk
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	cfg = c
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}))
	slog.SetDefault(logger)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
