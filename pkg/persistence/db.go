package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algomatic/regime-backtest/pkg/config"
)

// Schema creates the report tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_reports (
	id                 BIGSERIAL PRIMARY KEY,
	run_id             TEXT NOT NULL,
	symbol             TEXT NOT NULL,
	strategy           TEXT NOT NULL,
	period_start       TIMESTAMPTZ NOT NULL,
	period_end         TIMESTAMPTZ NOT NULL,
	candles            INTEGER NOT NULL,
	trades             INTEGER NOT NULL,
	wins               INTEGER NOT NULL,
	win_rate_pct       DOUBLE PRECISION NOT NULL,
	net_pnl            DOUBLE PRECISION NOT NULL,
	total_return_pct   DOUBLE PRECISION NOT NULL,
	monthly_return_pct DOUBLE PRECISION NOT NULL,
	max_drawdown_pct   DOUBLE PRECISION NOT NULL,
	avg_r              DOUBLE PRECISION NOT NULL,
	buy_hold_pct       DOUBLE PRECISION NOT NULL,
	final_equity       DOUBLE PRECISION NOT NULL,
	params             JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_backtest_report UNIQUE (run_id, symbol, strategy)
);

CREATE TABLE IF NOT EXISTS backtest_trades (
	report_id    BIGINT NOT NULL REFERENCES backtest_reports(id) ON DELETE CASCADE,
	ticker       TEXT NOT NULL,
	direction    TEXT NOT NULL,
	regime       TEXT NOT NULL,
	entry_time   TIMESTAMPTZ NOT NULL,
	exit_time    TIMESTAMPTZ NOT NULL,
	entry_price  DOUBLE PRECISION NOT NULL,
	exit_price   DOUBLE PRECISION NOT NULL,
	initial_stop DOUBLE PRECISION NOT NULL,
	final_stop   DOUBLE PRECISION NOT NULL,
	quantity     INTEGER NOT NULL,
	gross_pnl    DOUBLE PRECISION NOT NULL,
	costs        DOUBLE PRECISION NOT NULL,
	net_pnl      DOUBLE PRECISION NOT NULL,
	r_multiple   DOUBLE PRECISION NOT NULL,
	exit_reason  TEXT NOT NULL,
	bars_held    INTEGER NOT NULL,
	max_adverse  DOUBLE PRECISION NOT NULL,
	max_profit   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_monthly (
	report_id   BIGINT NOT NULL REFERENCES backtest_reports(id) ON DELETE CASCADE,
	month       DATE NOT NULL,
	direction   TEXT NOT NULL,
	num_trades  INTEGER NOT NULL,
	wins        INTEGER NOT NULL,
	net_pnl     DOUBLE PRECISION NOT NULL,
	r_mean      DOUBLE PRECISION NOT NULL,
	r_std       DOUBLE PRECISION NOT NULL,
	max_adverse DOUBLE PRECISION NOT NULL,
	max_profit  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (report_id, month, direction)
);`

// Client provides database persistence for backtest reports.
type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewClient creates a new database client with a connection pool.
func NewClient(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("Database connection pool established", "max_conns", poolCfg.MaxConns)
	return &Client{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the report tables if needed.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (c *Client) Close() error {
	c.pool.Close()
	c.logger.Info("Database connection pool closed")
	return nil
}

// SaveReport upserts the report row, replaces its trade and monthly rows via
// COPY, and commits once.
func (c *Client) SaveReport(
	ctx context.Context,
	rec ReportRecord,
	trades []TradeRecord,
	monthly []MonthlyResult,
) (int64, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO backtest_reports
			(run_id, symbol, strategy, period_start, period_end,
			 candles, trades, wins, win_rate_pct, net_pnl,
			 total_return_pct, monthly_return_pct, max_drawdown_pct, avg_r,
			 buy_hold_pct, final_equity, params)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT ON CONSTRAINT uq_backtest_report DO UPDATE SET
			period_start = EXCLUDED.period_start, period_end = EXCLUDED.period_end,
			candles = EXCLUDED.candles, trades = EXCLUDED.trades, wins = EXCLUDED.wins,
			win_rate_pct = EXCLUDED.win_rate_pct, net_pnl = EXCLUDED.net_pnl,
			total_return_pct = EXCLUDED.total_return_pct,
			monthly_return_pct = EXCLUDED.monthly_return_pct,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct, avg_r = EXCLUDED.avg_r,
			buy_hold_pct = EXCLUDED.buy_hold_pct, final_equity = EXCLUDED.final_equity,
			params = EXCLUDED.params
		 RETURNING id`,
		rec.RunID, rec.Symbol, rec.Strategy, rec.PeriodStart, rec.PeriodEnd,
		rec.Candles, rec.Trades, rec.Wins, rec.WinRatePct, rec.NetPnL,
		rec.TotalReturnPct, rec.MonthlyReturnPct, rec.MaxDrawdownPct, rec.AvgR,
		rec.BuyHoldPct, rec.FinalEquity, rec.Params,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting report: %w", err)
	}

	// A re-run of the same (run, symbol, strategy) replaces its children.
	for _, table := range []string{"backtest_trades", "backtest_monthly"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE report_id = $1", id); err != nil {
			return 0, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	tradeCount, err := copyTrades(ctx, tx, id, trades)
	if err != nil {
		return 0, err
	}
	monthCount, err := copyMonthly(ctx, tx, id, monthly)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing report transaction: %w", err)
	}

	c.logger.Info("Saved backtest report",
		"report_id", id,
		"symbol", rec.Symbol,
		"strategy", rec.Strategy,
		"trades", tradeCount,
		"months", monthCount,
	)
	return id, nil
}

func copyTrades(ctx context.Context, tx pgx.Tx, reportID int64, trades []TradeRecord) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(trades))
	for i, t := range trades {
		rows[i] = []any{
			reportID, t.Ticker, t.Direction, t.Regime,
			t.EntryTime, t.ExitTime, t.EntryPrice, t.ExitPrice,
			t.InitialStop, t.FinalStop, t.Quantity,
			t.GrossPnL, t.Costs, t.NetPnL, t.RMultiple,
			t.ExitReason, t.BarsHeld, t.MaxAdverse, t.MaxProfit,
		}
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"backtest_trades"},
		[]string{
			"report_id", "ticker", "direction", "regime",
			"entry_time", "exit_time", "entry_price", "exit_price",
			"initial_stop", "final_stop", "quantity",
			"gross_pnl", "costs", "net_pnl", "r_multiple",
			"exit_reason", "bars_held", "max_adverse", "max_profit",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk inserting trades: %w", err)
	}
	return n, nil
}

func copyMonthly(ctx context.Context, tx pgx.Tx, reportID int64, monthly []MonthlyResult) (int64, error) {
	if len(monthly) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(monthly))
	for i, m := range monthly {
		rows[i] = []any{
			reportID, m.Month, m.Direction, m.NumTrades, m.Wins,
			m.NetPnL, m.RMean, m.RStd, m.MaxAdverse, m.MaxProfit,
		}
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"backtest_monthly"},
		[]string{
			"report_id", "month", "direction", "num_trades", "wins",
			"net_pnl", "r_mean", "r_std", "max_adverse", "max_profit",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk inserting monthly rows: %w", err)
	}
	return n, nil
}
