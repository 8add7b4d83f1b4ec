// Package engine implements the candle-by-candle backtest driver.
//
// At each evaluation index the driver labels the regime of the lookback
// window, asks the strategy for an entry, sizes it, simulates the exit and
// books the result. At most one position is open at a time: after a trade
// the driver resumes at the candle following the exit.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/equity"
	"github.com/algomatic/regime-backtest/pkg/exits"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/risk"
	"github.com/algomatic/regime-backtest/pkg/signal"
	"github.com/algomatic/regime-backtest/pkg/strategy"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// Engine runs one strategy variant over candle series.
// An Engine holds no per-run state and may be shared between goroutines.
type Engine struct {
	cfg      config.Strategy
	strategy strategy.Strategy
	logger   *slog.Logger
}

// New creates an Engine. cfg is expected to have passed Validate.
func New(cfg config.Strategy, strat strategy.Strategy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		strategy: strat,
		logger:   logger,
	}
}

// Strategy returns the name of the variant the engine runs.
func (e *Engine) Strategy() string {
	return e.strategy.Name
}

// Run backtests the series. Malformed input is rejected before the
// simulation starts; everything after that is deterministic and error free.
func (e *Engine) Run(candles []types.Candle) (*Report, error) {
	if err := types.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("validating candles: %w", err)
	}

	rep := newReport(e.strategy.Name, candles, e.cfg.InitialCapital)
	account := equity.NewTracker(e.cfg.InitialCapital, equity.CostModel{
		Brokerage: e.cfg.Brokerage,
		STTRate:   e.cfg.STTRate,
	})
	sizer := risk.Sizer{RiskPerTrade: e.cfg.RiskPerTrade}
	sig := e.strategy.Signaler

	busy := -1
	for i := e.cfg.FirstIndex(); i < len(candles)-1; i++ {
		window := candles[max(0, i-e.cfg.Lookback) : i+1]
		info := sig.Regime(window)
		rep.Evaluated++
		rep.RegimeDays[info.Label]++

		if i <= busy {
			continue
		}

		decision, reason := sig.Evaluate(window, info)
		if reason != signal.Accept {
			rep.Rejections[string(reason)]++
			continue
		}

		size, sizeReason := sizer.Size(decision.EntryPrice, decision.Stop, account.Equity)
		if sizeReason != risk.OK {
			rep.Rejections[string(sizeReason)]++
			continue
		}

		exit := exits.Simulate(candles, exits.Position{
			Direction:   decision.Direction,
			EntryIndex:  i,
			EntryPrice:  decision.EntryPrice,
			InitialStop: decision.Stop,
			Quantity:    size.Quantity,
			ATR:         decision.ATR,
			Slip:        decision.Slip,
		}, e.strategy.Exit)

		booking := account.Record(equity.Fill{
			Direction:  decision.Direction,
			EntryPrice: decision.EntryPrice,
			ExitPrice:  exit.Price,
			Quantity:   size.Quantity,
			RiskAmount: size.Amount,
		})

		trade := closedTrade(candles, i, decision, size, exit, booking, account.Equity)
		rep.ClosedTrades = append(rep.ClosedTrades, trade)
		rep.RegimeTrades[info.Label]++
		rep.ExitReasons[exit.Reason]++

		e.logger.Debug("Closed trade",
			"direction", trade.Direction,
			"regime", trade.Regime,
			"entry_index", trade.EntryIndex,
			"exit_index", trade.ExitIndex,
			"net_pnl", trade.NetPnL,
			"r", trade.RMultiple,
			"reason", trade.ExitReason,
		)

		busy = exit.Index
	}

	rep.finish(account)
	e.logger.Debug("Backtest complete",
		"strategy", rep.Strategy,
		"candles", rep.Candles,
		"trades", rep.Trades,
		"net_pnl", rep.NetPnL,
		"max_dd_pct", rep.MaxDrawdownPct,
	)
	return rep, nil
}

func closedTrade(
	candles []types.Candle,
	entryIdx int,
	d signal.Decision,
	size risk.Size,
	exit exits.Exit,
	b equity.Booking,
	equityAfter float64,
) types.ClosedTrade {
	return types.ClosedTrade{
		Direction:   d.Direction,
		Regime:      string(d.Regime.Label),
		EntryIndex:  entryIdx,
		ExitIndex:   exit.Index,
		EntryTime:   candles[entryIdx].Timestamp,
		ExitTime:    candles[exit.Index].Timestamp,
		EntryPrice:  d.EntryPrice,
		ExitPrice:   exit.Price,
		InitialStop: d.Stop,
		FinalStop:   exit.FinalStop,
		Quantity:    size.Quantity,
		RiskAmount:  size.Amount,
		GrossPnL:    b.Gross,
		Costs:       b.Costs,
		NetPnL:      b.Net,
		RMultiple:   b.RMultiple,
		ExitReason:  exit.Reason,
		BarsHeld:    exit.BarsHeld,
		MaxProfit:   exit.MaxProfit,
		MaxAdverse:  exit.MaxAdverse,
		PnLStd:      exit.PnLStd,
		EquityAfter: equityAfter,
	}
}

// regimeCounts returns a zeroed tally for every regime label.
func regimeCounts() map[regime.Label]int {
	m := make(map[regime.Label]int, len(regime.Labels))
	for _, l := range regime.Labels {
		m[l] = 0
	}
	return m
}
