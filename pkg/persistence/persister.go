package persistence

import (
	"context"
	"fmt"

	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/engine"
)

// Persister stores backtest reports.
type Persister interface {
	// SaveReport inserts the report row and its trades and monthly rows
	// atomically. Returns the report's database ID.
	SaveReport(ctx context.Context, rec ReportRecord, trades []TradeRecord, monthly []MonthlyResult) (int64, error)

	// Close releases resources.
	Close() error
}

// Persist builds every row for a report and saves it through p.
func Persist(
	ctx context.Context,
	p Persister,
	runID, symbol string,
	rep *engine.Report,
	params config.Strategy,
) (int64, error) {
	rec, err := BuildReportRecord(runID, symbol, rep, params)
	if err != nil {
		return 0, err
	}
	trades := BuildTradeRecords(rep.ClosedTrades, symbol)
	monthly := AggregateTrades(rep.ClosedTrades)

	id, err := p.SaveReport(ctx, rec, trades, monthly)
	if err != nil {
		return 0, fmt.Errorf("saving report for %s: %w", symbol, err)
	}
	return id, nil
}
