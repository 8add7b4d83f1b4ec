// Package report renders backtest results as CSV trade logs, JSON documents
// and console summaries. Currency amounts are rounded to two decimals.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/algomatic/regime-backtest/pkg/types"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

var tradeHeader = []string{
	"symbol", "direction", "regime", "entry_time", "exit_time",
	"entry_price", "exit_price", "initial_stop", "final_stop", "quantity",
	"risk_amount", "gross_pnl", "costs", "net_pnl", "r_multiple",
	"exit_reason", "bars_held", "max_profit_pct", "max_adverse_pct", "equity_after",
}

// WriteTradesCSV writes one row per closed trade.
func WriteTradesCSV(w io.Writer, symbol string, trades []types.ClosedTrade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range trades {
		row := []string{
			symbol,
			string(t.Direction),
			t.Regime,
			t.EntryTime.Format(timeLayout),
			t.ExitTime.Format(timeLayout),
			price(t.EntryPrice),
			price(t.ExitPrice),
			price(t.InitialStop),
			price(t.FinalStop),
			strconv.Itoa(t.Quantity),
			money(t.RiskAmount),
			money(t.GrossPnL),
			money(t.Costs),
			money(t.NetPnL),
			fixed(t.RMultiple, 3),
			string(t.ExitReason),
			strconv.Itoa(t.BarsHeld),
			fixed(t.MaxProfit, 2),
			fixed(t.MaxAdverse, 2),
			money(t.EquityAfter),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing trade %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveTradesCSV writes the trade log to path.
func SaveTradesCSV(path, symbol string, trades []types.ClosedTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteTradesCSV(f, symbol, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func money(v float64) string { return fixed(v, 2) }

func price(v float64) string { return fixed(v, 4) }

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
