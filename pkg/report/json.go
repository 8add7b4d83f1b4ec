package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/algomatic/regime-backtest/pkg/engine"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// Document is the JSON form of one symbol's backtest.
type Document struct {
	Symbol string         `json:"symbol"`
	Report *engine.Report `json:"report"`
}

// Rounded returns a copy of rep with every currency amount rounded to two
// decimals. The input is not modified.
func Rounded(rep *engine.Report) *engine.Report {
	out := *rep
	out.GrossPnL = round2(rep.GrossPnL)
	out.Costs = round2(rep.Costs)
	out.NetPnL = round2(rep.NetPnL)
	out.InitialCapital = round2(rep.InitialCapital)
	out.FinalEquity = round2(rep.FinalEquity)
	out.PeakEquity = round2(rep.PeakEquity)

	out.ClosedTrades = make([]types.ClosedTrade, len(rep.ClosedTrades))
	for i, t := range rep.ClosedTrades {
		t.RiskAmount = round2(t.RiskAmount)
		t.GrossPnL = round2(t.GrossPnL)
		t.Costs = round2(t.Costs)
		t.NetPnL = round2(t.NetPnL)
		t.EquityAfter = round2(t.EquityAfter)
		out.ClosedTrades[i] = t
	}
	return &out
}

// WriteJSON encodes the report for symbol. Trades are omitted unless
// withTrades is set.
func WriteJSON(w io.Writer, symbol string, rep *engine.Report, withTrades bool) error {
	r := Rounded(rep)
	if !withTrades {
		r.ClosedTrades = nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{Symbol: symbol, Report: r}); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// SaveJSON writes the report document to path.
func SaveJSON(path, symbol string, rep *engine.Report, withTrades bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteJSON(f, symbol, rep, withTrades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
