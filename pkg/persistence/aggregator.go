// Package persistence provides monthly trade aggregation and database
// persistence for backtest reports.
package persistence

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/engine"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// GroupKey identifies one monthly aggregation bucket.
type GroupKey struct {
	Month     time.Time // first day of the exit month, UTC
	Direction string    // "long" or "short"
}

// MonthlyResult holds the statistics of one (exit month, direction) group.
// Maps directly to a row in the backtest_monthly table.
type MonthlyResult struct {
	ReportID  int64 // FK to backtest_reports.id (set on save)
	Month     time.Time
	Direction string

	NumTrades  int
	Wins       int
	NetPnL     float64
	RMean      float64
	RStd       float64
	MaxAdverse float64
	MaxProfit  float64
}

// TradeRecord holds the fields for one row in the backtest_trades table.
type TradeRecord struct {
	ReportID    int64 // FK to backtest_reports.id (set on save)
	Ticker      string
	Direction   string
	Regime      string
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	InitialStop float64
	FinalStop   float64
	Quantity    int
	GrossPnL    float64
	Costs       float64
	NetPnL      float64
	RMultiple   float64
	ExitReason  string
	BarsHeld    int
	MaxAdverse  float64
	MaxProfit   float64
}

// ReportRecord holds one row of the backtest_reports table.
type ReportRecord struct {
	RunID            string
	Symbol           string
	Strategy         string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Candles          int
	Trades           int
	Wins             int
	WinRatePct       float64
	NetPnL           float64
	TotalReturnPct   float64
	MonthlyReturnPct float64
	MaxDrawdownPct   float64
	AvgR             float64
	BuyHoldPct       float64
	FinalEquity      float64
	// Params is the JSON-encoded strategy configuration of the run.
	Params []byte
}

// BuildReportRecord flattens a report and the parameters that produced it.
func BuildReportRecord(runID, symbol string, rep *engine.Report, params config.Strategy) (ReportRecord, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return ReportRecord{}, fmt.Errorf("encoding params: %w", err)
	}
	return ReportRecord{
		RunID:            runID,
		Symbol:           strings.ToUpper(symbol),
		Strategy:         rep.Strategy,
		PeriodStart:      rep.FirstTimestamp,
		PeriodEnd:        rep.LastTimestamp,
		Candles:          rep.Candles,
		Trades:           rep.Trades,
		Wins:             rep.Wins,
		WinRatePct:       rep.WinRatePct,
		NetPnL:           rep.NetPnL,
		TotalReturnPct:   rep.TotalReturnPct,
		MonthlyReturnPct: rep.MonthlyReturnPct,
		MaxDrawdownPct:   rep.MaxDrawdownPct,
		AvgR:             rep.AvgR,
		BuyHoldPct:       rep.BuyHoldPct,
		FinalEquity:      rep.FinalEquity,
		Params:           raw,
	}, nil
}

// AggregateTrades groups trades by (exit month, direction) and computes
// per-group statistics. Groups are returned ordered by month, then direction.
func AggregateTrades(trades []types.ClosedTrade) []MonthlyResult {
	if len(trades) == 0 {
		return nil
	}

	groups := make(map[GroupKey][]types.ClosedTrade)
	for _, t := range trades {
		key := GroupKey{
			Month:     truncateToMonth(t.ExitTime),
			Direction: normalizeDirection(t.Direction),
		}
		groups[key] = append(groups[key], t)
	}

	results := make([]MonthlyResult, 0, len(groups))
	for key, groupTrades := range groups {
		rs := make([]float64, len(groupTrades))
		var net, maxAdverse, maxProfit float64
		wins := 0
		for i, t := range groupTrades {
			rs[i] = t.RMultiple
			net += t.NetPnL
			if t.Win() {
				wins++
			}
			if t.MaxAdverse > maxAdverse {
				maxAdverse = t.MaxAdverse
			}
			if t.MaxProfit > maxProfit {
				maxProfit = t.MaxProfit
			}
		}

		results = append(results, MonthlyResult{
			Month:      key.Month,
			Direction:  key.Direction,
			NumTrades:  len(groupTrades),
			Wins:       wins,
			NetPnL:     net,
			RMean:      mean(rs),
			RStd:       stddev(rs),
			MaxAdverse: maxAdverse,
			MaxProfit:  maxProfit,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Month.Equal(results[j].Month) {
			return results[i].Month.Before(results[j].Month)
		}
		return results[i].Direction < results[j].Direction
	})
	return results
}

// BuildTradeRecords converts closed trades to TradeRecord rows. ReportID is
// left as 0 and is set once the report row is inserted.
func BuildTradeRecords(trades []types.ClosedTrade, symbol string) []TradeRecord {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Ticker:      strings.ToUpper(symbol),
			Direction:   normalizeDirection(t.Direction),
			Regime:      t.Regime,
			EntryTime:   t.EntryTime,
			ExitTime:    t.ExitTime,
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			InitialStop: t.InitialStop,
			FinalStop:   t.FinalStop,
			Quantity:    t.Quantity,
			GrossPnL:    t.GrossPnL,
			Costs:       t.Costs,
			NetPnL:      t.NetPnL,
			RMultiple:   t.RMultiple,
			ExitReason:  string(t.ExitReason),
			BarsHeld:    t.BarsHeld,
			MaxAdverse:  t.MaxAdverse,
			MaxProfit:   t.MaxProfit,
		}
	}
	return records
}

// truncateToMonth returns midnight UTC on the first day of t's month.
func truncateToMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// normalizeDirection lower-cases the direction ("long" / "short").
func normalizeDirection(d types.Direction) string {
	return strings.ToLower(string(d))
}

// mean computes the arithmetic mean of a float64 slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev computes the population standard deviation of a float64 slice.
// Returns 0 for fewer than 2 values.
func stddev(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}
