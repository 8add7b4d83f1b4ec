package engine

import (
	"time"

	"github.com/algomatic/regime-backtest/pkg/equity"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// candlesPerMonth converts a candle count into months for the monthly return.
const candlesPerMonth = 20

// Report is the result of one backtest run. All percentages are in percent.
type Report struct {
	Strategy string `json:"strategy"`

	Candles        int       `json:"candles"`
	Evaluated      int       `json:"evaluated"`
	FirstTimestamp time.Time `json:"first_timestamp"`
	LastTimestamp  time.Time `json:"last_timestamp"`

	Trades     int     `json:"trades"`
	Wins       int     `json:"wins"`
	WinRatePct float64 `json:"win_rate_pct"`

	GrossPnL float64 `json:"gross_pnl"`
	Costs    float64 `json:"costs"`
	NetPnL   float64 `json:"net_pnl"`

	InitialCapital   float64 `json:"initial_capital"`
	FinalEquity      float64 `json:"final_equity"`
	PeakEquity       float64 `json:"peak_equity"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	MonthlyReturnPct float64 `json:"monthly_return_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	BuyHoldPct       float64 `json:"buy_hold_pct"`

	AvgR   float64 `json:"avg_r"`
	TotalR float64 `json:"total_r"`

	RegimeDays   map[regime.Label]int     `json:"regime_days"`
	RegimeTrades map[regime.Label]int     `json:"regime_trades"`
	Rejections   map[string]int           `json:"rejections"`
	ExitReasons  map[types.ExitReason]int `json:"exit_reasons"`

	ClosedTrades []types.ClosedTrade `json:"closed_trades"`
}

func newReport(name string, candles []types.Candle, capital float64) *Report {
	first, last := candles[0], candles[len(candles)-1]
	return &Report{
		Strategy:       name,
		Candles:        len(candles),
		FirstTimestamp: first.Timestamp,
		LastTimestamp:  last.Timestamp,
		InitialCapital: capital,
		BuyHoldPct:     (last.Close - first.Close) / first.Close * 100,
		RegimeDays:     regimeCounts(),
		RegimeTrades:   regimeCounts(),
		Rejections:     make(map[string]int),
		ExitReasons:    make(map[types.ExitReason]int),
		ClosedTrades:   make([]types.ClosedTrade, 0, 16),
	}
}

func (r *Report) finish(t *equity.Tracker) {
	r.Trades = t.Trades
	r.Wins = t.Wins
	r.WinRatePct = t.WinRate() * 100
	r.GrossPnL = t.Gross
	r.Costs = t.TotalCosts
	r.NetPnL = t.Net
	r.FinalEquity = t.Equity
	r.PeakEquity = t.Peak
	r.TotalReturnPct = t.ReturnPct()
	r.MonthlyReturnPct = r.TotalReturnPct / (float64(r.Candles) / candlesPerMonth)
	r.MaxDrawdownPct = t.MaxDrawdown * 100
	r.AvgR = t.AvgR()
	r.TotalR = t.TotalR
}

// Months returns the number of candle-months the report covers.
func (r *Report) Months() float64 {
	return float64(r.Candles) / candlesPerMonth
}
