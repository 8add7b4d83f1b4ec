// Package runtracker provides in-memory tracking of batch backtest progress.
// The monitoring API reads it so dashboards can show live per-symbol state,
// progress and ETA while a multi-symbol run is in flight.
package runtracker

import (
	"time"
)

// RunStatus represents the overall status of a batch run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// SymbolStatus represents the state of one symbol within a run.
type SymbolStatus string

const (
	SymbolPending   SymbolStatus = "pending"
	SymbolRunning   SymbolStatus = "running"
	SymbolCompleted SymbolStatus = "completed"
	SymbolFailed    SymbolStatus = "failed"
)

// SymbolResult is the headline of a finished symbol backtest.
type SymbolResult struct {
	Trades           int     `json:"trades"`
	WinRatePct       float64 `json:"win_rate_pct"`
	NetPnL           float64 `json:"net_pnl"`
	MonthlyReturnPct float64 `json:"monthly_return_pct"`
	Cached           bool    `json:"cached"`
	ReportID         int64   `json:"report_id,omitempty"`
}

// SymbolState tracks one symbol's backtest within a run.
type SymbolState struct {
	Symbol       string       `json:"symbol"`
	Status       SymbolStatus `json:"status"`
	StartTime    *time.Time   `json:"start_time"`
	EndTime      *time.Time   `json:"end_time"`
	DurationSecs float64      `json:"duration_seconds"`
	Result       SymbolResult `json:"result"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// BatchRun tracks one strategy applied to a set of symbols.
type BatchRun struct {
	RunID     string        `json:"run_id"`
	Strategy  string        `json:"strategy"`
	Timeframe string        `json:"timeframe"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time"`
	Status    RunStatus     `json:"status"`
	Symbols   []SymbolState `json:"symbols"`
}

// Counts returns the number of completed, running, pending, and failed
// symbols in this run.
func (r *BatchRun) Counts() (completed, running, pending, failed int) {
	for i := range r.Symbols {
		switch r.Symbols[i].Status {
		case SymbolCompleted:
			completed++
		case SymbolRunning:
			running++
		case SymbolPending:
			pending++
		case SymbolFailed:
			failed++
		}
	}
	return
}

// TotalSymbols returns the number of symbols in this run.
func (r *BatchRun) TotalSymbols() int {
	return len(r.Symbols)
}

// TotalTrades sums the trades of every completed symbol.
func (r *BatchRun) TotalTrades() int {
	total := 0
	for i := range r.Symbols {
		total += r.Symbols[i].Result.Trades
	}
	return total
}

// ProgressPercent returns the share of finished symbols (0-100). Failed
// symbols count as finished.
func (r *BatchRun) ProgressPercent() int {
	total := r.TotalSymbols()
	if total == 0 {
		return 0
	}
	completed, _, _, failed := r.Counts()
	return (completed + failed) * 100 / total
}

// ElapsedSeconds returns the number of seconds elapsed since the run started.
func (r *BatchRun) ElapsedSeconds() float64 {
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime).Seconds()
	}
	return time.Since(r.StartTime).Seconds()
}

// EstimatedRemainingSeconds extrapolates the average time per finished
// symbol over the symbols still pending or running.
func (r *BatchRun) EstimatedRemainingSeconds() float64 {
	completed, running, pending, failed := r.Counts()
	done := completed + failed
	if done == 0 {
		return 0
	}

	avgPerSymbol := r.ElapsedSeconds() / float64(done)
	return avgPerSymbol * float64(pending+running)
}

// ETACompletion returns the estimated time of completion, or nil if not
// calculable.
func (r *BatchRun) ETACompletion() *time.Time {
	remaining := r.EstimatedRemainingSeconds()
	if remaining <= 0 {
		return nil
	}
	eta := time.Now().Add(time.Duration(remaining * float64(time.Second)))
	return &eta
}

func (r *BatchRun) clone() *BatchRun {
	cp := *r
	cp.Symbols = make([]SymbolState, len(r.Symbols))
	copy(cp.Symbols, r.Symbols)
	return &cp
}
