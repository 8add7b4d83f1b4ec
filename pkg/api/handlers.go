// Package api provides HTTP handlers for the batch backtest monitoring API.
//
// Endpoints:
//
//	GET /api/v1/status                - Service health check
//	GET /api/v1/runs                  - List all runs (with optional filters)
//	GET /api/v1/runs/{run_id}         - Detailed run status
//	GET /api/v1/runs/{run_id}/summary - High-level run summary
//	GET /metrics                      - Prometheus metrics
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/algomatic/regime-backtest/pkg/runtracker"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Server holds dependencies for the API handlers.
type Server struct {
	Tracker *runtracker.Tracker
	// Gatherer backs /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
	// StoreConnected and CacheConnected are reported by /status.
	StoreConnected bool
	CacheConnected bool
	Logger         *slog.Logger
}

// NewServer creates a new API server.
func NewServer(tracker *runtracker.Tracker, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Tracker:  tracker,
		Gatherer: gatherer,
		Logger:   logger,
	}
}

// RegisterRoutes registers all API routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", s.HandleStatus)
	mux.HandleFunc("GET /api/v1/runs", s.HandleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{run_id}/summary", s.HandleGetRunSummary)
	mux.HandleFunc("GET /api/v1/runs/{run_id}", s.HandleGetRun)
	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

type statusResponse struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Version        string  `json:"version"`
	StoreConnected bool    `json:"store_connected"`
	CacheConnected bool    `json:"cache_connected"`
}

type runListItem struct {
	RunID                     string  `json:"run_id"`
	Strategy                  string  `json:"strategy"`
	Timeframe                 string  `json:"timeframe"`
	StartTime                 string  `json:"start_time"`
	EndTime                   *string `json:"end_time"`
	Status                    string  `json:"status"`
	TotalSymbols              int     `json:"total_symbols"`
	CompletedSymbols          int     `json:"completed_symbols"`
	PendingSymbols            int     `json:"pending_symbols"`
	FailedSymbols             int     `json:"failed_symbols"`
	ProgressPercent           int     `json:"progress_percent"`
	ElapsedTimeSeconds        float64 `json:"elapsed_time_seconds"`
	EstimatedRemainingSeconds float64 `json:"estimated_remaining_seconds"`
}

type runListResponse struct {
	Runs      []runListItem `json:"runs"`
	TotalRuns int           `json:"total_runs"`
}

type symbolItem struct {
	Symbol           string  `json:"symbol"`
	Status           string  `json:"status"`
	StartTime        *string `json:"start_time"`
	EndTime          *string `json:"end_time"`
	DurationSecs     float64 `json:"duration_seconds"`
	Trades           int     `json:"trades"`
	WinRatePct       float64 `json:"win_rate_pct"`
	NetPnL           float64 `json:"net_pnl"`
	MonthlyReturnPct float64 `json:"monthly_return_pct"`
	Cached           bool    `json:"cached"`
	ErrorMessage     *string `json:"error_message"`
}

type runDetailResponse struct {
	runListItem
	Symbols []symbolItem `json:"symbols"`
}

type countDetail struct {
	Count   int `json:"count"`
	Percent int `json:"percent"`
}

type runSummaryResponse struct {
	RunID                     string      `json:"run_id"`
	Strategy                  string      `json:"strategy"`
	Timeframe                 string      `json:"timeframe"`
	TotalSymbols              int         `json:"total_symbols"`
	Completed                 countDetail `json:"completed"`
	Running                   countDetail `json:"running"`
	Pending                   countDetail `json:"pending"`
	Failed                    countDetail `json:"failed"`
	TotalTrades               int         `json:"total_trades"`
	AvgTradesPerSymbol        float64     `json:"avg_trades_per_symbol"`
	AvgMonthlyReturnPct       float64     `json:"avg_monthly_return_pct"`
	AvgWinRatePct             float64     `json:"avg_win_rate_pct"`
	ElapsedTimeSeconds        float64     `json:"elapsed_time_seconds"`
	EstimatedTotalTimeSeconds float64     `json:"estimated_total_time_seconds"`
	ETACompletion             *string     `json:"eta_completion"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// HandleStatus returns overall service health and readiness.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:         "healthy",
		UptimeSeconds:  s.Tracker.UptimeSeconds(),
		Version:        s.Tracker.Version(),
		StoreConnected: s.StoreConnected,
		CacheConnected: s.CacheConnected,
	})
}

// HandleListRuns returns all batch runs with summary statistics.
func (s *Server) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs := s.Tracker.ListRuns(q.Get("status"), q.Get("strategy"), limit)
	items := make([]runListItem, len(runs))
	for i, run := range runs {
		items[i] = buildRunListItem(run)
	}

	writeJSON(w, http.StatusOK, runListResponse{
		Runs:      items,
		TotalRuns: len(items),
	})
}

// HandleGetRun returns detailed status of a run including per-symbol state.
func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}

	items := make([]symbolItem, len(run.Symbols))
	for i, st := range run.Symbols {
		items[i] = buildSymbolItem(st)
	}

	writeJSON(w, http.StatusOK, runDetailResponse{
		runListItem: buildRunListItem(run),
		Symbols:     items,
	})
}

// HandleGetRunSummary returns high-level stats for a run, suitable for
// dashboards.
func (s *Server) HandleGetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}

	completed, running, pending, failed := run.Counts()
	total := run.TotalSymbols()
	totalTrades := run.TotalTrades()

	var avgTrades, avgMonthly, avgWin float64
	if completed > 0 {
		for _, st := range run.Symbols {
			if st.Status != runtracker.SymbolCompleted {
				continue
			}
			avgMonthly += st.Result.MonthlyReturnPct
			avgWin += st.Result.WinRatePct
		}
		n := float64(completed)
		avgTrades = float64(totalTrades) / n
		avgMonthly /= n
		avgWin /= n
	}

	elapsed := run.ElapsedSeconds()
	estimatedTotal := elapsed
	if done := completed + failed; done > 0 && total > 0 {
		estimatedTotal = (elapsed / float64(done)) * float64(total)
	}

	pct := func(count int) int {
		if total == 0 {
			return 0
		}
		return count * 100 / total
	}

	writeJSON(w, http.StatusOK, runSummaryResponse{
		RunID:                     run.RunID,
		Strategy:                  run.Strategy,
		Timeframe:                 run.Timeframe,
		TotalSymbols:              total,
		Completed:                 countDetail{Count: completed, Percent: pct(completed)},
		Running:                   countDetail{Count: running, Percent: pct(running)},
		Pending:                   countDetail{Count: pending, Percent: pct(pending)},
		Failed:                    countDetail{Count: failed, Percent: pct(failed)},
		TotalTrades:               totalTrades,
		AvgTradesPerSymbol:        avgTrades,
		AvgMonthlyReturnPct:       avgMonthly,
		AvgWinRatePct:             avgWin,
		ElapsedTimeSeconds:        elapsed,
		EstimatedTotalTimeSeconds: estimatedTotal,
		ETACompletion:             formatOptionalTime(run.ETACompletion()),
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*runtracker.BatchRun, bool) {
	runID := r.PathValue("run_id")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "run_id is required"})
		return nil, false
	}
	run := s.Tracker.GetRun(runID)
	if run == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

func buildRunListItem(run *runtracker.BatchRun) runListItem {
	completed, _, pending, failed := run.Counts()
	return runListItem{
		RunID:                     run.RunID,
		Strategy:                  run.Strategy,
		Timeframe:                 run.Timeframe,
		StartTime:                 run.StartTime.UTC().Format(timeLayout),
		EndTime:                   formatOptionalTime(run.EndTime),
		Status:                    string(run.Status),
		TotalSymbols:              run.TotalSymbols(),
		CompletedSymbols:          completed,
		PendingSymbols:            pending,
		FailedSymbols:             failed,
		ProgressPercent:           run.ProgressPercent(),
		ElapsedTimeSeconds:        run.ElapsedSeconds(),
		EstimatedRemainingSeconds: run.EstimatedRemainingSeconds(),
	}
}

func buildSymbolItem(st runtracker.SymbolState) symbolItem {
	item := symbolItem{
		Symbol:           st.Symbol,
		Status:           string(st.Status),
		StartTime:        formatOptionalTime(st.StartTime),
		EndTime:          formatOptionalTime(st.EndTime),
		DurationSecs:     st.DurationSecs,
		Trades:           st.Result.Trades,
		WinRatePct:       st.Result.WinRatePct,
		NetPnL:           st.Result.NetPnL,
		MonthlyReturnPct: st.Result.MonthlyReturnPct,
		Cached:           st.Result.Cached,
	}
	if st.ErrorMessage != "" {
		msg := st.ErrorMessage
		item.ErrorMessage = &msg
	}
	return item
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}
