// Package batch runs one strategy over many symbols in parallel.
//
// Every symbol gets its own candle slice and its own equity account; the
// only shared state is the run tracker, the metrics and the optional report
// cache and store. A failing symbol is recorded and never cancels the rest.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/algomatic/regime-backtest/pkg/cache"
	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/engine"
	"github.com/algomatic/regime-backtest/pkg/metrics"
	"github.com/algomatic/regime-backtest/pkg/persistence"
	"github.com/algomatic/regime-backtest/pkg/runtracker"
	"github.com/algomatic/regime-backtest/pkg/strategy"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// LoadFunc produces the candle series for one symbol.
type LoadFunc func(ctx context.Context) ([]types.Candle, error)

// Job is one symbol to backtest.
type Job struct {
	Symbol string
	Load   LoadFunc
}

// Result is the outcome of one Job. Report is set whenever the backtest
// itself succeeded, even if persisting it later failed.
type Result struct {
	Symbol   string
	Report   *engine.Report
	ReportID int64
	Cached   bool
	Elapsed  time.Duration
	Err      error
}

// ReportCache is the subset of cache.Cache used by the runner.
type ReportCache interface {
	Get(ctx context.Context, key string) (*engine.Report, bool, error)
	Set(ctx context.Context, key string, rep *engine.Report) error
}

// Runner executes jobs with bounded parallelism.
type Runner struct {
	cfg       config.Strategy
	strategy  strategy.Strategy
	engine    *engine.Engine
	workers   int
	timeframe string

	tracker *runtracker.Tracker
	metrics *metrics.Metrics
	cache   ReportCache
	store   persistence.Persister
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTracker reports per-symbol progress to t.
func WithTracker(t *runtracker.Tracker) Option { return func(r *Runner) { r.tracker = t } }

// WithMetrics records run outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithCache consults c before running a symbol and fills it afterwards.
func WithCache(c ReportCache) Option { return func(r *Runner) { r.cache = c } }

// WithStore saves every finished report through p.
func WithStore(p persistence.Persister) Option { return func(r *Runner) { r.store = p } }

// WithTimeframe labels the run in the tracker.
func WithTimeframe(tf string) Option { return func(r *Runner) { r.timeframe = tf } }

// NewRunner creates a Runner. workers < 1 is treated as 1.
func NewRunner(cfg config.Strategy, strat strategy.Strategy, workers int, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		cfg:       cfg,
		strategy:  strat,
		engine:    engine.New(cfg, strat, logger),
		workers:   workers,
		timeframe: "1Day",
		logger:    logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run backtests every job and returns the run ID and results in job order.
// Without a tracker the run ID is a fresh UUID.
// The returned error is non-nil only if ctx was cancelled.
func (r *Runner) Run(ctx context.Context, jobs []Job) (string, []Result, error) {
	symbols := make([]string, len(jobs))
	for i, j := range jobs {
		symbols[i] = j.Symbol
	}

	var runID string
	if r.tracker != nil {
		runID = r.tracker.StartRun(r.strategy.Name, r.timeframe, symbols)
	} else {
		runID = uuid.NewString()
	}

	results := make([]Result, len(jobs))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runOne(ctx, runID, job)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.Info("Batch finished",
		"run_id", runID,
		"strategy", r.strategy.Name,
		"symbols", len(jobs),
		"failed", failed,
		"elapsed", time.Since(start),
	)
	return runID, results, ctx.Err()
}

func (r *Runner) runOne(ctx context.Context, runID string, job Job) (res Result) {
	res.Symbol = job.Symbol
	start := time.Now()

	if r.tracker != nil {
		r.tracker.MarkSymbolRunning(runID, job.Symbol)
	}
	if r.metrics != nil {
		r.metrics.InFlight.Inc()
		defer r.metrics.InFlight.Dec()
	}

	defer func() {
		res.Elapsed = time.Since(start)
		r.record(runID, &res)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	candles, err := job.Load(ctx)
	if err != nil {
		res.Err = fmt.Errorf("loading candles: %w", err)
		return res
	}

	key := r.cacheKey(job.Symbol, candles)
	if key != "" {
		rep, found, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("Report cache read failed", "symbol", job.Symbol, "error", err)
		}
		if r.metrics != nil && err == nil {
			r.metrics.ObserveCache(r.strategy.Name, found)
		}
		if found {
			res.Report, res.Cached = rep, true
		}
	}

	if res.Report == nil {
		rep, err := r.engine.Run(candles)
		if err != nil {
			res.Err = err
			return res
		}
		res.Report = rep
		if key != "" {
			if err := r.cache.Set(ctx, key, rep); err != nil {
				r.logger.Warn("Report cache write failed", "symbol", job.Symbol, "error", err)
			}
		}
	}

	if r.store != nil {
		id, err := persistence.Persist(ctx, r.store, runID, job.Symbol, res.Report, r.cfg)
		if err != nil {
			res.Err = err
			return res
		}
		res.ReportID = id
	}
	return res
}

// cacheKey returns "" when caching is off or the key cannot be built.
func (r *Runner) cacheKey(symbol string, candles []types.Candle) string {
	if r.cache == nil {
		return ""
	}
	key, err := cache.Key(r.strategy.Name, r.cfg, candles)
	if err != nil {
		r.logger.Warn("Cannot build cache key", "symbol", symbol, "error", err)
		return ""
	}
	return key
}

func (r *Runner) record(runID string, res *Result) {
	if res.Err != nil {
		r.logger.Warn("Symbol backtest failed", "symbol", res.Symbol, "error", res.Err)
		if r.metrics != nil {
			r.metrics.ObserveFailure(r.strategy.Name)
		}
		if r.tracker != nil {
			r.tracker.MarkSymbolFailed(runID, res.Symbol, res.Err.Error())
		}
		return
	}

	rep := res.Report
	if r.metrics != nil && !res.Cached {
		r.metrics.ObserveReport(r.strategy.Name, rep, res.Elapsed)
	}
	if r.tracker != nil {
		r.tracker.MarkSymbolCompleted(runID, res.Symbol, runtracker.SymbolResult{
			Trades:           rep.Trades,
			WinRatePct:       rep.WinRatePct,
			NetPnL:           rep.NetPnL,
			MonthlyReturnPct: rep.MonthlyReturnPct,
			Cached:           res.Cached,
			ReportID:         res.ReportID,
		})
	}
	r.logger.Info("Symbol backtest complete",
		"symbol", res.Symbol,
		"trades", rep.Trades,
		"monthly_return_pct", rep.MonthlyReturnPct,
		"cached", res.Cached,
	)
}

// Summary aggregates successful results across symbols.
type Summary struct {
	Symbols             int     `json:"symbols"`
	Succeeded           int     `json:"succeeded"`
	Failed              int     `json:"failed"`
	TotalTrades         int     `json:"total_trades"`
	AvgTrades           float64 `json:"avg_trades"`
	AvgWinRatePct       float64 `json:"avg_win_rate_pct"`
	AvgMonthlyReturnPct float64 `json:"avg_monthly_return_pct"`
}

// Summarize averages the reports of successful results.
func Summarize(results []Result) Summary {
	s := Summary{Symbols: len(results)}
	for _, res := range results {
		if res.Err != nil || res.Report == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.TotalTrades += res.Report.Trades
		s.AvgWinRatePct += res.Report.WinRatePct
		s.AvgMonthlyReturnPct += res.Report.MonthlyReturnPct
	}
	if s.Succeeded > 0 {
		n := float64(s.Succeeded)
		s.AvgTrades = float64(s.TotalTrades) / n
		s.AvgWinRatePct /= n
		s.AvgMonthlyReturnPct /= n
	}
	return s
}
