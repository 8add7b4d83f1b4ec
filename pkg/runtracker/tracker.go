package runtracker

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker provides thread-safe management of batch run state.
// It is the central store queried by the monitoring API endpoints.
type Tracker struct {
	mu     sync.RWMutex
	runs   map[string]*BatchRun
	logger *slog.Logger

	// startedAt is used by the status endpoint to report uptime.
	startedAt time.Time
	version   string
}

// NewTracker creates a new run tracker.
func NewTracker(logger *slog.Logger, version string) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Tracker{
		runs:      make(map[string]*BatchRun),
		logger:    logger,
		startedAt: time.Now(),
		version:   version,
	}
}

// StartedAt returns the time the tracker was created.
func (t *Tracker) StartedAt() time.Time {
	return t.startedAt
}

// Version returns the version string.
func (t *Tracker) Version() string {
	return t.version
}

// UptimeSeconds returns seconds since the tracker was created.
func (t *Tracker) UptimeSeconds() float64 {
	return time.Since(t.startedAt).Seconds()
}

// StartRun registers a run with every symbol pending and returns its ID.
func (t *Tracker) StartRun(strategy, timeframe string, symbols []string) string {
	runID := uuid.NewString()

	states := make([]SymbolState, len(symbols))
	for i, s := range symbols {
		states[i] = SymbolState{Symbol: s, Status: SymbolPending}
	}

	run := &BatchRun{
		RunID:     runID,
		Strategy:  strategy,
		Timeframe: timeframe,
		StartTime: time.Now(),
		Status:    StatusRunning,
		Symbols:   states,
	}

	t.mu.Lock()
	t.runs[runID] = run
	t.mu.Unlock()

	t.logger.Info("Run started",
		"run_id", runID,
		"strategy", strategy,
		"timeframe", timeframe,
		"symbols", len(symbols),
	)
	return runID
}

// update applies fn to the named symbol under the write lock.
func (t *Tracker) update(op, runID, symbol string, fn func(run *BatchRun, s *SymbolState)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[runID]
	if !ok {
		t.logger.Warn(op+": run not found", "run_id", runID)
		return
	}
	for i := range run.Symbols {
		if run.Symbols[i].Symbol == symbol {
			fn(run, &run.Symbols[i])
			return
		}
	}
	t.logger.Warn(op+": symbol not found in run", "run_id", runID, "symbol", symbol)
}

// MarkSymbolRunning marks a symbol as running.
func (t *Tracker) MarkSymbolRunning(runID, symbol string) {
	t.update("MarkSymbolRunning", runID, symbol, func(_ *BatchRun, s *SymbolState) {
		now := time.Now()
		s.Status = SymbolRunning
		s.StartTime = &now
		t.logger.Debug("Symbol marked running", "run_id", runID, "symbol", symbol)
	})
}

// MarkSymbolCompleted records a finished symbol and its headline result.
func (t *Tracker) MarkSymbolCompleted(runID, symbol string, res SymbolResult) {
	t.update("MarkSymbolCompleted", runID, symbol, func(run *BatchRun, s *SymbolState) {
		finish(s, SymbolCompleted)
		s.Result = res
		t.logger.Debug("Symbol completed",
			"run_id", runID,
			"symbol", symbol,
			"trades", res.Trades,
			"cached", res.Cached,
			"duration_secs", s.DurationSecs,
		)
		t.maybeFinishRunLocked(run)
	})
}

// MarkSymbolFailed marks a symbol as failed with an error message.
func (t *Tracker) MarkSymbolFailed(runID, symbol, errMsg string) {
	t.update("MarkSymbolFailed", runID, symbol, func(run *BatchRun, s *SymbolState) {
		finish(s, SymbolFailed)
		s.ErrorMessage = errMsg
		t.logger.Warn("Symbol failed", "run_id", runID, "symbol", symbol, "error", errMsg)
		t.maybeFinishRunLocked(run)
	})
}

func finish(s *SymbolState, status SymbolStatus) {
	now := time.Now()
	s.Status = status
	s.EndTime = &now
	if s.StartTime != nil {
		s.DurationSecs = now.Sub(*s.StartTime).Seconds()
	}
}

// maybeFinishRunLocked finalises the run once no symbol is pending or
// running. Must be called with t.mu held.
func (t *Tracker) maybeFinishRunLocked(run *BatchRun) {
	completed, running, pending, failed := run.Counts()
	if running > 0 || pending > 0 {
		return
	}
	now := time.Now()
	run.EndTime = &now
	if failed > 0 && completed == 0 {
		run.Status = StatusFailed
	} else {
		run.Status = StatusCompleted
	}
	t.logger.Info("Run finished",
		"run_id", run.RunID,
		"status", run.Status,
		"completed", completed,
		"failed", failed,
		"elapsed_secs", run.ElapsedSeconds(),
	)
}

// GetRun returns a snapshot of the run with the given ID, or nil if not found.
func (t *Tracker) GetRun(runID string) *BatchRun {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[runID]
	if !ok {
		return nil
	}
	return run.clone()
}

// ListRuns returns snapshots of all runs, newest first. Empty filters match
// everything; limit <= 0 means no limit.
func (t *Tracker) ListRuns(statusFilter, strategyFilter string, limit int) []*BatchRun {
	t.mu.RLock()
	result := make([]*BatchRun, 0, len(t.runs))
	for _, run := range t.runs {
		if statusFilter != "" && string(run.Status) != statusFilter {
			continue
		}
		if strategyFilter != "" && run.Strategy != strategyFilter {
			continue
		}
		result = append(result, run.clone())
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
