package runtracker

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTracker(t *testing.T) {
	tracker := NewTracker(nil, "1.0.0")
	if tracker == nil {
		t.Fatal("expected non-nil tracker")
	}
	if tracker.Version() != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", tracker.Version())
	}
	if tracker.UptimeSeconds() < 0 {
		t.Error("expected non-negative uptime")
	}
}

func TestNewTrackerDefaults(t *testing.T) {
	tracker := NewTracker(nil, "")
	if tracker.Version() != "dev" {
		t.Errorf("expected default version 'dev', got %q", tracker.Version())
	}
}

func TestStartRun(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"RELIANCE", "TCS", "INFY"})

	if _, err := uuid.Parse(runID); err != nil {
		t.Fatalf("run ID %q is not a UUID: %v", runID, err)
	}

	run := tracker.GetRun(runID)
	if run == nil {
		t.Fatal("expected to find run by ID")
	}
	if run.Strategy != "regime" || run.Timeframe != "1Day" {
		t.Errorf("unexpected run header: %+v", run)
	}
	if run.Status != StatusRunning {
		t.Errorf("expected status running, got %q", run.Status)
	}
	if run.TotalSymbols() != 3 {
		t.Errorf("expected 3 symbols, got %d", run.TotalSymbols())
	}

	completed, running, pending, failed := run.Counts()
	if completed != 0 || running != 0 || pending != 3 || failed != 0 {
		t.Errorf("expected (0,0,3,0), got (%d,%d,%d,%d)", completed, running, pending, failed)
	}
}

func TestMarkSymbolRunning(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"RELIANCE", "TCS"})

	tracker.MarkSymbolRunning(runID, "RELIANCE")

	run := tracker.GetRun(runID)
	completed, running, pending, failed := run.Counts()
	if completed != 0 || running != 1 || pending != 1 || failed != 0 {
		t.Errorf("expected (0,1,1,0), got (%d,%d,%d,%d)", completed, running, pending, failed)
	}
	if s := run.Symbols[0]; s.StartTime == nil || s.Status != SymbolRunning {
		t.Errorf("unexpected state: %+v", s)
	}
}

func TestMarkSymbolCompleted(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"RELIANCE", "TCS"})

	tracker.MarkSymbolRunning(runID, "TCS")
	tracker.MarkSymbolCompleted(runID, "TCS", SymbolResult{Trades: 42, NetPnL: 1200, Cached: true})

	run := tracker.GetRun(runID)
	completed, running, pending, failed := run.Counts()
	if completed != 1 || running != 0 || pending != 1 || failed != 0 {
		t.Errorf("expected (1,0,1,0), got (%d,%d,%d,%d)", completed, running, pending, failed)
	}

	s := run.Symbols[1]
	if s.Result.Trades != 42 || s.Result.NetPnL != 1200 || !s.Result.Cached {
		t.Errorf("result not recorded: %+v", s.Result)
	}
	if s.EndTime == nil {
		t.Error("expected end time to be set")
	}
	if s.DurationSecs < 0 {
		t.Errorf("negative duration %f", s.DurationSecs)
	}
}

func TestMarkSymbolFailed(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"RELIANCE"})

	tracker.MarkSymbolRunning(runID, "RELIANCE")
	tracker.MarkSymbolFailed(runID, "RELIANCE", "candle 12: unsorted timestamps")

	run := tracker.GetRun(runID)
	s := run.Symbols[0]
	if s.Status != SymbolFailed || s.ErrorMessage != "candle 12: unsorted timestamps" {
		t.Errorf("unexpected state: %+v", s)
	}
}

func TestRunAutoCompletes(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"A", "B"})

	tracker.MarkSymbolRunning(runID, "A")
	tracker.MarkSymbolCompleted(runID, "A", SymbolResult{Trades: 10})
	tracker.MarkSymbolRunning(runID, "B")
	tracker.MarkSymbolCompleted(runID, "B", SymbolResult{Trades: 20})

	run := tracker.GetRun(runID)
	if run.Status != StatusCompleted {
		t.Errorf("expected run status completed, got %q", run.Status)
	}
	if run.EndTime == nil {
		t.Error("expected end time to be set when run completes")
	}
	if run.TotalTrades() != 30 {
		t.Errorf("expected 30 total trades, got %d", run.TotalTrades())
	}
}

func TestRunAutoFailsWhenAllFailed(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"A"})

	tracker.MarkSymbolRunning(runID, "A")
	tracker.MarkSymbolFailed(runID, "A", "oops")

	if run := tracker.GetRun(runID); run.Status != StatusFailed {
		t.Errorf("expected run status failed when all symbols fail, got %q", run.Status)
	}
}

func TestRunCompletesWhenSomeFailed(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"A", "B"})

	tracker.MarkSymbolCompleted(runID, "A", SymbolResult{})
	tracker.MarkSymbolFailed(runID, "B", "error")

	if run := tracker.GetRun(runID); run.Status != StatusCompleted {
		t.Errorf("expected run status completed when some succeed, got %q", run.Status)
	}
}

func TestProgressPercent(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"A", "B", "C", "D"})

	if p := tracker.GetRun(runID).ProgressPercent(); p != 0 {
		t.Errorf("expected 0%% progress, got %d%%", p)
	}

	tracker.MarkSymbolCompleted(runID, "A", SymbolResult{})
	if p := tracker.GetRun(runID).ProgressPercent(); p != 25 {
		t.Errorf("expected 25%% progress, got %d%%", p)
	}

	// failures count towards progress
	tracker.MarkSymbolFailed(runID, "B", "bad file")
	if p := tracker.GetRun(runID).ProgressPercent(); p != 50 {
		t.Errorf("expected 50%% progress, got %d%%", p)
	}
}

func TestEstimatedRemainingSeconds(t *testing.T) {
	run := &BatchRun{
		StartTime: time.Now().Add(-10 * time.Second),
		Status:    StatusRunning,
		Symbols: []SymbolState{
			{Symbol: "A", Status: SymbolCompleted},
			{Symbol: "B", Status: SymbolFailed},
			{Symbol: "C", Status: SymbolRunning},
			{Symbol: "D", Status: SymbolPending},
		},
	}

	// 2 finished in ~10 seconds = ~5s each, 2 remaining = ~10s estimated
	remaining := run.EstimatedRemainingSeconds()
	if remaining < 8 || remaining > 12 {
		t.Errorf("expected estimated remaining ~10s, got %.1f", remaining)
	}
}

func TestEstimatedRemainingSecondsZeroFinished(t *testing.T) {
	run := &BatchRun{
		StartTime: time.Now().Add(-5 * time.Second),
		Symbols:   []SymbolState{{Symbol: "A", Status: SymbolPending}},
	}
	if remaining := run.EstimatedRemainingSeconds(); remaining != 0 {
		t.Errorf("expected 0 remaining when nothing finished, got %.1f", remaining)
	}
}

func TestETACompletion(t *testing.T) {
	run := &BatchRun{
		StartTime: time.Now().Add(-10 * time.Second),
		Status:    StatusRunning,
		Symbols: []SymbolState{
			{Symbol: "A", Status: SymbolCompleted},
			{Symbol: "B", Status: SymbolPending},
		},
	}

	eta := run.ETACompletion()
	if eta == nil {
		t.Fatal("expected non-nil ETA")
	}
	if eta.Before(time.Now()) {
		t.Error("expected ETA to be in the future")
	}

	now := time.Now()
	done := &BatchRun{
		StartTime: now.Add(-10 * time.Second),
		EndTime:   &now,
		Status:    StatusCompleted,
		Symbols:   []SymbolState{{Symbol: "A", Status: SymbolCompleted}},
	}
	if done.ETACompletion() != nil {
		t.Error("expected nil ETA when all symbols are done")
	}
}

func TestListRuns(t *testing.T) {
	tracker := NewTracker(nil, "test")

	first := tracker.StartRun("regime", "1Day", []string{"A"})
	time.Sleep(2 * time.Millisecond)
	tracker.StartRun("crossover", "1Day", []string{"A"})
	time.Sleep(2 * time.Millisecond)
	last := tracker.StartRun("regime", "1Day", []string{"A"})
	tracker.MarkSymbolCompleted(first, "A", SymbolResult{})

	runs := tracker.ListRuns("", "", 0)
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != last {
		t.Errorf("expected newest run first, got %s", runs[0].RunID)
	}

	if runs = tracker.ListRuns("", "regime", 0); len(runs) != 2 {
		t.Errorf("expected 2 regime runs, got %d", len(runs))
	}
	if runs = tracker.ListRuns("running", "", 0); len(runs) != 2 {
		t.Errorf("expected 2 running runs, got %d", len(runs))
	}
	if runs = tracker.ListRuns("completed", "regime", 0); len(runs) != 1 || runs[0].RunID != first {
		t.Errorf("expected the first run only, got %d runs", len(runs))
	}
	if runs = tracker.ListRuns("", "", 1); len(runs) != 1 {
		t.Errorf("expected 1 run with limit=1, got %d", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	if run := NewTracker(nil, "test").GetRun("nonexistent"); run != nil {
		t.Error("expected nil for non-existent run")
	}
}

func TestGetRunReturnsCopy(t *testing.T) {
	tracker := NewTracker(nil, "test")
	runID := tracker.StartRun("regime", "1Day", []string{"A"})

	run1 := tracker.GetRun(runID)
	run2 := tracker.GetRun(runID)

	run1.Strategy = "MODIFIED"
	run1.Symbols[0].Status = SymbolFailed
	if run2.Strategy == "MODIFIED" || run2.Symbols[0].Status == SymbolFailed {
		t.Error("GetRun should return independent copies")
	}
}

func TestUnknownRunOrSymbol(t *testing.T) {
	tracker := NewTracker(nil, "test")
	// Should not panic
	tracker.MarkSymbolRunning("nonexistent", "A")

	runID := tracker.StartRun("regime", "1Day", []string{"A"})
	tracker.MarkSymbolCompleted(runID, "ZZZ", SymbolResult{})
	if run := tracker.GetRun(runID); run.Status != StatusRunning {
		t.Errorf("unknown symbol must not finish the run, got %q", run.Status)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tracker := NewTracker(nil, "test")
	symbols := make([]string, 50)
	for i := range symbols {
		symbols[i] = string(rune('A'+i%26)) + string(rune('a'+i/26))
	}
	runID := tracker.StartRun("regime", "1Day", symbols)

	done := make(chan struct{})
	for _, s := range symbols {
		go func(s string) {
			tracker.MarkSymbolRunning(runID, s)
			tracker.MarkSymbolCompleted(runID, s, SymbolResult{Trades: 1})
			done <- struct{}{}
		}(s)
	}
	for range symbols {
		<-done
	}

	run := tracker.GetRun(runID)
	if run.Status != StatusCompleted || run.TotalTrades() != 50 {
		t.Errorf("status=%s trades=%d", run.Status, run.TotalTrades())
	}
}
