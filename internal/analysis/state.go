package analysis

import (
	"sync"
	"time"

	"github.com/wonny/fusion/backend/internal/contracts"
)

// RunState holds the process-wide analysis run state.
// Every transition replaces the whole record under the mutex, so readers
// never observe a half-updated run.
// ⭐ SSOT: 분석 실행 상태 전이는 여기서만
type RunState struct {
	mu    sync.Mutex
	state contracts.AnalysisRunState

	subs    map[int]chan contracts.AnalysisRunState
	nextSub int
}

// NewRunState returns an IDLE state
func NewRunState() *RunState {
	return &RunState{
		state: contracts.IdleRunState(),
		subs:  make(map[int]chan contracts.AnalysisRunState),
	}
}

// Snapshot returns a copy of the current state
func (r *RunState) Snapshot() contracts.AnalysisRunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Start moves the state to RUNNING with progress 0 and no results.
// While a run is already RUNNING it returns the in-flight snapshot and false.
func (r *RunState) Start(runID string) (contracts.AnalysisRunState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status == contracts.RunRunning {
		return r.state.Clone(), false
	}

	now := time.Now()
	r.replace(contracts.AnalysisRunState{
		Status:    contracts.RunRunning,
		Progress:  0,
		TopStocks: []contracts.ScoreResult{},
		RunID:     runID,
		StartedAt: &now,
	})
	return r.state.Clone(), true
}

// SetProgress raises the progress of the running run. Lower values and
// updates outside RUNNING are ignored.
func (r *RunState) SetProgress(runID string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != contracts.RunRunning || r.state.RunID != runID {
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress <= r.state.Progress {
		return
	}

	next := r.state.Clone()
	next.Progress = progress
	r.replace(next)
}

// Complete finishes the run with its ranked results
func (r *RunState) Complete(runID string, top []contracts.ScoreResult) {
	r.finish(runID, func(next *contracts.AnalysisRunState) {
		next.Status = contracts.RunCompleted
		next.Progress = 100
		next.TopStocks = append([]contracts.ScoreResult{}, top...)
	})
}

// Fail finishes the run as FAILED with progress 0 and no results
func (r *RunState) Fail(runID string, err error) {
	r.finish(runID, func(next *contracts.AnalysisRunState) {
		next.Status = contracts.RunFailed
		next.Progress = 0
		next.TopStocks = []contracts.ScoreResult{}
		if err != nil {
			next.Error = err.Error()
		}
	})
}

func (r *RunState) finish(runID string, apply func(*contracts.AnalysisRunState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != contracts.RunRunning || r.state.RunID != runID {
		return
	}

	now := time.Now()
	next := contracts.AnalysisRunState{
		RunID:      r.state.RunID,
		StartedAt:  r.state.StartedAt,
		FinishedAt: &now,
	}
	apply(&next)
	r.replace(next)
}

// Subscribe returns a channel receiving every new state and a cancel func.
// The current state is delivered first. Slow subscribers miss intermediate
// updates rather than block transitions.
func (r *RunState) Subscribe() (<-chan contracts.AnalysisRunState, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan contracts.AnalysisRunState, 8)
	ch <- r.state.Clone()
	r.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// replace must be called with mu held
func (r *RunState) replace(next contracts.AnalysisRunState) {
	r.state = next
	for _, ch := range r.subs {
		select {
		case ch <- next.Clone():
		default:
		}
	}
}
