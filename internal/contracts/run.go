package contracts

import "time"

// RunStatus is the lifecycle state of an analysis run
type RunStatus string

const (
	RunIdle      RunStatus = "IDLE"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// AnalysisRunState is the observable state of the analysis run.
// IDLE → RUNNING → COMPLETED | FAILED
type AnalysisRunState struct {
	Status    RunStatus     `json:"status"`
	Progress  int           `json:"progress"`
	TopStocks []ScoreResult `json:"top_stocks"`

	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// IdleRunState is the state before any run started
func IdleRunState() AnalysisRunState {
	return AnalysisRunState{Status: RunIdle, TopStocks: []ScoreResult{}}
}

// Clone returns a deep copy safe to hand to other goroutines
func (s AnalysisRunState) Clone() AnalysisRunState {
	out := s
	out.TopStocks = make([]ScoreResult, len(s.TopStocks))
	copy(out.TopStocks, s.TopStocks)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// Terminal reports whether the run has finished
func (s AnalysisRunState) Terminal() bool {
	return s.Status == RunCompleted || s.Status == RunFailed
}
