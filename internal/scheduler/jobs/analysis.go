package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// ErrRunInFlight is returned when a manually started analysis is still running
var ErrRunInFlight = errors.New("analysis run already in flight")

// Runner executes an analysis pass synchronously
type Runner interface {
	RunSync(ctx context.Context, topN int) (contracts.AnalysisRunState, bool)
}

// Forecaster pre-trains forecasts so the first request hits the cache
type Forecaster interface {
	Forecast(ctx context.Context, ticker string) (*contracts.ForecastResult, error)
}

// AnalysisJob runs the scheduled analysis and optionally warms forecasts
// for the resulting top stocks
type AnalysisJob struct {
	runner     Runner
	forecaster Forecaster
	schedule   string
	topN       int
	logger     *logger.Logger
}

// NewAnalysisJob creates a new analysis job. A nil forecaster disables warm-up.
func NewAnalysisJob(runner Runner, forecaster Forecaster, schedule string, topN int, log *logger.Logger) *AnalysisJob {
	return &AnalysisJob{
		runner:     runner,
		forecaster: forecaster,
		schedule:   schedule,
		topN:       topN,
		logger:     log.WithComponent("job.analysis"),
	}
}

// Name returns the job name
func (j *AnalysisJob) Name() string {
	return "fusion_analysis"
}

// Schedule returns the configured cron expression
func (j *AnalysisJob) Schedule() string {
	return j.schedule
}

// Run executes one analysis pass
func (j *AnalysisJob) Run(ctx context.Context) error {
	state, started := j.runner.RunSync(ctx, j.topN)
	if !started {
		return fmt.Errorf("run %s: %w", state.RunID, ErrRunInFlight)
	}
	if state.Status == contracts.RunFailed {
		return fmt.Errorf("analysis run %s failed: %s", state.RunID, state.Error)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id": state.RunID,
		"top":    len(state.TopStocks),
	}).Info("Scheduled analysis completed")

	if j.forecaster != nil {
		j.warm(ctx, state.TopStocks)
	}
	return nil
}

// warm trains forecasts one ticker at a time; failures are logged, not retried
func (j *AnalysisJob) warm(ctx context.Context, top []contracts.ScoreResult) {
	warmed := 0
	for _, s := range top {
		if ctx.Err() != nil {
			break
		}
		if _, err := j.forecaster.Forecast(ctx, s.Ticker); err != nil {
			j.logger.WithError(err).WithField("ticker", s.Ticker).Warn("Forecast warm-up failed")
			continue
		}
		warmed++
	}
	j.logger.WithFields(map[string]interface{}{
		"warmed": warmed,
		"total":  len(top),
	}).Info("Forecast warm-up finished")
}
