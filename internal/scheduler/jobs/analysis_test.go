package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/logger"
)

type fakeRunner struct {
	state   contracts.AnalysisRunState
	started bool
	topN    int
}

func (f *fakeRunner) RunSync(ctx context.Context, topN int) (contracts.AnalysisRunState, bool) {
	f.topN = topN
	return f.state, f.started
}

type fakeForecaster struct {
	tickers []string
}

func (f *fakeForecaster) Forecast(ctx context.Context, ticker string) (*contracts.ForecastResult, error) {
	f.tickers = append(f.tickers, ticker)
	if ticker == "BAD" {
		return nil, errors.New("no history")
	}
	return &contracts.ForecastResult{}, nil
}

func completed(tickers ...string) contracts.AnalysisRunState {
	top := make([]contracts.ScoreResult, len(tickers))
	for i, t := range tickers {
		top[i] = contracts.ScoreResult{Ticker: t}
	}
	return contracts.AnalysisRunState{Status: contracts.RunCompleted, Progress: 100, TopStocks: top, RunID: "r1"}
}

func TestAnalysisJob_Run(t *testing.T) {
	tests := []struct {
		name    string
		runner  *fakeRunner
		wantErr error
		failed  bool
	}{
		{"completed", &fakeRunner{state: completed("AAPL"), started: true}, nil, false},
		{"in flight", &fakeRunner{state: contracts.AnalysisRunState{Status: contracts.RunRunning, RunID: "manual"}}, ErrRunInFlight, false},
		{"failed", &fakeRunner{state: contracts.AnalysisRunState{Status: contracts.RunFailed, Error: "universe down"}, started: true}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewAnalysisJob(tt.runner, nil, "0 0 22 * * *", 7, logger.Nop())
			err := job.Run(context.Background())

			assert.Equal(t, 7, tt.runner.topN)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.failed:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "universe down")
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalysisJob_WarmsForecasts(t *testing.T) {
	runner := &fakeRunner{state: completed("AAPL", "BAD", "MSFT"), started: true}
	fc := &fakeForecaster{}
	job := NewAnalysisJob(runner, fc, "0 0 22 * * *", 3, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"AAPL", "BAD", "MSFT"}, fc.tickers)
	assert.Equal(t, "fusion_analysis", job.Name())
	assert.Equal(t, "0 0 22 * * *", job.Schedule())
}

func TestAnalysisJob_WarmStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{state: completed("AAPL", "MSFT"), started: true}
	fc := &fakeForecaster{}
	job := NewAnalysisJob(runner, fc, "@daily", 2, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, job.Run(ctx))
	assert.Empty(t, fc.tickers)
}
