package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fusion/backend/internal/analysis"
	"github.com/wonny/fusion/backend/internal/api/handlers"
	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/forecast"
	"github.com/wonny/fusion/backend/internal/macro"
	"github.com/wonny/fusion/backend/pkg/logger"
	"github.com/wonny/fusion/backend/pkg/metrics"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeAnalyzer struct {
	state   *analysis.RunState
	lastTop int
}

func (f *fakeAnalyzer) Start(topN int) contracts.AnalysisRunState {
	f.lastTop = topN
	s, _ := f.state.Start("run-1")
	return s
}

func (f *fakeAnalyzer) Status() contracts.AnalysisRunState {
	return f.state.Snapshot()
}

func (f *fakeAnalyzer) AnalyzeSingle(ctx context.Context, ticker string) (*contracts.ScoreResult, error) {
	switch strings.ToUpper(ticker) {
	case "AAPL":
		return &contracts.ScoreResult{Ticker: "AAPL", FusionScore: 71.3, MacroRegime: contracts.RegimeNeutral}, nil
	case "NEW":
		return nil, fmt.Errorf("NEW: %w", analysis.ErrInsufficientData)
	case "BOOM":
		panic("scorer exploded")
	default:
		return nil, fmt.Errorf("%s: %w", ticker, analysis.ErrNoPriceData)
	}
}

func (f *fakeAnalyzer) MacroBreakdown(ctx context.Context) macro.Breakdown {
	return macro.Breakdown{Score: 62.5, Regime: contracts.RegimeRiskOn}
}

type fakeForecaster struct {
	nPast, nFuture int
}

func (f *fakeForecaster) Forecast(ctx context.Context, ticker string) (*contracts.ForecastResult, error) {
	switch ticker {
	case "AAPL":
		return &contracts.ForecastResult{
			Dates:      []string{"2024-01-03"},
			Historical: []float64{100},
			Forecast:   []float64{101},
			LowerBound: []float64{101},
			UpperBound: []float64{101},
		}, nil
	case "TINY":
		return nil, fmt.Errorf("TINY: %w", forecast.ErrInsufficientHistory)
	case "SLOW":
		return nil, context.DeadlineExceeded
	default:
		return nil, fmt.Errorf("%s: %w", ticker, forecast.ErrNoPriceData)
	}
}

func (f *fakeForecaster) FanChart(ctx context.Context, ticker string, nPast, nFuture int) (*contracts.FanChart, error) {
	f.nPast, f.nFuture = nPast, nFuture
	return &contracts.FanChart{Ticker: ticker, P50: []float64{1, 2}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeAnalyzer, *fakeForecaster) {
	t.Helper()
	log := logger.Nop()
	an := &fakeAnalyzer{state: analysis.NewRunState()}
	fc := &fakeForecaster{}

	router := NewRouter(Handlers{
		Analysis: handlers.NewAnalysisHandler(an, log),
		Forecast: handlers.NewForecastHandler(fc, log),
		Stream:   handlers.NewStreamHandler(an.state, log),
	}, metrics.New().Registry(), log)
	return router, an, fc
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Tests
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fusion_")
}

func TestStartAnalysisAndStatus(t *testing.T) {
	router, an, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var state contracts.AnalysisRunState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, contracts.RunIdle, state.Status)
	assert.NotNil(t, state.TopStocks)

	rec = do(t, router, http.MethodPost, "/api/analyze?top_n=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, contracts.RunRunning, state.Status)
	assert.Equal(t, 3, an.lastTop)

	// 실행 중 재요청은 같은 상태
	rec = do(t, router, http.MethodPost, "/api/analyze")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, 0, an.lastTop)

	rec = do(t, router, http.MethodGet, "/api/analyze")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartAnalysis_BadTopN(t *testing.T) {
	router, _, _ := newTestRouter(t)
	for _, q := range []string{"abc", "0", "-2"} {
		rec := do(t, router, http.MethodPost, "/api/analyze?top_n="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAnalyzeSingle(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/api/analyze_single/AAPL", http.StatusOK, `"fusion_score":71.3`},
		{"/api/analyze_single/NEW", http.StatusBadRequest, "score calculation failed"},
		{"/api/analyze_single/ZZZZ", http.StatusBadRequest, "price data not found"},
		{"/api/analyze_single/BOOM", http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestGetMacro(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/api/macro")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"regime":"Risk-On"`)
}

func TestGetForecast(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		ticker string
		code   int
	}{
		{"aapl", http.StatusOK},
		{"TINY", http.StatusBadRequest},
		{"SLOW", http.StatusServiceUnavailable},
		{"NONE", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := do(t, router, http.MethodGet, "/api/forecast/"+tt.ticker)
		assert.Equal(t, tt.code, rec.Code, tt.ticker)
	}

	rec := do(t, router, http.MethodGet, "/api/forecast/AAPL")
	var res contracts.ForecastResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []float64{101}, res.Forecast)
	assert.Contains(t, rec.Body.String(), `"lower_bound"`)
}

func TestGetFanChart(t *testing.T) {
	router, _, fc := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/forecast/MSFT/fan?n_past=40&n_future=20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, fc.nPast)
	assert.Equal(t, 20, fc.nFuture)

	rec = do(t, router, http.MethodGet, "/api/forecast/MSFT/fan")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, fc.nPast)

	rec = do(t, router, http.MethodGet, "/api/forecast/MSFT/fan?n_future=999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(t, router, http.MethodOptions, "/api/analyze")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusStream(t *testing.T) {
	router, an, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var state contracts.AnalysisRunState
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, contracts.RunIdle, state.Status)

	an.state.Start("run-ws")
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, contracts.RunRunning, state.Status)
	assert.Equal(t, "run-ws", state.RunID)

	an.state.SetProgress("run-ws", 40)
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, 40, state.Progress)
}
