package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/fusion/backend/internal/analysis"
	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/macro"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// Analyzer runs analysis passes and single-ticker scoring
type Analyzer interface {
	Start(topN int) contracts.AnalysisRunState
	Status() contracts.AnalysisRunState
	AnalyzeSingle(ctx context.Context, ticker string) (*contracts.ScoreResult, error)
	MacroBreakdown(ctx context.Context) macro.Breakdown
}

// AnalysisHandler handles analysis run and scoring endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	analyzer Analyzer
	logger   *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analyzer Analyzer, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		logger:   log.WithComponent("api.analysis"),
	}
}

// StartAnalysis starts a background run unless one is in flight
// POST /api/analyze?top_n=5
func (h *AnalysisHandler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	topN, ok := queryInt(r, "top_n", 0, 1, 500)
	if !ok {
		respondError(w, http.StatusBadRequest, "top_n must be an integer between 1 and 500")
		return
	}

	state := h.analyzer.Start(topN)
	h.logger.WithFields(map[string]interface{}{
		"top_n":  topN,
		"run_id": state.RunID,
	}).Info("Analysis requested")

	respondJSON(w, http.StatusOK, state)
}

// GetStatus returns the current run state
// GET /api/status
func (h *AnalysisHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.analyzer.Status())
}

// AnalyzeSingle scores one ticker
// GET /api/analyze_single/{ticker}
func (h *AnalysisHandler) AnalyzeSingle(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	result, err := h.analyzer.AnalyzeSingle(r.Context(), ticker)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, result)
	case errors.Is(err, analysis.ErrNoPriceData):
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s price data not found", ticker))
	case errors.Is(err, analysis.ErrInsufficientData):
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s score calculation failed", ticker))
	default:
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to analyze ticker")
		respondError(w, http.StatusInternalServerError, "failed to analyze ticker")
	}
}

// GetMacro returns the macro breakdown
// GET /api/macro
func (h *AnalysisHandler) GetMacro(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.analyzer.MacroBreakdown(r.Context()))
}
