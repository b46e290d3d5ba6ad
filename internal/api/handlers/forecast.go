package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/forecast"
	"github.com/wonny/fusion/backend/internal/fusion"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// Forecaster produces point forecasts and fan charts
type Forecaster interface {
	Forecast(ctx context.Context, ticker string) (*contracts.ForecastResult, error)
	FanChart(ctx context.Context, ticker string, nPast, nFuture int) (*contracts.FanChart, error)
}

// ForecastHandler handles forecast API endpoints
// ⭐ SSOT: Forecast API 핸들러는 이 구조체에서만
type ForecastHandler struct {
	forecaster Forecaster
	logger     *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(forecaster Forecaster, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{
		forecaster: forecaster,
		logger:     log.WithComponent("api.forecast"),
	}
}

// GetForecast returns the recursive forecast with its band
// GET /api/forecast/{ticker}
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ticker := fusion.NormalizeTicker(mux.Vars(r)["ticker"])
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	result, err := h.forecaster.Forecast(r.Context(), ticker)
	if err != nil {
		h.respondForecastError(w, ticker, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetFanChart returns the encoder-decoder fan chart
// GET /api/forecast/{ticker}/fan?n_past=60&n_future=30
func (h *ForecastHandler) GetFanChart(w http.ResponseWriter, r *http.Request) {
	ticker := fusion.NormalizeTicker(mux.Vars(r)["ticker"])
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	nPast, ok := queryInt(r, "n_past", 0, 1, 500)
	if !ok {
		respondError(w, http.StatusBadRequest, "n_past must be an integer between 1 and 500")
		return
	}
	nFuture, ok := queryInt(r, "n_future", 0, 1, 365)
	if !ok {
		respondError(w, http.StatusBadRequest, "n_future must be an integer between 1 and 365")
		return
	}

	chart, err := h.forecaster.FanChart(r.Context(), ticker, nPast, nFuture)
	if err != nil {
		h.respondForecastError(w, ticker, err)
		return
	}
	respondJSON(w, http.StatusOK, chart)
}

func (h *ForecastHandler) respondForecastError(w http.ResponseWriter, ticker string, err error) {
	switch {
	case errors.Is(err, forecast.ErrNoPriceData):
		respondError(w, http.StatusNotFound, "no price data found")
	case errors.Is(err, forecast.ErrInsufficientHistory):
		respondError(w, http.StatusBadRequest, "not enough price history to forecast")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// 학습은 백그라운드에서 계속되어 캐시에 저장됨
		respondError(w, http.StatusServiceUnavailable, "forecast still training, retry later")
	default:
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to forecast")
		respondError(w, http.StatusInternalServerError, "failed to generate forecast")
	}
}
