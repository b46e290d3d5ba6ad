package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/uncertainty"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/logger"
	"github.com/wonny/fusion/backend/pkg/metrics"
	"github.com/wonny/fusion/backend/pkg/redis"
)

// ErrNoPriceData is returned when the price provider has nothing for a ticker
var ErrNoPriceData = errors.New("no price data")

const (
	modelRecursive = "recursive"
	modelFan       = "seq2seq"
)

// Service runs forecasts off the request path: training happens on a
// bounded set of worker goroutines, concurrent requests for the same
// ticker share one training, and finished results are cached.
// A caller whose context ends stops waiting; the training itself runs to
// completion and still populates the cache.
// ⭐ SSOT: API 예측 요청은 이 서비스를 통해서만
type Service struct {
	prices    contracts.PriceProvider
	macro     contracts.MacroProvider
	cache     *redis.Cache
	metrics   *metrics.Recorder
	recursive RecursiveConfig
	fan       FanConfig
	history   int
	cacheTTL  time.Duration

	group  singleflight.Group
	slots  chan struct{}
	logger *logger.Logger
}

// NewService creates a forecast service from config
func NewService(
	cfg *config.Config,
	prices contracts.PriceProvider,
	macro contracts.MacroProvider,
	cache *redis.Cache,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Service {
	fc := cfg.Forecast

	recursive := DefaultRecursiveConfig()
	recursive.Lookback = fc.Lookback
	recursive.ForecastDays = fc.Days
	if fc.Epochs > 0 {
		recursive.Epochs = fc.Epochs
	}
	if fc.BatchSize > 0 {
		recursive.BatchSize = fc.BatchSize
	}
	recursive.Seed = fc.Seed

	model := DefaultEncoderDecoderConfig(2)
	model.NPast = fc.NPast
	model.NFuture = fc.NFuture
	if fc.MaxEpochs > 0 {
		model.Epochs = fc.MaxEpochs
	}
	if fc.BatchSize > 0 {
		model.BatchSize = fc.BatchSize
	}
	model.Seed = fc.Seed

	history := fc.HistoryWindow
	if history <= 0 {
		history = 100
	}
	workers := fc.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Service{
		prices:    prices,
		macro:     macro,
		cache:     cache,
		metrics:   rec,
		recursive: recursive,
		fan:       FanConfig{Model: model, Simulations: fc.Simulations, Seed: fc.Seed},
		history:   history,
		cacheTTL:  fc.CacheTTL,
		slots:     make(chan struct{}, workers),
		logger:    log.WithComponent("forecast.service"),
	}
}

// WithRecursiveConfig overrides the recursive model settings
func (s *Service) WithRecursiveConfig(cfg RecursiveConfig) *Service {
	s.recursive = cfg
	return s
}

// WithFanConfig overrides the fan chart settings
func (s *Service) WithFanConfig(cfg FanConfig) *Service {
	s.fan = cfg
	return s
}

// Forecast returns the recursive point forecast with its analytic band
func (s *Service) Forecast(ctx context.Context, ticker string) (*contracts.ForecastResult, error) {
	key := redis.ForecastKey(ticker, modelRecursive, s.recursive.ForecastDays)

	var cached contracts.ForecastResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	v, err := s.offload(ctx, key, func() (interface{}, error) {
		res, err := s.forecast(ticker)
		if err != nil {
			return nil, err
		}
		s.cacheSet(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*contracts.ForecastResult), nil
}

// FanChart returns the encoder-decoder fan chart. Zero nPast/nFuture use the configured defaults.
func (s *Service) FanChart(ctx context.Context, ticker string, nPast, nFuture int) (*contracts.FanChart, error) {
	cfg := s.fan
	if nPast > 0 {
		cfg.Model.NPast = nPast
	}
	if nFuture > 0 {
		cfg.Model.NFuture = nFuture
	}
	key := redis.ForecastKey(ticker, fmt.Sprintf("%s:%d", modelFan, cfg.Model.NPast), cfg.Model.NFuture)

	var cached contracts.FanChart
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	v, err := s.offload(ctx, key, func() (interface{}, error) {
		chart, err := s.fanChart(ticker, cfg)
		if err != nil {
			return nil, err
		}
		s.cacheSet(key, chart)
		return chart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*contracts.FanChart), nil
}

// offload runs fn on a worker slot, deduplicated by key, and waits for it
// or for ctx to end
func (s *Service) offload(ctx context.Context, key string, fn func() (interface{}, error)) (interface{}, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		s.slots <- struct{}{}
		defer func() { <-s.slots }()
		return fn()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *Service) forecast(ticker string) (*contracts.ForecastResult, error) {
	// 학습은 요청 컨텍스트와 무관하게 끝까지 수행
	ctx := context.Background()

	prices, err := s.loadPrices(ctx, ticker)
	if err != nil {
		return nil, err
	}
	closes := prices.Closes()

	forecaster, err := NewRecursiveForecaster(s.recursive, s.logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	predicted, _, err := forecaster.Forecast(closes)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", ticker, err)
	}
	s.observeTraining(modelRecursive, time.Since(start))

	band := uncertainty.AnalyticBand(predicted, closes)
	last, _ := prices.LastDate()

	hist := s.history
	if hist > len(closes) {
		hist = len(closes)
	}

	result := &contracts.ForecastResult{
		Dates:      FutureDates(last, len(predicted)),
		Historical: append([]float64(nil), closes[len(closes)-hist:]...),
		Forecast:   predicted,
		LowerBound: band.Lower,
		UpperBound: band.Upper,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"horizon":  len(predicted),
		"duration": time.Since(start),
	}).Info("Forecast generated")

	return result, nil
}

func (s *Service) fanChart(ticker string, cfg FanConfig) (*contracts.FanChart, error) {
	ctx := context.Background()

	prices, err := s.loadPrices(ctx, ticker)
	if err != nil {
		return nil, err
	}

	macroRes := s.macro.MacroTable(ctx)
	if !macroRes.Available {
		return nil, fmt.Errorf("fan chart %s: macro data unavailable: %v", ticker, macroRes.Err)
	}

	rows, dates := prices.JoinMacro(macroRes.Value, contracts.ColNetLiquidity)
	if len(rows) < 200 {
		s.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"rows":   len(rows),
		}).Warn("Few joined samples, fan chart reliability is low")
	}

	start := time.Now()
	chart, err := NewFanPipeline(cfg, s.logger).Run(ctx, ticker, rows, dates, 0)
	if err != nil {
		return nil, err
	}
	s.observeTraining(modelFan, time.Since(start))
	return chart, nil
}

func (s *Service) loadPrices(ctx context.Context, ticker string) (*contracts.PriceTable, error) {
	res := s.prices.PriceTable(ctx, ticker)
	if !res.Available || res.Value.Len() == 0 {
		if res.Err != nil {
			return nil, fmt.Errorf("%s: %w: %v", ticker, ErrNoPriceData, res.Err)
		}
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoPriceData)
	}
	clean := res.Value.DropMissingClose()
	if clean.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoPriceData)
	}
	return clean, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Forecast cache read failed")
		return false
	}
	return hit
}

func (s *Service) cacheSet(key string, value interface{}) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Forecast cache write failed")
	}
}

func (s *Service) observeTraining(model string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.TrainingFinished(model, elapsed)
	}
}
