package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/internal/uncertainty"
	"github.com/wonny/fusion/backend/pkg/logger"
)

const (
	// TrainSplit 학습/테스트 분할 비율
	TrainSplit = 0.8
	// FanHistoryDays 팬 차트에 함께 내보내는 과거 구간
	FanHistoryDays = 120

	dateLayout = "2006-01-02"
)

// FanConfig 팬 차트 파이프라인 설정
type FanConfig struct {
	Model       EncoderDecoderConfig
	Simulations int
	Seed        int64
	HistoryDays int
}

// FanPipeline trains an encoder-decoder on a multi-feature table, measures
// its residual spread on the held-out test split and simulates a fan chart
type FanPipeline struct {
	config FanConfig
	logger *logger.Logger
}

// NewFanPipeline creates a pipeline
func NewFanPipeline(cfg FanConfig, log *logger.Logger) *FanPipeline {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = FanHistoryDays
	}
	if cfg.Simulations <= 0 {
		cfg.Simulations = 1000
	}
	return &FanPipeline{config: cfg, logger: log.WithComponent("forecast.fan")}
}

// Run builds the fan chart for rows (chronological, features in columns)
// with the target feature at column target.
func (p *FanPipeline) Run(ctx context.Context, ticker string, rows [][]float64, dates []time.Time, target int) (*contracts.FanChart, error) {
	if len(rows) != len(dates) {
		return nil, fmt.Errorf("%d rows but %d dates", len(rows), len(dates))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fan chart for %s: %w", ticker, ErrInsufficientHistory)
	}

	mcfg := p.config.Model
	mcfg.NFeatures = len(rows[0])

	total := len(rows) - mcfg.NPast - mcfg.NFuture + 1
	if total <= 0 {
		return nil, fmt.Errorf("fan chart for %s: %d rows for n_past %d + n_future %d: %w",
			ticker, len(rows), mcfg.NPast, mcfg.NFuture, ErrInsufficientHistory)
	}
	nTrain := int(float64(total) * TrainSplit)
	if nTrain == 0 {
		return nil, fmt.Errorf("fan chart for %s: no training windows: %w", ticker, ErrInsufficientHistory)
	}

	// 스케일러는 학습 윈도우가 보는 구간에만 맞춤
	fitRows := rows[:nTrain-1+mcfg.NPast+mcfg.NFuture]
	scaler, err := FitMinMax(fitRows)
	if err != nil {
		return nil, err
	}
	scaled := scaler.Transform(rows)

	X, Y, err := MultiStepWindows(scaled, target, mcfg.NPast, mcfg.NFuture)
	if err != nil {
		return nil, err
	}
	trainX, testX := SplitTrainTest(X, TrainSplit)
	trainY, testY := SplitTrainTest(Y, TrainSplit)

	model, err := NewEncoderDecoder(mcfg, p.logger)
	if err != nil {
		return nil, err
	}
	if _, err := model.Train(trainX, trainY); err != nil {
		return nil, err
	}

	residualStd := 0.0
	if len(testX) > 0 {
		preds := make([][]float64, len(testX))
		for i, x := range testX {
			preds[i], err = model.PredictPath(x)
			if err != nil {
				return nil, err
			}
		}
		residualStd = uncertainty.ResidualStd(preds, testY)
	} else {
		p.logger.WithField("ticker", ticker).Warn("Empty test split, simulating without residual noise")
	}

	base, err := model.PredictPath(scaled[len(scaled)-mcfg.NPast:])
	if err != nil {
		return nil, err
	}

	mc := uncertainty.NewMonteCarloSimulator(uncertainty.MonteCarloConfig{
		NumSimulations: p.config.Simulations,
		Seed:           p.config.Seed,
	})
	fan, err := mc.Simulate(ctx, base, residualStd, scaler.InverseFunc(target))
	if err != nil {
		return nil, err
	}

	chart := &contracts.FanChart{
		RunID:       fan.RunID,
		Ticker:      ticker,
		Dates:       FutureDates(dates[len(dates)-1], mcfg.NFuture),
		Forecast:    fan.Base,
		P5:          fan.Percentiles[5],
		P20:         fan.Percentiles[20],
		P50:         fan.Percentiles[50],
		P80:         fan.Percentiles[80],
		P95:         fan.Percentiles[95],
		ResidualStd: residualStd,
		Simulations: fan.Simulations,
	}

	hist := p.config.HistoryDays
	if hist > len(rows) {
		hist = len(rows)
	}
	for i := len(rows) - hist; i < len(rows); i++ {
		chart.HistoricalDates = append(chart.HistoricalDates, dates[i].Format(dateLayout))
		chart.Historical = append(chart.Historical, rows[i][target])
	}

	p.logger.WithFields(map[string]interface{}{
		"ticker":       ticker,
		"train":        len(trainX),
		"test":         len(testX),
		"residual_std": residualStd,
		"run_id":       fan.RunID,
	}).Info("Fan chart simulated")

	return chart, nil
}

// FutureDates returns n calendar days after last, formatted YYYY-MM-DD
func FutureDates(last time.Time, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = last.AddDate(0, 0, i+1).Format(dateLayout)
	}
	return out
}
