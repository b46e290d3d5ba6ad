package forecast

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/wonny/fusion/backend/internal/nn"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// RecursiveConfig 단일 스텝 모델 설정
type RecursiveConfig struct {
	Lookback     int
	ForecastDays int
	Units        int
	DenseUnits   int
	Dropout      float64
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
}

// DefaultRecursiveConfig returns lookback 60, 100 days, 2×LSTM(50), Dense(25), 5 epochs
func DefaultRecursiveConfig() RecursiveConfig {
	return RecursiveConfig{
		Lookback:     60,
		ForecastDays: 100,
		Units:        50,
		DenseUnits:   25,
		Dropout:      0.2,
		Epochs:       5,
		BatchSize:    32,
		LearningRate: 0.001,
		Seed:         42,
	}
}

func (c RecursiveConfig) validate() error {
	if c.Lookback <= 0 || c.ForecastDays <= 0 {
		return fmt.Errorf("lookback and forecast days must be positive, got %d/%d", c.Lookback, c.ForecastDays)
	}
	if c.Units <= 0 || c.DenseUnits <= 0 || c.Epochs <= 0 {
		return fmt.Errorf("units, dense units and epochs must be positive")
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1), got %v", c.Dropout)
	}
	return nil
}

// RecursiveForecaster trains a stacked LSTM on one-step-ahead targets and
// rolls it forward, feeding each normalised prediction back as input
// ⭐ SSOT: 단일 스텝 재귀 예측은 여기서만
type RecursiveForecaster struct {
	config RecursiveConfig
	logger *logger.Logger
}

// NewRecursiveForecaster creates a forecaster
func NewRecursiveForecaster(cfg RecursiveConfig, log *logger.Logger) (*RecursiveForecaster, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RecursiveForecaster{
		config: cfg,
		logger: log.WithComponent("forecast.recursive"),
	}, nil
}

// Config returns the forecaster configuration
func (f *RecursiveForecaster) Config() RecursiveConfig {
	return f.config
}

// RecursiveModel is a trained network with its scaler and seed window
type RecursiveModel struct {
	config  RecursiveConfig
	net     *stackedNet
	scaler  *MinMaxScaler
	window  []float64 // 마지막 lookback 구간 (정규화)
	History History
}

// Train fits the scaler and network on chronological closes.
// Training blocks until done and cannot be cancelled.
func (f *RecursiveForecaster) Train(closes []float64) (*RecursiveModel, error) {
	cfg := f.config
	if len(closes) < cfg.Lookback {
		return nil, fmt.Errorf("%d closes for lookback %d: %w", len(closes), cfg.Lookback, ErrInsufficientHistory)
	}

	scaler, err := FitSeries(closes)
	if err != nil {
		return nil, err
	}
	scaled := scaler.TransformSeries(closes)

	X, y, err := SingleStepWindows(scaled, cfg.Lookback)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	net := newStackedNet(cfg, rng)
	params := net.params()
	opt := nn.NewAdam(cfg.LearningRate)

	start := time.Now()
	history := History{}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		loss := trainEpoch(len(X), cfg.BatchSize, params, opt, rng, func(i int) float64 {
			pred, cache := net.forward(X[i], true)
			l, grad := nn.MSE([]float64{pred}, []float64{y[i]})
			net.backward(cache, grad[0])
			return l
		})
		history.Loss = append(history.Loss, loss)
		history.BestEpoch = epoch

		f.logger.WithFields(map[string]interface{}{
			"epoch": epoch + 1,
			"loss":  loss,
		}).Debug("Recursive forecaster epoch finished")
	}

	f.logger.WithFields(map[string]interface{}{
		"samples":  len(X),
		"epochs":   cfg.Epochs,
		"loss":     history.Loss[len(history.Loss)-1],
		"duration": time.Since(start),
	}).Info("Recursive forecaster trained")

	return &RecursiveModel{
		config:  cfg,
		net:     net,
		scaler:  scaler,
		window:  append([]float64(nil), scaled[len(scaled)-cfg.Lookback:]...),
		History: history,
	}, nil
}

// Predict rolls the model forward horizon steps in normalised space and
// returns the inverse-transformed prices
func (m *RecursiveModel) Predict(horizon int) []float64 {
	if horizon <= 0 {
		return []float64{}
	}
	window := append([]float64(nil), m.window...)
	out := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		pred, _ := m.net.forward(columnRows(window), false)
		out = append(out, pred)
		window = append(window[1:], pred)
	}
	return m.scaler.InverseSeries(out)
}

// Forecast trains on closes and predicts the configured number of days
func (f *RecursiveForecaster) Forecast(closes []float64) ([]float64, *RecursiveModel, error) {
	model, err := f.Train(closes)
	if err != nil {
		return nil, nil, err
	}
	return model.Predict(f.config.ForecastDays), model, nil
}

// stackedNet: LSTM → Dropout → LSTM → Dropout → Dense → Dense(1)
type stackedNet struct {
	lstm1   *nn.LSTM
	lstm2   *nn.LSTM
	dense1  *nn.Dense
	dense2  *nn.Dense
	dropout float64
	rng     *rand.Rand
}

type stackedCache struct {
	c1, c2 *nn.LSTMCache
	masks1 [][]float64
	mask2  []float64
	steps  int
	d1In   []float64
	d2In   []float64
}

func newStackedNet(cfg RecursiveConfig, rng *rand.Rand) *stackedNet {
	return &stackedNet{
		lstm1:   nn.NewLSTM("lstm1", 1, cfg.Units, rng),
		lstm2:   nn.NewLSTM("lstm2", cfg.Units, cfg.Units, rng),
		dense1:  nn.NewDense("dense1", cfg.Units, cfg.DenseUnits, rng),
		dense2:  nn.NewDense("dense2", cfg.DenseUnits, 1, rng),
		dropout: cfg.Dropout,
		rng:     rng,
	}
}

func (n *stackedNet) params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, n.lstm1.Params()...)
	ps = append(ps, n.lstm2.Params()...)
	ps = append(ps, n.dense1.Params()...)
	ps = append(ps, n.dense2.Params()...)
	return ps
}

func (n *stackedNet) forward(x [][]float64, train bool) (float64, *stackedCache) {
	cache := &stackedCache{steps: len(x)}

	h1, c1 := n.lstm1.Forward(x, nil, nil)
	cache.c1 = c1
	cache.masks1 = nn.SequenceMasks(len(h1), n.lstm1.Units, n.dropout, train, n.rng)
	h1 = nn.ApplySequence(h1, cache.masks1)

	h2, c2 := n.lstm2.Forward(h1, nil, nil)
	cache.c2 = c2
	last := h2[len(h2)-1]
	if train && n.dropout > 0 {
		cache.mask2 = nn.DropoutMask(len(last), n.dropout, n.rng)
	}
	cache.d1In = nn.ApplyMask(last, cache.mask2)

	cache.d2In = n.dense1.Forward(cache.d1In)
	out := n.dense2.Forward(cache.d2In)
	return out[0], cache
}

func (n *stackedNet) backward(cache *stackedCache, dOut float64) {
	dD2In := n.dense2.Backward(cache.d2In, []float64{dOut})
	dLast := n.dense1.Backward(cache.d1In, dD2In)
	if cache.mask2 != nil {
		dLast = nn.ApplyMask(dLast, cache.mask2)
	}

	dH2 := make([][]float64, cache.steps)
	dH2[cache.steps-1] = dLast
	dX2, _, _ := n.lstm2.Backward(cache.c2, dH2, nil, nil)

	dH1 := dX2
	if cache.masks1 != nil {
		dH1 = nn.ApplySequence(dX2, cache.masks1)
	}
	n.lstm1.Backward(cache.c1, dH1, nil, nil)
}
