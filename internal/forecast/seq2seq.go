package forecast

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/wonny/fusion/backend/internal/nn"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// EncoderDecoderConfig 인코더-디코더 모델 설정
type EncoderDecoderConfig struct {
	NPast           int
	NFuture         int
	NFeatures       int
	Units           int
	Dropout         float64
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Patience        int
	LearningRate    float64
	Seed            int64
}

// DefaultEncoderDecoderConfig returns 60 past / 30 future steps, 128 units, 50 epochs with early stopping
func DefaultEncoderDecoderConfig(nFeatures int) EncoderDecoderConfig {
	return EncoderDecoderConfig{
		NPast:           60,
		NFuture:         30,
		NFeatures:       nFeatures,
		Units:           128,
		Dropout:         0.2,
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.1,
		Patience:        10,
		LearningRate:    0.001,
		Seed:            42,
	}
}

func (c EncoderDecoderConfig) validate() error {
	if c.NPast <= 0 || c.NFuture <= 0 || c.NFeatures <= 0 {
		return fmt.Errorf("n_past, n_future and n_features must be positive, got %d/%d/%d", c.NPast, c.NFuture, c.NFeatures)
	}
	if c.Units <= 0 || c.Epochs <= 0 {
		return fmt.Errorf("units and epochs must be positive")
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1), got %v", c.Dropout)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validation split must be in [0,1), got %v", c.ValidationSplit)
	}
	return nil
}

// EncoderDecoder maps an (n_past × features) window to an n_future path.
// The encoder's final (h, c) seeds the decoder, whose input is the
// encoder output repeated n_future times.
// ⭐ SSOT: 다중 스텝 예측 모델은 여기서만
type EncoderDecoder struct {
	config  EncoderDecoderConfig
	encoder *nn.LSTM
	decoder *nn.LSTM
	output  *nn.Dense // 타임스텝마다 공유
	rng     *rand.Rand
	logger  *logger.Logger
}

type seq2seqCache struct {
	encCache *nn.LSTMCache
	decCache *nn.LSTMCache
	encMasks [][]float64
	decMasks [][]float64
	decOut   [][]float64
}

// NewEncoderDecoder builds an untrained model
func NewEncoderDecoder(cfg EncoderDecoderConfig, log *logger.Logger) (*EncoderDecoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &EncoderDecoder{
		config:  cfg,
		encoder: nn.NewLSTM("encoder", cfg.NFeatures, cfg.Units, rng),
		decoder: nn.NewLSTM("decoder", cfg.Units, cfg.Units, rng),
		output:  nn.NewDense("output", cfg.Units, 1, rng),
		rng:     rng,
		logger:  log.WithComponent("forecast.seq2seq"),
	}, nil
}

// Config returns the model configuration
func (m *EncoderDecoder) Config() EncoderDecoderConfig {
	return m.config
}

// OutputShape is (n_future, 1)
func (m *EncoderDecoder) OutputShape() (int, int) {
	return m.config.NFuture, 1
}

func (m *EncoderDecoder) params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, m.encoder.Params()...)
	ps = append(ps, m.decoder.Params()...)
	ps = append(ps, m.output.Params()...)
	return ps
}

// Train fits the model on windows X (samples × n_past × features) and
// targets Y (samples × n_future). The last ValidationSplit share of the
// samples is held out for early stopping; the best weights are restored.
// Training blocks until done and cannot be cancelled.
func (m *EncoderDecoder) Train(X [][][]float64, Y [][]float64) (*History, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("train encoder-decoder: %w", ErrInsufficientHistory)
	}
	if len(X) != len(Y) {
		return nil, fmt.Errorf("train encoder-decoder: %d inputs but %d targets", len(X), len(Y))
	}
	if err := m.checkInput(X[0]); err != nil {
		return nil, err
	}

	cfg := m.config
	nVal := int(float64(len(X)) * cfg.ValidationSplit)
	if nVal >= len(X) {
		nVal = len(X) - 1
	}
	nTrain := len(X) - nVal
	trainX, trainY := X[:nTrain], Y[:nTrain]
	valX, valY := X[nTrain:], Y[nTrain:]

	params := m.params()
	opt := nn.NewAdam(cfg.LearningRate)
	stopper := newEarlyStopping(cfg.Patience)
	history := &History{BestEpoch: -1}

	start := time.Now()
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		loss := trainEpoch(nTrain, cfg.BatchSize, params, opt, m.rng, func(i int) float64 {
			pred, cache := m.forward(trainX[i], true)
			l, grad := nn.MSE(pred, trainY[i])
			m.backward(cache, grad)
			return l
		})
		history.Loss = append(history.Loss, loss)

		// 검증 데이터가 없으면 학습 손실로 조기 종료 판단
		monitor := loss
		if nVal > 0 {
			monitor = m.Evaluate(valX, valY)
			history.ValLoss = append(history.ValLoss, monitor)
		}

		m.logger.WithFields(map[string]interface{}{
			"epoch":    epoch + 1,
			"loss":     loss,
			"val_loss": monitor,
		}).Debug("Encoder-decoder epoch finished")

		if stopper.observe(epoch, monitor, params) {
			history.Stopped = true
			break
		}
	}

	stopper.restore(params)
	history.BestEpoch = stopper.bestAt

	m.logger.WithFields(map[string]interface{}{
		"samples":    nTrain,
		"val":        nVal,
		"epochs_run": len(history.Loss),
		"best_epoch": history.BestEpoch + 1,
		"duration":   time.Since(start),
	}).Info("Encoder-decoder trained")

	return history, nil
}

// Evaluate returns the mean MSE over samples
func (m *EncoderDecoder) Evaluate(X [][][]float64, Y [][]float64) float64 {
	if len(X) == 0 {
		return 0
	}
	total := 0.0
	for i := range X {
		pred, _ := m.forward(X[i], false)
		l, _ := nn.MSE(pred, Y[i])
		total += l
	}
	return total / float64(len(X))
}

// Predict returns one (n_future × 1) path per input window
func (m *EncoderDecoder) Predict(X [][][]float64) ([][][]float64, error) {
	out := make([][][]float64, len(X))
	for i, x := range X {
		if err := m.checkInput(x); err != nil {
			return nil, err
		}
		pred, _ := m.forward(x, false)
		out[i] = columnRows(pred)
	}
	return out, nil
}

// PredictPath returns the n_future path for one window as a flat slice
func (m *EncoderDecoder) PredictPath(x [][]float64) ([]float64, error) {
	if err := m.checkInput(x); err != nil {
		return nil, err
	}
	pred, _ := m.forward(x, false)
	return pred, nil
}

func (m *EncoderDecoder) checkInput(x [][]float64) error {
	if len(x) != m.config.NPast {
		return fmt.Errorf("input has %d steps, want %d", len(x), m.config.NPast)
	}
	if len(x) > 0 && len(x[0]) != m.config.NFeatures {
		return fmt.Errorf("input has %d features, want %d", len(x[0]), m.config.NFeatures)
	}
	return nil
}

func (m *EncoderDecoder) forward(x [][]float64, train bool) ([]float64, *seq2seqCache) {
	cfg := m.config
	cache := &seq2seqCache{}

	cache.encMasks = nn.SequenceMasks(len(x), cfg.NFeatures, cfg.Dropout, train, m.rng)
	_, encCache := m.encoder.Forward(nn.ApplySequence(x, cache.encMasks), nil, nil)
	cache.encCache = encCache
	hT, cT := encCache.LastState()

	repeated := make([][]float64, cfg.NFuture)
	for t := range repeated {
		repeated[t] = hT
	}
	cache.decMasks = nn.SequenceMasks(cfg.NFuture, cfg.Units, cfg.Dropout, train, m.rng)
	decOut, decCache := m.decoder.Forward(nn.ApplySequence(repeated, cache.decMasks), hT, cT)
	cache.decCache = decCache
	cache.decOut = decOut

	pred := make([]float64, cfg.NFuture)
	for t, h := range decOut {
		pred[t] = m.output.Forward(h)[0]
	}
	return pred, cache
}

func (m *EncoderDecoder) backward(cache *seq2seqCache, dPred []float64) {
	cfg := m.config

	dDecOut := make([][]float64, cfg.NFuture)
	for t, h := range cache.decOut {
		dDecOut[t] = m.output.Backward(h, []float64{dPred[t]})
	}

	dDecIn, dh0, dc0 := m.decoder.Backward(cache.decCache, dDecOut, nil, nil)
	if cache.decMasks != nil {
		dDecIn = nn.ApplySequence(dDecIn, cache.decMasks)
	}

	// RepeatVector 역전파: 모든 타임스텝 기울기 합산 + 초기 상태 기울기
	dhT := dh0
	for _, d := range dDecIn {
		for j := range dhT {
			dhT[j] += d[j]
		}
	}

	steps := cache.encCache.Steps()
	dEnc := make([][]float64, steps)
	dEnc[steps-1] = dhT
	m.encoder.Backward(cache.encCache, dEnc, nil, dc0)
}
