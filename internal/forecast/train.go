package forecast

import (
	"math"
	"math/rand"

	"github.com/wonny/fusion/backend/internal/nn"
)

// History 에폭별 손실 기록
type History struct {
	Loss      []float64 `json:"loss"`
	ValLoss   []float64 `json:"val_loss,omitempty"`
	BestEpoch int       `json:"best_epoch"`
	Stopped   bool      `json:"stopped_early"`
}

// sampleStep runs forward+backward for sample i, accumulating gradients,
// and returns its loss
type sampleStep func(i int) float64

// trainEpoch shuffles sample indices, accumulates gradients per mini-batch
// and applies one optimizer step per batch. It returns the mean sample loss.
func trainEpoch(n, batchSize int, params []*nn.Param, opt *nn.Adam, rng *rand.Rand, step sampleStep) float64 {
	if batchSize <= 0 {
		batchSize = 32
	}
	order := rng.Perm(n)

	total := 0.0
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}

		nn.ZeroGrads(params)
		for _, i := range order[start:end] {
			total += step(i)
		}
		scale := 1 / float64(end-start)
		for _, p := range params {
			p.ScaleGrad(scale)
		}
		opt.Step(params)
	}
	return total / float64(n)
}

// earlyStopping tracks the best validation loss and its weights
type earlyStopping struct {
	patience int
	best     float64
	bestAt   int
	wait     int
	snapshot [][]float64
}

func newEarlyStopping(patience int) *earlyStopping {
	return &earlyStopping{patience: patience, best: math.Inf(1), bestAt: -1}
}

// observe records the epoch result and reports whether training should stop
func (e *earlyStopping) observe(epoch int, valLoss float64, params []*nn.Param) bool {
	if valLoss < e.best {
		e.best = valLoss
		e.bestAt = epoch
		e.wait = 0
		e.snapshot = nn.Snapshot(params)
		return false
	}
	e.wait++
	return e.patience > 0 && e.wait >= e.patience
}

// restore writes the best weights back
func (e *earlyStopping) restore(params []*nn.Param) {
	if e.snapshot != nil {
		nn.Restore(params, e.snapshot)
	}
}
