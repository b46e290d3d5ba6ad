package uncertainty

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultPercentiles 팬 차트 분위수
var DefaultPercentiles = []float64{5, 20, 50, 80, 95}

// MonteCarloConfig 시뮬레이션 설정
type MonteCarloConfig struct {
	NumSimulations int   `json:"num_simulations"`
	Seed           int64 `json:"seed"` // 0이면 시간 기반
}

// DefaultMonteCarloConfig returns 1000 simulations with a time-based seed
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{NumSimulations: 1000}
}

// Fan 시뮬레이션 결과 (스텝별 분위수 경로)
type Fan struct {
	RunID       string            `json:"run_id"`
	Base        []float64         `json:"base"` // 역변환된 기준 예측
	Percentiles map[int][]float64 `json:"percentiles"`
	Lower       []float64         `json:"lower"` // min(P5, base)
	Upper       []float64         `json:"upper"` // max(P95, base)
	ResidualStd float64           `json:"residual_std"`
	Simulations int               `json:"simulations"`
	CreatedAt   time.Time         `json:"created_at"`
}

// MonteCarloSimulator Monte Carlo 시뮬레이터
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator 새 시뮬레이터 생성
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	if config.NumSimulations <= 0 {
		config.NumSimulations = 1000
	}

	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewSource(config.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &MonteCarloSimulator{
		config: config,
		rng:    rng,
	}
}

// Simulate 잔차 기반 경로 시뮬레이션
// base: 정규화 공간의 기준 예측, residualStd: 정규화 공간 잔차 표준편차
// inverse: 정규화 값 → 가격 역변환
// 스텝 k(0부터)의 노이즈는 N(0, σ)·√(k+1)
func (mc *MonteCarloSimulator) Simulate(
	ctx context.Context,
	base []float64,
	residualStd float64,
	inverse func(float64) float64,
) (*Fan, error) {
	if len(base) == 0 {
		return nil, fmt.Errorf("empty base forecast")
	}
	if residualStd < 0 || math.IsNaN(residualStd) {
		residualStd = 0
	}
	if inverse == nil {
		inverse = func(v float64) float64 { return v }
	}

	steps := len(base)
	n := mc.config.NumSimulations

	// 스텝별로 시뮬레이션 값 모음 [step][sim]
	byStep := make([][]float64, steps)
	for k := range byStep {
		byStep[k] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for k := 0; k < steps; k++ {
			noise := mc.rng.NormFloat64() * residualStd * math.Sqrt(float64(k+1))
			byStep[k][i] = inverse(base[k] + noise)
		}
	}

	fan := &Fan{
		RunID:       uuid.New().String(),
		Base:        make([]float64, steps),
		Percentiles: make(map[int][]float64, len(DefaultPercentiles)),
		Lower:       make([]float64, steps),
		Upper:       make([]float64, steps),
		ResidualStd: residualStd,
		Simulations: n,
		CreatedAt:   time.Now(),
	}
	for _, p := range DefaultPercentiles {
		fan.Percentiles[int(p)] = make([]float64, steps)
	}

	for k := 0; k < steps; k++ {
		sorted := byStep[k]
		sort.Float64s(sorted)
		for _, p := range DefaultPercentiles {
			fan.Percentiles[int(p)][k] = Percentile(sorted, p)
		}

		fan.Base[k] = inverse(base[k])
		fan.Lower[k] = math.Min(fan.Percentiles[5][k], fan.Base[k])
		fan.Upper[k] = math.Max(fan.Percentiles[95][k], fan.Base[k])
	}

	return fan, nil
}
