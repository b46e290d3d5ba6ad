package uncertainty

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Percentile 백분위수 계산 (정렬된 입력, 선형 보간)
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// 선형 보간
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// ResidualStd 예측 잔차(actual - pred)의 모표준편차
// pred/actual: samples × steps
func ResidualStd(pred, actual [][]float64) float64 {
	var residuals []float64
	for i := range pred {
		if i >= len(actual) {
			break
		}
		for k := range pred[i] {
			if k >= len(actual[i]) {
				break
			}
			residuals = append(residuals, actual[i][k]-pred[i][k])
		}
	}
	if len(residuals) == 0 {
		return 0
	}
	std := stat.PopStdDev(residuals, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}
