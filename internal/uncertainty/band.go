package uncertainty

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Band is a symmetric confidence band around a point forecast
type Band struct {
	Lower []float64 `json:"lower_bound"`
	Upper []float64 `json:"upper_bound"`
	Std   float64   `json:"std"`
}

// AnalyticBand widens the forecast by σ·√i where σ is the sample std of
// the daily returns of closes scaled by the last close and i is the
// 0-based step index (the first step has zero width)
// ⭐ SSOT: 해석적 신뢰구간 계산은 여기서만
func AnalyticBand(forecast, closes []float64) Band {
	std := 0.0
	if len(closes) > 0 {
		std = ReturnStd(closes) * closes[len(closes)-1]
	}
	return BandFromStd(forecast, std)
}

// BandFromStd builds forecast ± std·√i; a negative or NaN std is treated as 0
func BandFromStd(forecast []float64, std float64) Band {
	if std < 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		std = 0
	}
	b := Band{
		Lower: make([]float64, len(forecast)),
		Upper: make([]float64, len(forecast)),
		Std:   std,
	}
	for i, f := range forecast {
		w := std * math.Sqrt(float64(i))
		b.Lower[i] = f - w
		b.Upper[i] = f + w
	}
	return b
}

// ReturnStd is the sample std of simple daily returns; 0 when undefined
func ReturnStd(closes []float64) float64 {
	returns := PctReturns(closes)
	if len(returns) < 2 {
		return 0
	}
	std := stat.StdDev(returns, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}

// PctReturns returns close[i]/close[i-1]-1, skipping zero denominators
func PctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}
