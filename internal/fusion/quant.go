package fusion

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	momentumPeriod = 60
	volWindow      = 60
	rsiPeriod      = 14

	momentumLow  = -0.3
	momentumHigh = 0.5
	volLow       = 0.10
	volHigh      = 0.60
)

// QuantDetails holds the D3 intermediates
type QuantDetails struct {
	Return60      float64 `json:"return_60"`
	MomentumScore float64 `json:"momentum_score"`
	Volatility    float64 `json:"volatility"`
	VolScore      float64 `json:"vol_score"`
	RSI           float64 `json:"rsi"`
	RSIScore      float64 `json:"rsi_score"`
	Score         float64 `json:"score"`
}

// QuantScore computes D3 = 0.5·momentum + 0.3·(inverted volatility) + 0.2·RSI.
// closes must be chronological.
func QuantScore(closes []float64) QuantDetails {
	d := QuantDetails{}

	d.Return60 = periodReturn(closes, momentumPeriod)
	d.MomentumScore = scale01(d.Return60, momentumLow, momentumHigh) * 100

	d.Volatility = returnVolatility(closes, volWindow)
	d.VolScore = (1 - scale01(d.Volatility, volLow, volHigh)) * 100

	d.RSI = RSI(closes, rsiPeriod)
	d.RSIScore = rsiScore(d.RSI)

	d.Score = clip(d.MomentumScore*0.5+d.VolScore*0.3+d.RSIScore*0.2, 0, 100)
	return d
}

// periodReturn compares the last close with the close `period` rows from the end
func periodReturn(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	past := closes[len(closes)-period]
	if past == 0 {
		return 0
	}
	return closes[len(closes)-1]/past - 1
}

// returnVolatility is the sample std of the last `window` daily returns
// (all returns when fewer are available)
func returnVolatility(closes []float64, window int) float64 {
	returns := pctChange(closes)
	if len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	if len(returns) < 2 {
		return 0
	}
	std := stat.StdDev(returns, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}

// RSI computes the Wilder-smoothed relative strength index of the series.
// The first average is a simple mean of `period` changes. NaN when
// undefined (too short or no movement at all).
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return math.NaN()
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgGain == 0 && avgLoss == 0 {
		return math.NaN()
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// rsiScore rewards RSI near 50 and penalises overbought/oversold, floored at 30
func rsiScore(rsi float64) float64 {
	if math.IsNaN(rsi) {
		return 50
	}
	return math.Max(30, 100-math.Abs(rsi-50)/50*50)
}

func pctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}
