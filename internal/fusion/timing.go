package fusion

import "math"

// TimingDetails holds the D4 intermediates
type TimingDetails struct {
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	Score20    float64 `json:"score20"`
	Score50    float64 `json:"score50"`
	GoldenBias bool    `json:"golden_bias"`
	Score      float64 `json:"score"`
}

// TimingScore computes D4 from the distance of price to SMA20/SMA50.
// Price on the average scores 100, each 1% away costs 1.5 points down
// to 30; a +5 bonus applies when SMA20 is above SMA50.
func TimingScore(closes []float64) TimingDetails {
	d := TimingDetails{}
	if len(closes) == 0 {
		d.Score = 50
		return d
	}

	price := closes[len(closes)-1]
	sma20, ok20 := sma(closes, 20)
	sma50, ok50 := sma(closes, 50)
	if !ok20 || !ok50 {
		// 이동평균 계산 불가 시 중립
		d.Score = 50
		return d
	}

	d.SMA20 = sma20
	d.SMA50 = sma50
	d.Score20 = distanceScore(price, sma20)
	d.Score50 = distanceScore(price, sma50)
	d.GoldenBias = sma20 > sma50

	score := d.Score20*0.5 + d.Score50*0.5
	if d.GoldenBias {
		score += 5
	}
	d.Score = clip(score, 0, 100)
	return d
}

func distanceScore(price, avg float64) float64 {
	ratio := 1.0
	if avg > 0 {
		ratio = price / avg
	}
	return clip(100-math.Abs(ratio-1)*150, 30, 100)
}

func sma(values []float64, period int) (float64, bool) {
	if len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}
