package fusion

import (
	"math"

	"github.com/wonny/fusion/backend/internal/contracts"
)

const (
	// 매출 성장률 -20% → 0점, +40% → 100점
	revenueGrowthLow  = -0.2
	revenueGrowthHigh = 0.4

	fairPE = 20.0
)

// FundamentalDetails holds the D2 intermediates
type FundamentalDetails struct {
	RevenueGrowth float64 `json:"revenue_growth"`
	GrowthScore   float64 `json:"growth_score"`
	TrailingPE    float64 `json:"trailing_pe"`
	HasPE         bool    `json:"has_pe"`
	PEScore       float64 `json:"pe_score"`
	Score         float64 `json:"score"`
}

// FundamentalScore computes D2 = 0.6·growth + 0.4·valuation.
// Missing revenue growth is treated as 0% growth; missing or
// non-positive P/E is valuation-neutral (50).
func FundamentalScore(f contracts.FundamentalsRecord) FundamentalDetails {
	d := FundamentalDetails{}

	growth, _ := f.Float(contracts.KeyRevenueGrowth)
	d.RevenueGrowth = growth
	d.GrowthScore = scale01(growth, revenueGrowthLow, revenueGrowthHigh) * 100

	pe, ok := f.Float(contracts.KeyTrailingPE)
	d.TrailingPE = pe
	d.HasPE = ok
	d.PEScore = peScore(pe, ok)

	d.Score = clip(d.GrowthScore*0.6+d.PEScore*0.4, 0, 100)
	return d
}

// peScore peaks at P/E 20 and decays by 40 points per 10 of distance, floored at 30
func peScore(pe float64, ok bool) float64 {
	switch {
	case !ok || pe <= 0:
		return 50
	case pe < 5:
		return 60
	case pe > 60:
		return 30
	default:
		return math.Max(30, 100-math.Abs(pe-fairPE)/10*40)
	}
}
