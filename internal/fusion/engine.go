package fusion

import (
	"context"
	"math"
	"strings"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/config"
	"github.com/wonny/fusion/backend/pkg/logger"
)

// MinPriceRows is the history needed to score a ticker
const MinPriceRows = 200

// Breakdown collects every intermediate of one fused score
type Breakdown struct {
	Macro       contracts.MacroReading `json:"macro"`
	Fundamental FundamentalDetails     `json:"fundamental"`
	Quant       QuantDetails           `json:"quant"`
	Timing      TimingDetails          `json:"timing"`
	Final       float64                `json:"final"`
}

// Engine fuses macro, fundamental, quant and timing into one 0-100 score
// ⭐ SSOT: 4D 융합 점수 계산은 여기서만
type Engine struct {
	weights config.FusionWeights
	logger  *logger.Logger
}

// NewEngine creates a fusion engine with the given dimension weights
func NewEngine(weights config.FusionWeights, log *logger.Logger) *Engine {
	return &Engine{
		weights: weights,
		logger:  log.WithComponent("fusion"),
	}
}

// Score scores one ticker. It returns (nil, nil) when fewer than
// MinPriceRows valid closes are available.
func (e *Engine) Score(ctx context.Context, ticker string, prices *contracts.PriceTable, fundamentals contracts.FundamentalsRecord, macro contracts.MacroReading) (*contracts.ScoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := prices.DropMissingClose()
	if clean.Len() < MinPriceRows {
		e.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"rows":   clean.Len(),
		}).Debug("Insufficient price history")
		return nil, nil
	}

	closes := clean.Closes()
	b := e.Evaluate(closes, fundamentals, macro)

	current, _ := clean.LastClose()
	result := &contracts.ScoreResult{
		Ticker:        ticker,
		CompanyName:   fundamentals.String(contracts.KeyShortName, ticker),
		CurrentPrice:  current,
		FusionScore:   b.Final,
		D1Macro:       round1(macro.Score),
		D2Fundamental: round1(b.Fundamental.Score),
		D3Quant:       round1(b.Quant.Score),
		D4Timing:      round1(b.Timing.Score),
		Sector:        fundamentals.String(contracts.KeySector, "Unknown"),
		MacroRegime:   macro.Regime,
	}

	e.logger.WithFields(map[string]interface{}{
		"ticker":         ticker,
		"fusion_score":   result.FusionScore,
		"d2":             result.D2Fundamental,
		"d3":             result.D3Quant,
		"d4":             result.D4Timing,
		"return_60":      b.Quant.Return60,
		"rsi":            b.Quant.RSI,
		"revenue_growth": b.Fundamental.RevenueGrowth,
	}).Debug("Calculated fusion score")

	return result, nil
}

// Evaluate computes every dimension from chronological closes
func (e *Engine) Evaluate(closes []float64, fundamentals contracts.FundamentalsRecord, macro contracts.MacroReading) Breakdown {
	b := Breakdown{
		Macro:       macro,
		Fundamental: FundamentalScore(fundamentals),
		Quant:       QuantScore(closes),
		Timing:      TimingScore(closes),
	}
	b.Final = Combine(e.weights, macro.Score, b.Fundamental.Score, b.Quant.Score, b.Timing.Score)
	return b
}

// Combine applies the dimension weights and rounds to one decimal
func Combine(w config.FusionWeights, d1, d2, d3, d4 float64) float64 {
	return round1(w.Macro*d1 + w.Fundamental*d2 + w.Quant*d3 + w.Timing*d4)
}

// NormalizeTicker upper-cases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func scale01(v, lo, hi float64) float64 {
	return clip((v-lo)/(hi-lo), 0, 1)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
