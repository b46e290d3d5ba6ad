package macro

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fusion/backend/internal/contracts"
	"github.com/wonny/fusion/backend/pkg/logger"
)

const (
	// MinObservations is the history needed before a z-score is trusted
	MinObservations = 30
	// ZClip bounds every z-score
	ZClip = 3.0

	riskOffBelow = 40.0
	riskOnAbove  = 60.0
)

// Direction says whether a rising indicator is good (+1) or bad (-1) for risk assets
type Direction int

const (
	Positive Direction = 1
	Negative Direction = -1
)

// Indicator is one component of the macro score
type Indicator struct {
	Name      string
	Columns   []string // 첫 번째로 존재하는 컬럼 사용
	Direction Direction
	MaxImpact float64
	Weight    float64
}

// DefaultIndicators returns the four macro components
// ⭐ SSOT: 매크로 지표 가중치/영향도는 여기서만 정의
func DefaultIndicators() []Indicator {
	return []Indicator{
		{Name: "liquidity", Columns: []string{contracts.ColNetLiquidity}, Direction: Positive, MaxImpact: 40, Weight: 0.35},
		{Name: "yield_curve", Columns: contracts.ColumnAliases[contracts.ColYieldSpread], Direction: Positive, MaxImpact: 30, Weight: 0.25},
		{Name: "employment", Columns: []string{contracts.ColUnemployment}, Direction: Negative, MaxImpact: 30, Weight: 0.20},
		{Name: "credit", Columns: []string{contracts.ColHYSpread}, Direction: Negative, MaxImpact: 35, Weight: 0.20},
	}
}

// Component is the evaluated state of one indicator
type Component struct {
	Name      string  `json:"name"`
	Column    string  `json:"column,omitempty"`
	Present   bool    `json:"present"`
	Latest    float64 `json:"latest"`
	ZScore    float64 `json:"z_score"`
	SubScore  float64 `json:"sub_score"`
	Weight    float64 `json:"weight"`
	Effective float64 `json:"effective_weight"`
}

// Breakdown is the full macro evaluation
type Breakdown struct {
	Score      float64          `json:"score"`
	Regime     contracts.Regime `json:"regime"`
	AsOf       string           `json:"as_of,omitempty"`
	Components []Component      `json:"components"`
}

// Reading returns the score and regime as a contracts.MacroReading
func (b Breakdown) Reading() contracts.MacroReading {
	return contracts.MacroReading{Score: b.Score, Regime: b.Regime}
}

// Scorer turns a macro table into a 0-100 regime score
type Scorer struct {
	indicators []Indicator
	logger     *logger.Logger
}

// NewScorer creates a scorer with the default indicators
func NewScorer(log *logger.Logger) *Scorer {
	return &Scorer{
		indicators: DefaultIndicators(),
		logger:     log.WithComponent("macro"),
	}
}

// Score returns the macro score and regime. An empty table is neutral.
func (s *Scorer) Score(table *contracts.MacroSeriesTable) (float64, contracts.Regime) {
	b := s.Evaluate(table)
	return b.Score, b.Regime
}

// Evaluate scores every indicator and combines the present ones with
// renormalised weights
func (s *Scorer) Evaluate(table *contracts.MacroSeriesTable) Breakdown {
	b := Breakdown{Components: make([]Component, 0, len(s.indicators))}
	if d, ok := table.LastDate(); ok {
		b.AsOf = d.Format("2006-01-02")
	}

	totalWeight := 0.0
	for _, ind := range s.indicators {
		comp := Component{Name: ind.Name, Weight: ind.Weight, SubScore: 50}

		col, ok := table.ResolveColumn(ind.Columns)
		if ok {
			values := table.Column(col)
			comp.Column = col
			comp.Present = true
			comp.Latest = values[len(values)-1]
			comp.ZScore = ZScore(values)
			comp.SubScore = ScaleToScore(comp.ZScore, ind.Direction, ind.MaxImpact)
			totalWeight += ind.Weight
		}

		b.Components = append(b.Components, comp)
	}

	if totalWeight == 0 {
		b.Score = 50
		b.Regime = ClassifyRegime(b.Score)
		s.logger.Warn("No macro indicators available, using neutral score")
		return b
	}

	score := 0.0
	for i := range b.Components {
		c := &b.Components[i]
		if !c.Present {
			continue
		}
		c.Effective = c.Weight / totalWeight
		score += c.SubScore * c.Effective
	}

	b.Score = clip(score, 0, 100)
	b.Regime = ClassifyRegime(b.Score)

	s.logger.WithFields(map[string]interface{}{
		"score":  b.Score,
		"regime": b.Regime,
		"as_of":  b.AsOf,
	}).Debug("Calculated macro score")

	return b
}

// ZScore returns the clipped z-score of the last value against the whole
// history. Fewer than MinObservations values or zero dispersion yield 0.
func ZScore(values []float64) float64 {
	if len(values) < MinObservations {
		return 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	// 상수 시계열의 부동소수 잔차는 분산 0으로 취급
	if math.IsNaN(std) || std <= 1e-12*math.Max(1, math.Abs(mean)) {
		return 0
	}
	z := (values[len(values)-1] - mean) / std
	return clip(z, -ZClip, ZClip)
}

// ScaleToScore maps a z-score to 50 ± z·maxImpact/2 with the indicator
// direction, clipped to [0, 100]
func ScaleToScore(z float64, dir Direction, maxImpact float64) float64 {
	return clip(50+float64(dir)*z*maxImpact/2, 0, 100)
}

// ClassifyRegime maps a score to its regime: <40 Risk-Off, 40..60 Neutral, >60 Risk-On
func ClassifyRegime(score float64) contracts.Regime {
	switch {
	case score < riskOffBelow:
		return contracts.RegimeRiskOff
	case score > riskOnAbove:
		return contracts.RegimeRiskOn
	default:
		return contracts.RegimeNeutral
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
