package contracts

// Regime is the macro environment classification
type Regime string

const (
	RegimeRiskOff Regime = "Risk-Off"
	RegimeNeutral Regime = "Neutral"
	RegimeRiskOn  Regime = "Risk-On"
)

// MacroReading is the macro score and regime shared by every ticker of a run
type MacroReading struct {
	Score  float64 `json:"score"`
	Regime Regime  `json:"regime"`
}

// NeutralMacro is the reading used when no macro data is available
func NeutralMacro() MacroReading {
	return MacroReading{Score: 50, Regime: RegimeNeutral}
}

// ScoreResult is the fused four-dimension score of one ticker.
// Every numeric field is always present; missing inputs resolve to neutral scores.
// ⭐ SSOT: API 응답 필드명은 여기서만 정의
type ScoreResult struct {
	Ticker        string  `json:"ticker"`
	CompanyName   string  `json:"company_name"`
	CurrentPrice  float64 `json:"current_price"`
	FusionScore   float64 `json:"fusion_score"`
	D1Macro       float64 `json:"d1_macro"`
	D2Fundamental float64 `json:"d2_fundamental"`
	D3Quant       float64 `json:"d3_quant"`
	D4Timing      float64 `json:"d4_timing"`
	Sector        string  `json:"sector"`
	MacroRegime   Regime  `json:"macro_regime"`
}
