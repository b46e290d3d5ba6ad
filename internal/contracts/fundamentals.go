package contracts

import (
	"encoding/json"
	"math"
	"strings"
)

// Fundamentals keys read by the scorer
const (
	KeyRevenueGrowth = "revenueGrowth"
	KeyTrailingPE    = "trailingPE"
	KeySector        = "sector"
	KeyShortName     = "shortName"
)

// FundamentalsRecord is a loosely-typed key/value map of company
// fundamentals. Any key may be absent.
type FundamentalsRecord map[string]interface{}

// Float returns a numeric value; absent, non-numeric and NaN values are reported as missing
func (f FundamentalsRecord) Float(key string) (float64, bool) {
	raw, ok := f[key]
	if !ok || raw == nil {
		return 0, false
	}

	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// String returns a non-empty string value or def
func (f FundamentalsRecord) String(key, def string) string {
	if s, ok := f[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
