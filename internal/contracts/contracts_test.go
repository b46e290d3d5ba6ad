package contracts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestNewMacroSeriesTable_SortsAndRejectsDuplicates(t *testing.T) {
	table, err := NewMacroSeriesTable([]MacroObservation{
		{Date: day(2), Values: map[string]float64{ColM2: 3}},
		{Date: day(0), Values: map[string]float64{ColM2: 1, ColRRP: math.NaN()}},
		{Date: day(1), Values: map[string]float64{ColM2: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, table.Column(ColM2))
	assert.False(t, table.HasColumn(ColRRP), "NaN is never stored")

	_, err = NewMacroSeriesTable([]MacroObservation{
		{Date: day(0), Values: map[string]float64{ColM2: 1}},
		{Date: day(0), Values: map[string]float64{ColM2: 2}},
	})
	assert.Error(t, err)
}

func TestMacroSeriesTable_Canonicalize(t *testing.T) {
	table, err := NewMacroSeriesTable([]MacroObservation{
		{Date: day(0), Values: map[string]float64{"YieldCurve": 0.1, "T10Y2Y": 9}},
		{Date: day(1), Values: map[string]float64{"T10Y2Y": 9}},
		{Date: day(2), Values: map[string]float64{"YieldCurve": 0.3}},
	})
	require.NoError(t, err)

	canon := table.Canonicalize()
	assert.Equal(t, []float64{0.1, 0.3}, canon.Column(ColYieldSpread))
	assert.False(t, canon.HasColumn("T10Y2Y"))
	assert.False(t, canon.HasColumn("YieldCurve"))
	// 원본은 변경되지 않음
	assert.True(t, table.HasColumn("T10Y2Y"))
}

func TestMacroSeriesTable_WithNetLiquidity(t *testing.T) {
	table, err := NewMacroSeriesTable([]MacroObservation{
		{Date: day(0), Values: map[string]float64{ColFedAssets: 100, ColTGA: 10}},
		{Date: day(1), Values: map[string]float64{ColRRP: 5}},
		{Date: day(2), Values: map[string]float64{ColFedAssets: 120}},
		{Date: day(3), Values: map[string]float64{ColTGA: 20}},
	})
	require.NoError(t, err)

	out := table.WithNetLiquidity()
	assert.Equal(t, []float64{85, 105, 95}, out.Column(ColNetLiquidity))
	assert.False(t, table.HasColumn(ColNetLiquidity))

	v, ok := out.Latest(ColNetLiquidity)
	require.True(t, ok)
	assert.Equal(t, 95.0, v)
}

func TestMacroSeriesTable_WithNetLiquidityMissingInput(t *testing.T) {
	table, err := NewMacroSeriesTable([]MacroObservation{
		{Date: day(0), Values: map[string]float64{ColFedAssets: 100, ColTGA: 10}},
	})
	require.NoError(t, err)
	assert.False(t, table.WithNetLiquidity().HasColumn(ColNetLiquidity))
}

func TestMacroSeriesTable_NilSafe(t *testing.T) {
	var table *MacroSeriesTable
	assert.True(t, table.Empty())
	assert.Equal(t, 0, table.Len())
	assert.Nil(t, table.Column(ColM2))
	_, ok := table.Latest(ColM2)
	assert.False(t, ok)
}

func TestPriceTable_DropMissingClose(t *testing.T) {
	p := &PriceTable{Ticker: "AAPL", Bars: []PriceBar{
		{Date: day(2), Close: 3},
		{Date: day(0), Close: 1},
		{Date: day(1), Close: math.NaN()},
	}}

	clean := p.DropMissingClose()
	assert.Equal(t, 2, clean.Len())
	assert.Equal(t, []float64{1, 3}, clean.Closes())
	last, ok := clean.LastDate()
	require.True(t, ok)
	assert.Equal(t, day(2), last)
}

func TestPriceTable_JoinMacro(t *testing.T) {
	macro, err := NewMacroSeriesTable([]MacroObservation{
		{Date: day(1), Values: map[string]float64{ColNetLiquidity: 10}},
		{Date: day(3), Values: map[string]float64{ColNetLiquidity: 30}},
	})
	require.NoError(t, err)

	p := &PriceTable{Bars: []PriceBar{
		{Date: day(0), Close: 100},
		{Date: day(1), Close: 101},
		{Date: day(2), Close: 102},
		{Date: day(3), Close: 103},
	}}

	rows, dates := p.JoinMacro(macro, ColNetLiquidity)
	assert.Equal(t, [][]float64{{101, 10}, {102, 10}, {103, 30}}, rows)
	assert.Equal(t, []time.Time{day(1), day(2), day(3)}, dates)
}

func TestFundamentalsRecord(t *testing.T) {
	f := FundamentalsRecord{
		KeyRevenueGrowth: 0.12,
		KeyTrailingPE:    json.Number("25.5"),
		"nan":            math.NaN(),
		"text":           "abc",
		KeySector:        "Technology",
		KeyShortName:     "  ",
	}

	v, ok := f.Float(KeyRevenueGrowth)
	assert.True(t, ok)
	assert.Equal(t, 0.12, v)

	v, ok = f.Float(KeyTrailingPE)
	assert.True(t, ok)
	assert.Equal(t, 25.5, v)

	_, ok = f.Float("nan")
	assert.False(t, ok)
	_, ok = f.Float("text")
	assert.False(t, ok)
	_, ok = f.Float("missing")
	assert.False(t, ok)

	assert.Equal(t, "Technology", f.String(KeySector, "Unknown"))
	assert.Equal(t, "AAPL", f.String(KeyShortName, "AAPL"))

	var empty FundamentalsRecord
	assert.Equal(t, "Unknown", empty.String(KeySector, "Unknown"))
}

func TestScoreResult_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(ScoreResult{Ticker: "AAPL", MacroRegime: RegimeNeutral})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{
		"ticker", "company_name", "current_price", "fusion_score", "d1_macro",
		"d2_fundamental", "d3_quant", "d4_timing", "sector", "macro_regime",
	} {
		assert.Contains(t, fields, key)
	}
	assert.Len(t, fields, 10)
}

func TestForecastResult_Validate(t *testing.T) {
	ok := &ForecastResult{
		Dates:      []string{"2024-01-02", "2024-01-03"},
		Historical: []float64{1, 2, 3},
		Forecast:   []float64{1, 2},
		LowerBound: []float64{1, 2},
		UpperBound: []float64{1, 2},
	}
	assert.NoError(t, ok.Validate())

	bad := *ok
	bad.UpperBound = []float64{1}
	assert.Error(t, bad.Validate())
}

func TestAnalysisRunState_Clone(t *testing.T) {
	s := AnalysisRunState{Status: RunCompleted, TopStocks: []ScoreResult{{Ticker: "A"}}}
	c := s.Clone()
	c.TopStocks[0].Ticker = "B"
	assert.Equal(t, "A", s.TopStocks[0].Ticker)
	assert.True(t, c.Terminal())
	assert.False(t, IdleRunState().Terminal())
}
