package contracts

import (
	"math"
	"sort"
	"time"
)

// PriceBar is one daily OHLCV observation.
// A missing close is NaN.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// HasClose reports whether the bar carries a usable close
func (b PriceBar) HasClose() bool {
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0)
}

// PriceTable is the daily price history of one ticker
type PriceTable struct {
	Ticker string     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// Len returns the number of bars
func (p *PriceTable) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Bars)
}

// DropMissingClose returns a date-sorted copy without null closes
func (p *PriceTable) DropMissingClose() *PriceTable {
	if p == nil {
		return &PriceTable{}
	}
	bars := make([]PriceBar, 0, len(p.Bars))
	for _, b := range p.Bars {
		if b.HasClose() {
			bars = append(bars, b)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return &PriceTable{Ticker: p.Ticker, Bars: bars}
}

// Closes returns the close column in bar order
func (p *PriceTable) Closes() []float64 {
	out := make([]float64, p.Len())
	for i, b := range p.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the date column in bar order
func (p *PriceTable) Dates() []time.Time {
	out := make([]time.Time, p.Len())
	for i, b := range p.Bars {
		out[i] = b.Date
	}
	return out
}

// LastDate returns the date of the last bar
func (p *PriceTable) LastDate() (time.Time, bool) {
	if p.Len() == 0 {
		return time.Time{}, false
	}
	return p.Bars[len(p.Bars)-1].Date, true
}

// LastClose returns the close of the last bar
func (p *PriceTable) LastClose() (float64, bool) {
	if p.Len() == 0 {
		return 0, false
	}
	return p.Bars[len(p.Bars)-1].Close, true
}

// JoinMacro aligns closes with a macro column by date, forward-filling
// the macro value. Rows before the first macro observation are dropped.
// Each returned row is [close, macro].
func (p *PriceTable) JoinMacro(table *MacroSeriesTable, column string) ([][]float64, []time.Time) {
	if p.Len() == 0 || table.Empty() || !table.HasColumn(column) {
		return nil, nil
	}

	filled := table.ForwardFill(column)
	rows := make([][]float64, 0, p.Len())
	dates := make([]time.Time, 0, p.Len())

	j := -1
	for _, b := range p.Bars {
		day := truncateDay(b.Date)
		for j+1 < table.Len() && !table.Rows[j+1].Date.After(day) {
			j++
		}
		if j < 0 || math.IsNaN(filled[j]) || !b.HasClose() {
			continue
		}
		rows = append(rows, []float64{b.Close, filled[j]})
		dates = append(dates, b.Date)
	}
	return rows, dates
}
