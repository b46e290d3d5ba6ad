package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Canonical macro columns
// ⭐ SSOT: 매크로 컬럼 이름은 여기서만 정의
const (
	ColM2           = "M2"
	ColYieldSpread  = "YieldSpread"
	ColFedAssets    = "FedAssets"
	ColTGA          = "TGA"
	ColRRP          = "RRP"
	ColUnemployment = "Unemployment"
	ColHYSpread     = "HYSpread"
	ColNetLiquidity = "NetLiquidity"
)

// ColumnAliases maps a canonical column to the names it may arrive under.
// Order matters: the first alias present in a table wins.
var ColumnAliases = map[string][]string{
	ColYieldSpread: {"YieldSpread", "YieldCurve", "T10Y2Y"},
}

// MacroObservation is one dated row of the macro table.
// A column missing from Values is null for that date.
type MacroObservation struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// MacroSeriesTable is a date-indexed table of economic indicators.
// Rows are kept in strictly increasing date order.
type MacroSeriesTable struct {
	Rows []MacroObservation `json:"rows"`
}

// NewMacroSeriesTable sorts rows by date and rejects duplicate dates
func NewMacroSeriesTable(rows []MacroObservation) (*MacroSeriesTable, error) {
	sorted := make([]MacroObservation, 0, len(rows))
	for _, r := range rows {
		values := make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			values[k] = v
		}
		sorted = append(sorted, MacroObservation{Date: truncateDay(r.Date), Values: values})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Date.After(sorted[i-1].Date) {
			return nil, fmt.Errorf("duplicate macro date %s", sorted[i].Date.Format("2006-01-02"))
		}
	}

	return &MacroSeriesTable{Rows: sorted}, nil
}

// Empty reports whether the table has no rows
func (t *MacroSeriesTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Len returns the number of rows
func (t *MacroSeriesTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether any row carries a value for name
func (t *MacroSeriesTable) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, r := range t.Rows {
		if _, ok := r.Values[name]; ok {
			return true
		}
	}
	return false
}

// Columns returns the sorted set of column names present in the table
func (t *MacroSeriesTable) Columns() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		for k := range r.Values {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Column returns the non-null values of name in date order
func (t *MacroSeriesTable) Column(name string) []float64 {
	if t == nil {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if v, ok := r.Values[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Latest returns the most recent non-null value of name
func (t *MacroSeriesTable) Latest(name string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	for i := len(t.Rows) - 1; i >= 0; i-- {
		if v, ok := t.Rows[i].Values[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// LastDate returns the date of the last row
func (t *MacroSeriesTable) LastDate() (time.Time, bool) {
	if t.Empty() {
		return time.Time{}, false
	}
	return t.Rows[len(t.Rows)-1].Date, true
}

// ResolveColumn returns the first of names present in the table
func (t *MacroSeriesTable) ResolveColumn(names []string) (string, bool) {
	for _, name := range names {
		if t.HasColumn(name) {
			return name, true
		}
	}
	return "", false
}

// Canonicalize renames aliased columns to their canonical name.
// For each canonical column the first alias present is kept; the
// remaining aliases are dropped so each concept has exactly one column.
func (t *MacroSeriesTable) Canonicalize() *MacroSeriesTable {
	if t == nil {
		return &MacroSeriesTable{}
	}

	rename := make(map[string]string)
	drop := make(map[string]struct{})
	for canonical, aliases := range ColumnAliases {
		chosen, ok := t.ResolveColumn(aliases)
		if !ok {
			continue
		}
		for _, a := range aliases {
			if a == chosen {
				rename[a] = canonical
			} else {
				drop[a] = struct{}{}
			}
		}
	}

	rows := make([]MacroObservation, len(t.Rows))
	for i, r := range t.Rows {
		values := make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			if _, skip := drop[k]; skip {
				continue
			}
			if to, ok := rename[k]; ok {
				k = to
			}
			values[k] = v
		}
		rows[i] = MacroObservation{Date: r.Date, Values: values}
	}
	return &MacroSeriesTable{Rows: rows}
}

// ForwardFill returns the values of name carried forward over null dates.
// Dates before the first observation are NaN.
func (t *MacroSeriesTable) ForwardFill(name string) []float64 {
	out := make([]float64, t.Len())
	last := math.NaN()
	for i, r := range t.Rows {
		if v, ok := r.Values[name]; ok {
			last = v
		}
		out[i] = last
	}
	return out
}

// WithNetLiquidity derives NetLiquidity = FedAssets - TGA - RRP from
// forward-filled inputs. Rows where any input has no prior observation
// stay null. A table missing any input is returned unchanged.
func (t *MacroSeriesTable) WithNetLiquidity() *MacroSeriesTable {
	if t == nil {
		return &MacroSeriesTable{}
	}
	if !t.HasColumn(ColFedAssets) || !t.HasColumn(ColTGA) || !t.HasColumn(ColRRP) {
		return t
	}

	fed := t.ForwardFill(ColFedAssets)
	tga := t.ForwardFill(ColTGA)
	rrp := t.ForwardFill(ColRRP)

	rows := make([]MacroObservation, len(t.Rows))
	for i, r := range t.Rows {
		values := make(map[string]float64, len(r.Values)+1)
		for k, v := range r.Values {
			values[k] = v
		}
		net := fed[i] - tga[i] - rrp[i]
		if !math.IsNaN(net) {
			values[ColNetLiquidity] = net
		}
		rows[i] = MacroObservation{Date: r.Date, Values: values}
	}
	return &MacroSeriesTable{Rows: rows}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
