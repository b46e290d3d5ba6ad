package contracts

import "fmt"

// ForecastResult is a point forecast with its uncertainty band.
// Dates, Forecast, LowerBound and UpperBound always have the same length.
type ForecastResult struct {
	Dates      []string  `json:"dates"`
	Historical []float64 `json:"historical"`
	Forecast   []float64 `json:"forecast"`
	LowerBound []float64 `json:"lower_bound"`
	UpperBound []float64 `json:"upper_bound"`
}

// Validate checks the length invariant
func (f *ForecastResult) Validate() error {
	n := len(f.Forecast)
	if len(f.Dates) != n || len(f.LowerBound) != n || len(f.UpperBound) != n {
		return fmt.Errorf("forecast length mismatch: dates=%d forecast=%d lower=%d upper=%d",
			len(f.Dates), n, len(f.LowerBound), len(f.UpperBound))
	}
	return nil
}

// FanChart holds percentile paths of a simulated forecast.
// Each percentile slice has one value per future step.
type FanChart struct {
	RunID           string    `json:"run_id"`
	Ticker          string    `json:"ticker"`
	Dates           []string  `json:"dates"`
	HistoricalDates []string  `json:"historical_dates"`
	Historical      []float64 `json:"historical"`
	Forecast        []float64 `json:"forecast"`
	P5              []float64 `json:"p5"`
	P20             []float64 `json:"p20"`
	P50             []float64 `json:"p50"`
	P80             []float64 `json:"p80"`
	P95             []float64 `json:"p95"`
	ResidualStd     float64   `json:"residual_std"`
	Simulations     int       `json:"simulations"`
}
