package forecast

import "fmt"

// SingleStepWindows builds (lookback × 1) inputs and next-value targets
// from a normalised series: X[i] = s[i-lookback:i], y[i] = s[i].
func SingleStepWindows(series []float64, lookback int) ([][][]float64, []float64, error) {
	if lookback <= 0 {
		return nil, nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	if len(series) <= lookback {
		return nil, nil, fmt.Errorf("%d values for lookback %d: %w", len(series), lookback, ErrInsufficientHistory)
	}

	n := len(series) - lookback
	X := make([][][]float64, n)
	y := make([]float64, n)
	for i := lookback; i < len(series); i++ {
		X[i-lookback] = columnRows(series[i-lookback : i])
		y[i-lookback] = series[i]
	}
	return X, y, nil
}

// MultiStepWindows builds (nPast × features) inputs and (nFuture) targets
// of column target from normalised rows, for i in [nPast, len-nFuture].
func MultiStepWindows(rows [][]float64, target, nPast, nFuture int) ([][][]float64, [][]float64, error) {
	if nPast <= 0 || nFuture <= 0 {
		return nil, nil, fmt.Errorf("n_past and n_future must be positive, got %d/%d", nPast, nFuture)
	}

	n := len(rows) - nFuture - nPast + 1
	if n <= 0 {
		return nil, nil, fmt.Errorf("%d rows for n_past %d + n_future %d: %w", len(rows), nPast, nFuture, ErrInsufficientHistory)
	}
	if target < 0 || target >= len(rows[0]) {
		return nil, nil, fmt.Errorf("target column %d out of range", target)
	}

	X := make([][][]float64, 0, n)
	Y := make([][]float64, 0, n)
	for i := nPast; i <= len(rows)-nFuture; i++ {
		X = append(X, rows[i-nPast:i])
		y := make([]float64, nFuture)
		for k := 0; k < nFuture; k++ {
			y[k] = rows[i+k][target]
		}
		Y = append(Y, y)
	}
	return X, Y, nil
}

// SplitTrainTest splits samples at int(n·ratio), keeping order
func SplitTrainTest[T any](samples []T, ratio float64) ([]T, []T) {
	idx := int(float64(len(samples)) * ratio)
	return samples[:idx], samples[idx:]
}
