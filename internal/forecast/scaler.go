package forecast

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory 윈도우를 하나도 만들 수 없을 만큼 데이터가 짧음
var ErrInsufficientHistory = errors.New("insufficient history for forecast window")

// MinMaxScaler 피처별 [0,1] 정규화
// 범위가 0인 피처는 0으로 매핑되고 역변환 시 최소값으로 복원된다
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// FitMinMax fits a scaler on rows (samples × features)
func FitMinMax(rows [][]float64) (*MinMaxScaler, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("fit scaler: %w", ErrInsufficientHistory)
	}

	width := len(rows[0])
	s := &MinMaxScaler{
		Min: append([]float64(nil), rows[0]...),
		Max: append([]float64(nil), rows[0]...),
	}
	for _, r := range rows[1:] {
		if len(r) != width {
			return nil, fmt.Errorf("fit scaler: ragged row of width %d, want %d", len(r), width)
		}
		for k, v := range r {
			if v < s.Min[k] {
				s.Min[k] = v
			}
			if v > s.Max[k] {
				s.Max[k] = v
			}
		}
	}
	return s, nil
}

// FitSeries fits a single-feature scaler
func FitSeries(values []float64) (*MinMaxScaler, error) {
	return FitMinMax(columnRows(values))
}

// Features returns the number of fitted features
func (s *MinMaxScaler) Features() int {
	return len(s.Min)
}

// Scale normalises one value of feature k
func (s *MinMaxScaler) Scale(k int, v float64) float64 {
	span := s.Max[k] - s.Min[k]
	if span == 0 {
		return 0
	}
	return (v - s.Min[k]) / span
}

// Inverse maps a normalised value of feature k back: v·(max−min)+min
func (s *MinMaxScaler) Inverse(k int, v float64) float64 {
	return v*(s.Max[k]-s.Min[k]) + s.Min[k]
}

// InverseFunc returns the inverse transform of feature k
func (s *MinMaxScaler) InverseFunc(k int) func(float64) float64 {
	return func(v float64) float64 { return s.Inverse(k, v) }
}

// Transform normalises every row
func (s *MinMaxScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, len(r))
		for k, v := range r {
			out[i][k] = s.Scale(k, v)
		}
	}
	return out
}

// TransformSeries normalises a single-feature series
func (s *MinMaxScaler) TransformSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Scale(0, v)
	}
	return out
}

// InverseSeries maps a normalised single-feature series back
func (s *MinMaxScaler) InverseSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Inverse(0, v)
	}
	return out
}

func columnRows(values []float64) [][]float64 {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	return rows
}
