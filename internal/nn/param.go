// Package nn implements the small set of recurrent network layers used by
// the forecasters: LSTM, Dense and Dropout, trained with Adam on MSE.
// Layers are stateless per sample: Forward returns a cache that the
// matching Backward consumes, and gradients accumulate on the Params.
package nn

import (
	"math"
	"math/rand"
)

// Param is one trainable tensor flattened row-major
type Param struct {
	Name  string
	Value []float64
	Grad  []float64

	m, v []float64 // Adam moments
}

func newParam(name string, n int) *Param {
	return &Param{
		Name:  name,
		Value: make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// ZeroGrad clears the accumulated gradient
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// ScaleGrad multiplies the accumulated gradient by s
func (p *Param) ScaleGrad(s float64) {
	for i := range p.Grad {
		p.Grad[i] *= s
	}
}

// glorotUniform fills p with U(-limit, limit), limit = sqrt(6/(fanIn+fanOut))
func glorotUniform(p *Param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * limit
	}
}

// ZeroGrads clears the gradients of every param
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Snapshot copies the current values of params
func Snapshot(params []*Param) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p.Value...)
	}
	return out
}

// Restore writes a snapshot back into params
func Restore(params []*Param, snap [][]float64) {
	for i, p := range params {
		copy(p.Value, snap[i])
	}
}

// Count returns the total number of scalar weights
func Count(params []*Param) int {
	n := 0
	for _, p := range params {
		n += len(p.Value)
	}
	return n
}
