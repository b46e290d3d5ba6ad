package nn

import "math/rand"

// Dense is a fully connected linear layer y = W·x + b
type Dense struct {
	In, Out int
	W       *Param // Out × In
	B       *Param // Out
}

// NewDense creates a Glorot-initialised dense layer
func NewDense(name string, in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		In:  in,
		Out: out,
		W:   newParam(name+".W", out*in),
		B:   newParam(name+".b", out),
	}
	glorotUniform(d.W, in, out, rng)
	return d
}

// Params returns the trainable tensors
func (d *Dense) Params() []*Param {
	return []*Param{d.W, d.B}
}

// Forward computes W·x + b
func (d *Dense) Forward(x []float64) []float64 {
	y := make([]float64, d.Out)
	for o := 0; o < d.Out; o++ {
		row := d.W.Value[o*d.In : (o+1)*d.In]
		y[o] = d.B.Value[o] + dot(row, x)
	}
	return y
}

// Backward accumulates weight gradients for input x and upstream dy,
// returning the gradient w.r.t. x
func (d *Dense) Backward(x, dy []float64) []float64 {
	dx := make([]float64, d.In)
	for o := 0; o < d.Out; o++ {
		g := dy[o]
		if g == 0 {
			continue
		}
		d.B.Grad[o] += g
		base := o * d.In
		for k := 0; k < d.In; k++ {
			d.W.Grad[base+k] += g * x[k]
			dx[k] += g * d.W.Value[base+k]
		}
	}
	return dx
}
