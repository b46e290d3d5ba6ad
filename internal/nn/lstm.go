package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// LSTM is a single long short-term memory layer.
// Gate rows are stacked in the order input, forget, candidate, output.
type LSTM struct {
	In, Units int
	Wx        *Param // 4U × In
	Wh        *Param // 4U × U
	B         *Param // 4U
}

// LSTMCache keeps the activations of one forward pass
type LSTMCache struct {
	xs    [][]float64
	hs    [][]float64 // T+1, hs[0] is the initial state
	cs    [][]float64 // T+1
	gates [][]float64 // T × 4U, post-activation
	tanhC [][]float64 // T × U
}

// LastState returns the final hidden and cell state
func (c *LSTMCache) LastState() ([]float64, []float64) {
	return c.hs[len(c.hs)-1], c.cs[len(c.cs)-1]
}

// Steps returns the sequence length of the pass
func (c *LSTMCache) Steps() int {
	return len(c.xs)
}

// NewLSTM creates a Glorot-initialised LSTM with forget-gate bias 1
func NewLSTM(name string, in, units int, rng *rand.Rand) *LSTM {
	l := &LSTM{
		In:    in,
		Units: units,
		Wx:    newParam(name+".Wx", 4*units*in),
		Wh:    newParam(name+".Wh", 4*units*units),
		B:     newParam(name+".b", 4*units),
	}
	glorotUniform(l.Wx, in, 4*units, rng)
	glorotUniform(l.Wh, units, 4*units, rng)
	for j := units; j < 2*units; j++ {
		l.B.Value[j] = 1
	}
	return l
}

// Params returns the trainable tensors
func (l *LSTM) Params() []*Param {
	return []*Param{l.Wx, l.Wh, l.B}
}

// Forward runs the sequence xs (T × In) from the initial state (h0, c0).
// Nil initial states are zeros. It returns the hidden state of every step.
func (l *LSTM) Forward(xs [][]float64, h0, c0 []float64) ([][]float64, *LSTMCache) {
	U := l.Units
	T := len(xs)

	cache := &LSTMCache{
		xs:    xs,
		hs:    make([][]float64, T+1),
		cs:    make([][]float64, T+1),
		gates: make([][]float64, T),
		tanhC: make([][]float64, T),
	}
	cache.hs[0] = initState(h0, U)
	cache.cs[0] = initState(c0, U)

	for t := 0; t < T; t++ {
		x := xs[t]
		hPrev := cache.hs[t]
		cPrev := cache.cs[t]

		z := make([]float64, 4*U)
		for r := 0; r < 4*U; r++ {
			z[r] = l.B.Value[r] +
				floats.Dot(l.Wx.Value[r*l.In:(r+1)*l.In], x) +
				floats.Dot(l.Wh.Value[r*U:(r+1)*U], hPrev)
		}

		h := make([]float64, U)
		c := make([]float64, U)
		tc := make([]float64, U)
		for j := 0; j < U; j++ {
			i := sigmoid(z[j])
			f := sigmoid(z[U+j])
			g := math.Tanh(z[2*U+j])
			o := sigmoid(z[3*U+j])
			z[j], z[U+j], z[2*U+j], z[3*U+j] = i, f, g, o

			c[j] = f*cPrev[j] + i*g
			tc[j] = math.Tanh(c[j])
			h[j] = o * tc[j]
		}

		cache.gates[t] = z
		cache.tanhC[t] = tc
		cache.hs[t+1] = h
		cache.cs[t+1] = c
	}

	return cache.hs[1:], cache
}

// Backward propagates dH (gradient on each step's output, rows may be nil)
// plus dhT/dcT (gradient on the final state, may be nil) through time.
// Weight gradients accumulate; it returns the gradients w.r.t. the inputs
// and the initial state.
func (l *LSTM) Backward(cache *LSTMCache, dH [][]float64, dhT, dcT []float64) ([][]float64, []float64, []float64) {
	U := l.Units
	T := len(cache.xs)

	dXs := make([][]float64, T)
	dhNext := initState(dhT, U)
	dcNext := initState(dcT, U)
	dz := make([]float64, 4*U)

	for t := T - 1; t >= 0; t-- {
		dh := dhNext
		if dH != nil && dH[t] != nil {
			floats.Add(dh, dH[t])
		}

		gates := cache.gates[t]
		tc := cache.tanhC[t]
		cPrev := cache.cs[t]
		hPrev := cache.hs[t]
		x := cache.xs[t]

		dcPrev := make([]float64, U)
		for j := 0; j < U; j++ {
			i, f, g, o := gates[j], gates[U+j], gates[2*U+j], gates[3*U+j]

			do := dh[j] * tc[j]
			dc := dcNext[j] + dh[j]*o*(1-tc[j]*tc[j])

			di := dc * g
			df := dc * cPrev[j]
			dg := dc * i
			dcPrev[j] = dc * f

			dz[j] = di * i * (1 - i)
			dz[U+j] = df * f * (1 - f)
			dz[2*U+j] = dg * (1 - g*g)
			dz[3*U+j] = do * o * (1 - o)
		}

		dx := make([]float64, l.In)
		dhPrev := make([]float64, U)
		for r := 0; r < 4*U; r++ {
			g := dz[r]
			if g == 0 {
				continue
			}
			l.B.Grad[r] += g

			wx := l.Wx.Value[r*l.In : (r+1)*l.In]
			floats.AddScaled(l.Wx.Grad[r*l.In:(r+1)*l.In], g, x)
			floats.AddScaled(dx, g, wx)

			wh := l.Wh.Value[r*U : (r+1)*U]
			floats.AddScaled(l.Wh.Grad[r*U:(r+1)*U], g, hPrev)
			floats.AddScaled(dhPrev, g, wh)
		}

		dXs[t] = dx
		dhNext = dhPrev
		dcNext = dcPrev
	}

	return dXs, dhNext, dcNext
}

func initState(s []float64, n int) []float64 {
	out := make([]float64, n)
	if s != nil {
		copy(out, s)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}
