package nn

import "math"

// Adam is the Adam optimizer with bias correction
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t int
}

// NewAdam creates an optimizer with the usual defaults (β1 .9, β2 .999, ε 1e-7)
func NewAdam(lr float64) *Adam {
	if lr <= 0 {
		lr = 0.001
	}
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Step applies one update from the accumulated gradients
func (a *Adam) Step(params []*Param) {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for _, p := range params {
		if p.m == nil {
			p.m = make([]float64, len(p.Value))
			p.v = make([]float64, len(p.Value))
		}
		for i, g := range p.Grad {
			p.m[i] = a.Beta1*p.m[i] + (1-a.Beta1)*g
			p.v[i] = a.Beta2*p.v[i] + (1-a.Beta2)*g*g
			mHat := p.m[i] / c1
			vHat := p.v[i] / c2
			p.Value[i] -= a.LR * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

// MSE returns the mean squared error and its gradient w.r.t. pred
func MSE(pred, target []float64) (float64, []float64) {
	n := float64(len(pred))
	grad := make([]float64, len(pred))
	loss := 0.0
	for i := range pred {
		d := pred[i] - target[i]
		loss += d * d
		grad[i] = 2 * d / n
	}
	return loss / n, grad
}
