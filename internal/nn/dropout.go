package nn

import "math/rand"

// DropoutMask draws an inverted-dropout mask: 0 with probability rate,
// 1/(1-rate) otherwise. A zero rate yields all ones.
func DropoutMask(n int, rate float64, rng *rand.Rand) []float64 {
	mask := make([]float64, n)
	if rate <= 0 {
		for i := range mask {
			mask[i] = 1
		}
		return mask
	}
	keep := 1 / (1 - rate)
	for i := range mask {
		if rng.Float64() >= rate {
			mask[i] = keep
		}
	}
	return mask
}

// ApplyMask multiplies x element-wise by mask; a nil mask is identity
func ApplyMask(x, mask []float64) []float64 {
	out := make([]float64, len(x))
	if mask == nil {
		copy(out, x)
		return out
	}
	for i := range x {
		out[i] = x[i] * mask[i]
	}
	return out
}

// SequenceMasks draws one mask per timestep, or nil when not training
func SequenceMasks(steps, width int, rate float64, train bool, rng *rand.Rand) [][]float64 {
	if !train || rate <= 0 {
		return nil
	}
	masks := make([][]float64, steps)
	for t := range masks {
		masks[t] = DropoutMask(width, rate, rng)
	}
	return masks
}

// ApplySequence applies per-timestep masks; nil masks are identity
func ApplySequence(xs [][]float64, masks [][]float64) [][]float64 {
	out := make([][]float64, len(xs))
	for t, x := range xs {
		if masks == nil {
			out[t] = x
			continue
		}
		out[t] = ApplyMask(x, masks[t])
	}
	return out
}
