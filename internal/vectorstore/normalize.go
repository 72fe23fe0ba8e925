package vectorstore

import "math"

// Epsilon is added to the norm so the zero vector normalises to itself instead of NaN.
const Epsilon = 1e-10

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 5

// Normalize returns a unit-length copy of v.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum) + Epsilon
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Dot returns the inner product over the shared prefix of a and b.
func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
