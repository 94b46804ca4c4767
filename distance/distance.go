// Package distance provides the float32 vector kernels used by the MIP
// reductions: inner products, Euclidean norms and in-place scaling.
// All kernels delegate to SIMD-accelerated implementations from
// github.com/viterin/vek when the CPU supports them.
package distance

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Dot calculates the inner product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	d := vek32.Distance(a, b)
	return d * d
}

// Norm calculates the Euclidean norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(vek32.Dot(v, v))))
}

// ScaleInPlace multiplies every coordinate of v by s.
func ScaleInPlace(v []float32, s float32) {
	vek32.MulNumber_Inplace(v, s)
}

// ScaledCopy returns a copy of src with every coordinate multiplied by s.
func ScaledCopy(src []float32, s float32) []float32 {
	dst := make([]float32, len(src))
	copy(dst, src)
	vek32.MulNumber_Inplace(dst, s)
	return dst
}
