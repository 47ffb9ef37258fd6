// Package vector provides similarity helpers for embedding vectors.
package vector

import "math"

// Dot returns the inner product of two vectors, or 0 when their sizes differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Norm returns the L2 norm of a vector.
func Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of two vectors.
// Mismatched sizes and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Normalize scales x to unit length in place and returns it.
func Normalize(x []float32) []float32 {
	n := Norm(x)
	if n == 0 {
		return x
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / n)
	}
	return x
}
