package vector

import (
	"fmt"
	"math"
)

// Cosine computes the cosine similarity of two vectors: dot product over
// the product of norms, accumulated in float64. By definition the result
// is 0 when either vector has zero norm, which also guards the division.
// Vectors of different lengths are malformed and return an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
