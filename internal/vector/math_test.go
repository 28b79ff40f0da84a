package vector

import (
	"math"
	"testing"
)

func TestCosine_SelfSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	sim, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-6 {
		t.Errorf("Self-similarity: expected 1.0, got %f", sim)
	}
}

func TestCosine_Bounds(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 0}, {0, 1}},
		{{1, 2, 3}, {-1, -2, -3}},
		{{0.5, 0.5}, {100, -3}},
		{{1, 1, 1}, {2, 2, 2}},
	}
	for i, pair := range pairs {
		sim, err := Cosine(pair[0], pair[1])
		if err != nil {
			t.Fatalf("Pair %d: %v", i, err)
		}
		if sim < -1.0-1e-9 || sim > 1.0+1e-9 {
			t.Errorf("Pair %d: similarity %f out of [-1,1]", i, sim)
		}
	}

	sim, err := Cosine([]float32{1, 2, 3}, []float32{-1, -2, -3})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim-(-1.0)) > 1e-6 {
		t.Errorf("Opposite vectors: expected -1.0, got %f", sim)
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	sim, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim != 0 {
		t.Errorf("Zero vector similarity: expected exactly 0, got %f", sim)
	}

	sim, err = Cosine([]float32{0, 0}, []float32{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if sim != 0 {
		t.Errorf("Both-zero similarity: expected exactly 0, got %f", sim)
	}
}

func TestCosine_LengthMismatch(t *testing.T) {
	if _, err := Cosine([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Error("Expected error for mismatched vector lengths")
	}
}
