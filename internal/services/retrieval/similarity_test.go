package retrieval

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"dimension mismatch", []float32{1, 2, 3}, []float32{1, 2}, 0.0},
		{"empty vectors", []float32{}, []float32{}, 0.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityRange(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.5, 0.8, -0.4}

	got := CosineSimilarity(a, b)
	if got < -1.0 || got > 1.0 {
		t.Errorf("similarity %v outside [-1, 1]", got)
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2}
	b := []float32{-0.1, 0.5, 0.8}

	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("similarity is not symmetric")
	}
}
