package retrieval

import "math"

// CosineSimilarity computes dot(a,b) / (|a|*|b|). Returns 0 when dimensions
// mismatch or either vector has zero magnitude, keeping ranking total and
// side-effect-free rather than failing a whole search for one bad vector.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
