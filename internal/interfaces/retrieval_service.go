package interfaces

import (
	"context"

	"github.com/ternarybob/memoria/internal/models"
)

// RetrievalService ranks a context's chunks against a query vector.
type RetrievalService interface {
	// Search scores every embeddable chunk in the context against the query
	// vector and returns the top topK by cosine similarity, descending.
	// Chunks whose stored vector is absent or dimension-mismatched are
	// skipped, not errors.
	Search(ctx context.Context, contextID string, queryVector []float32, topK int) ([]*models.RetrievalResult, error)
}
