package interfaces

import (
	"context"
)

// EmbeddingService generates quality-gated vector embeddings
type EmbeddingService interface {
	// Generate embedding for raw text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate query embedding (kept distinct from document embedding so the
	// two can diverge in prompt treatment later)
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// Generate embeddings for multiple texts in fixed-size paced batches.
	// Results are positional: result[i] belongs to texts[i].
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
