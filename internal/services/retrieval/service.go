package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
)

// Service implements RetrievalService over chunk storage
type Service struct {
	chunks interfaces.ChunkStorage
	logger arbor.ILogger
}

// NewService creates a new retrieval service
func NewService(chunks interfaces.ChunkStorage, logger arbor.ILogger) interfaces.RetrievalService {
	return &Service{
		chunks: chunks,
		logger: logger,
	}
}

// Search scores every chunk in the context against the query vector and
// returns the top topK results sorted by similarity descending. Chunks
// without a usable vector are skipped and logged, never treated as errors.
func (s *Service) Search(ctx context.Context, contextID string, queryVector []float32, topK int) ([]*models.RetrievalResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		topK = 5
	}

	chunks, err := s.chunks.GetChunksByContext(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	results := make([]*models.RetrievalResult, 0, len(chunks))
	skipped := 0

	for _, chunk := range chunks {
		if !chunk.HasEmbedding() {
			skipped++
			continue
		}
		if len(chunk.Embedding) != len(queryVector) {
			skipped++
			if s.logger != nil {
				s.logger.Warn().
					Str("chunk_id", chunk.ID).
					Int("chunk_dim", len(chunk.Embedding)).
					Int("query_dim", len(queryVector)).
					Msg("Skipping chunk with mismatched embedding dimension")
			}
			continue
		}

		results = append(results, &models.RetrievalResult{
			Chunk:      chunk,
			Similarity: CosineSimilarity(queryVector, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("context_id", contextID).
			Int("candidates", len(chunks)).
			Int("skipped", skipped).
			Int("returned", len(results)).
			Msg("Similarity search complete")
	}

	return results, nil
}
