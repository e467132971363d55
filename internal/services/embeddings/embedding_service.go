package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"golang.org/x/time/rate"
)

// ErrInvalidEmbedding indicates the provider returned a vector that failed
// the quality gate (wrong dimension, non-finite, or out-of-range values).
var ErrInvalidEmbedding = errors.New("invalid embedding")

// Service implements EmbeddingService interface. Batch generation runs in
// fixed-size groups paced by a rate limiter so provider rate limits are
// respected with explicit pacing rather than retry loops.
type Service struct {
	llmService   interfaces.LLMService
	dimension    int
	batchSize    int
	maxMagnitude float64
	limiter      *rate.Limiter
	logger       arbor.ILogger
}

// NewService creates a new embedding service
func NewService(llmService interfaces.LLMService, config *common.EmbeddingConfig, logger arbor.ILogger) interfaces.EmbeddingService {
	interval, err := time.ParseDuration(config.BatchInterval)
	if err != nil || interval <= 0 {
		interval = time.Second
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	return &Service{
		llmService:   llmService,
		dimension:    config.Dimension,
		batchSize:    batchSize,
		maxMagnitude: config.MaxMagnitude,
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		logger:       logger,
	}
}

// GenerateEmbedding creates a quality-gated vector embedding for text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	start := time.Now()
	embedding, err := s.llmService.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := s.validate(embedding); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("provider", string(s.llmService.GetProvider())).
			Int("embedding_dim", len(embedding)).
			Dur("duration", duration).
			Msg("Generated embedding")
	}

	return embedding, nil
}

// GenerateQueryEmbedding generates embedding for a search query
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	// Queries currently get the same treatment as document text
	return s.GenerateEmbedding(ctx, query)
}

// GenerateEmbeddings embeds texts in fixed-size batches. The limiter gates
// each batch; a failure anywhere aborts the whole call since positional
// results would otherwise be ambiguous.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	results := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding batch cancelled: %w", err)
		}

		for i := start; i < end; i++ {
			embedding, err := s.GenerateEmbedding(ctx, texts[i])
			if err != nil {
				return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
			}
			results = append(results, embedding)
		}

		if s.logger != nil {
			s.logger.Debug().
				Int("batch_start", start).
				Int("batch_end", end).
				Int("total", len(texts)).
				Msg("Embedded batch")
		}
	}

	return results, nil
}

// validate applies the quality gate: fixed dimension, finite values, and
// magnitude within range. A vector failing any check is rejected outright.
func (s *Service) validate(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: provider returned empty vector", ErrInvalidEmbedding)
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return fmt.Errorf("%w: dimension %d, expected %d", ErrInvalidEmbedding, len(embedding), s.dimension)
	}

	maxMag := s.maxMagnitude
	if maxMag <= 0 {
		maxMag = 10
	}

	for i, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidEmbedding, i)
		}
		if math.Abs(f) > maxMag {
			return fmt.Errorf("%w: value %f at index %d exceeds magnitude %f", ErrInvalidEmbedding, f, i, maxMag)
		}
	}

	return nil
}

// ModelName returns the model name
func (s *Service) ModelName() string {
	return string(s.llmService.GetProvider())
}

// Dimension returns the embedding dimension
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable checks if the underlying LLM service is reachable
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.llmService.HealthCheck(ctx) == nil
}
