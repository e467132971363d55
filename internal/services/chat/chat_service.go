package chat

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
	"github.com/ternarybob/memoria/internal/services/retrieval"
)

// historyLimit caps how many stored messages are replayed into the prompt
const historyLimit = 20

// Service implements ChatService: the retrieval-augmented answer pipeline.
// Retrieval failures never fail the request; the answer degrades to the
// conversation alone with explicit empty metadata.
type Service struct {
	llm       interfaces.LLMService
	embedder  interfaces.EmbeddingService
	retriever interfaces.RetrievalService
	messages  interfaces.MessageStorage
	ragConfig *common.RAGConfig
	logger    arbor.ILogger
}

// NewService creates a new chat service
func NewService(
	llm interfaces.LLMService,
	embedder interfaces.EmbeddingService,
	retriever interfaces.RetrievalService,
	messages interfaces.MessageStorage,
	ragConfig *common.RAGConfig,
	logger arbor.ILogger,
) interfaces.ChatService {
	return &Service{
		llm:       llm,
		embedder:  embedder,
		retriever: retriever,
		messages:  messages,
		ragConfig: ragConfig,
		logger:    logger,
	}
}

// Answer runs one chat turn: persist the user message, retrieve and budget
// relevant chunks, compose the prompt, then stream the completion. The
// returned stream's Meta is final before the first delta is read.
func (s *Service) Answer(ctx context.Context, req *interfaces.AnswerRequest) (*interfaces.AnswerStream, error) {
	if req == nil || req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if req.ContextID == "" {
		return nil, fmt.Errorf("context ID is required")
	}

	history, err := s.loadHistory(ctx, req)
	if err != nil {
		// History is an enhancement, not a requirement
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("context_id", req.ContextID).Msg("Failed to load conversation history")
		}
		history = nil
	}

	userMsg := &models.Message{
		ID:        common.NewMessageID(),
		ContextID: req.ContextID,
		UserID:    req.UserID,
		Role:      models.RoleUser,
		Content:   req.Message,
	}
	if err := s.messages.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	selected, meta := s.retrieve(ctx, req.ContextID, req.Message)

	systemPrompt := ComposePrompt(selected, meta.HasContext)

	llmMessages := make([]interfaces.Message, 0, len(history)+2)
	llmMessages = append(llmMessages, interfaces.Message{Role: "system", Content: systemPrompt})
	llmMessages = append(llmMessages, history...)
	llmMessages = append(llmMessages, interfaces.Message{Role: "user", Content: req.Message})

	// The assistant message is created empty and filled in as the stream
	// progresses; its final content is the full answer.
	assistantMsg := &models.Message{
		ID:        common.NewMessageID(),
		ContextID: req.ContextID,
		UserID:    req.UserID,
		Role:      models.RoleAssistant,
		Meta:      meta,
	}
	if err := s.messages.SaveMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	deltas, err := s.llm.ChatStream(ctx, llmMessages)
	if err != nil {
		s.deleteMessageBestEffort(ctx, assistantMsg.ID)
		return nil, fmt.Errorf("completion stream failed to start: %w", err)
	}

	out := make(chan interfaces.StreamDelta)

	common.SafeGo(s.logger, "chatAnswerStream", func() {
		defer close(out)

		var full string
		for delta := range deltas {
			if delta.Err != nil {
				// Incomplete answers are not kept
				s.deleteMessageBestEffort(context.Background(), assistantMsg.ID)
				out <- delta
				return
			}

			full += delta.Text
			assistantMsg.Content = full
			if err := s.messages.SaveMessage(context.Background(), assistantMsg); err != nil && s.logger != nil {
				s.logger.Warn().Err(err).Str("message_id", assistantMsg.ID).Msg("Failed to update assistant message")
			}

			select {
			case out <- delta:
			case <-ctx.Done():
				s.deleteMessageBestEffort(context.Background(), assistantMsg.ID)
				return
			}
		}

		if s.logger != nil {
			s.logger.Debug().
				Str("context_id", req.ContextID).
				Str("message_id", assistantMsg.ID).
				Int("answer_length", len(full)).
				Int("chunks_used", len(meta.Chunks)).
				Msg("Answer stream complete")
		}
	})

	return &interfaces.AnswerStream{
		Meta:      meta,
		Deltas:    out,
		MessageID: assistantMsg.ID,
	}, nil
}

// retrieve runs the retrieval path: embed the query, over-fetch by
// similarity, then budget down to the prompt allowance. Any failure returns
// no selection and explicit empty metadata; the caller proceeds ungrounded.
func (s *Service) retrieve(ctx context.Context, contextID, query string) ([]*models.RetrievalResult, *models.RetrievalMeta) {
	queryVector, err := s.embedder.GenerateQueryEmbedding(ctx, query)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("context_id", contextID).Msg("Query embedding failed, answering without context")
		}
		return nil, models.EmptyRetrievalMeta()
	}

	overFetch := s.ragConfig.OverFetch
	if overFetch < 1 {
		overFetch = 2
	}

	results, err := s.retriever.Search(ctx, contextID, queryVector, s.ragConfig.MaxChunks*overFetch)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("context_id", contextID).Msg("Similarity search failed, answering without context")
		}
		return nil, models.EmptyRetrievalMeta()
	}

	selected, stats := retrieval.Budget(results, retrieval.BudgetOptions{
		MinSimilarity: s.ragConfig.MinSimilarity,
		MaxChunks:     s.ragConfig.MaxChunks,
		CharBudget:    s.ragConfig.CharBudget,
	})

	if len(selected) == 0 {
		return nil, models.EmptyRetrievalMeta()
	}

	meta := &models.RetrievalMeta{
		Chunks:              make([]models.RetrievedChunk, 0, len(selected)),
		TotalRelevantChunks: stats.TotalRelevant,
		AverageSimilarity:   stats.AverageSimilarity,
		HasContext:          true,
	}
	for _, r := range selected {
		meta.Chunks = append(meta.Chunks, models.RetrievedChunk{
			ChunkID:    r.Chunk.ID,
			SourceName: r.Chunk.SourceName,
			Similarity: r.Similarity,
			Truncated:  r.Truncated,
		})
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("context_id", contextID).
			Int("selected", len(selected)).
			Int("total_relevant", stats.TotalRelevant).
			Str("avg_similarity", fmt.Sprintf("%.3f", stats.AverageSimilarity)).
			Msg("Retrieval complete")
	}

	return selected, meta
}

// loadHistory returns the conversation replayed into the prompt. An explicit
// history in the request wins over stored messages.
func (s *Service) loadHistory(ctx context.Context, req *interfaces.AnswerRequest) ([]interfaces.Message, error) {
	if req.History != nil {
		return req.History, nil
	}

	stored, err := s.messages.ListMessagesByContext(ctx, req.ContextID, historyLimit)
	if err != nil {
		return nil, err
	}

	history := make([]interfaces.Message, 0, len(stored))
	for _, m := range stored {
		if m.Content == "" {
			continue
		}
		history = append(history, interfaces.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return history, nil
}

func (s *Service) deleteMessageBestEffort(ctx context.Context, id string) {
	if err := s.messages.DeleteMessage(ctx, id); err != nil && s.logger != nil {
		s.logger.Warn().Err(err).Str("message_id", id).Msg("Failed to delete incomplete assistant message")
	}
}

// HealthCheck verifies the completion provider is reachable
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.llm.HealthCheck(ctx)
}
