package interfaces

import (
	"context"

	"github.com/ternarybob/memoria/internal/models"
)

// AnswerRequest is one user chat turn against a context's knowledge.
type AnswerRequest struct {
	ContextID string `json:"context_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`

	// History overrides the stored conversation when provided; when nil the
	// service loads recent history from message storage.
	History []Message `json:"history,omitempty"`
}

// AnswerStream is a streaming answer. Meta is populated before the first
// delta is delivered so callers can render grounding info alongside the
// first token. Deltas closes when the answer completes or fails.
type AnswerStream struct {
	Meta   *models.RetrievalMeta
	Deltas <-chan StreamDelta

	// MessageID identifies the persisted assistant message being built up.
	MessageID string
}

// ChatService answers user questions grounded in a context's stored chunks.
// Retrieval failures degrade to an ungrounded answer with empty meta; the
// request itself only fails when the completion provider fails outright.
type ChatService interface {
	Answer(ctx context.Context, req *AnswerRequest) (*AnswerStream, error)

	// HealthCheck verifies the underlying LLM provider is reachable
	HealthCheck(ctx context.Context) error
}
