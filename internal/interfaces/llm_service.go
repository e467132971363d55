package interfaces

import (
	"context"
)

// LLMProvider identifies which backing provider a service uses
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// StreamDelta is one increment of a streaming completion. Err is non-nil
// only on the final delta of a failed stream; Text and Err are never both set.
type StreamDelta struct {
	Text string
	Err  error
}

// LLMService defines the interface for language model operations including
// embeddings generation and chat completions. Implementations wrap a single
// provider client injected at construction time.
type LLMService interface {
	// Embed generates a fixed-dimension embedding vector for the given text.
	//
	// Returns:
	//   - []float32: embedding vector at the configured dimensionality
	//   - error: Error if embedding generation fails
	Embed(ctx context.Context, text string) ([]float32, error)

	// Chat generates a completion response based on the conversation history.
	// The messages slice should contain the full conversation context including
	// system prompts, user messages, and previous assistant responses.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatStream issues a streaming completion. The returned channel yields
	// text deltas in order and is closed when the stream ends; concatenating
	// every delta's Text reproduces the full answer. A provider error is
	// delivered as a single trailing StreamDelta with Err set. Cancelling
	// ctx aborts the underlying provider call.
	ChatStream(ctx context.Context, messages []Message) (<-chan StreamDelta, error)

	// HealthCheck verifies the LLM service is operational and can handle requests.
	HealthCheck(ctx context.Context) error

	// GetProvider returns which provider backs this service.
	GetProvider() LLMProvider

	// Close releases resources and performs cleanup operations.
	Close() error
}
