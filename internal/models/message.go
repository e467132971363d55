package models

import "time"

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a persisted chat turn within a context.
// Assistant messages are written incrementally while the completion streams.
type Message struct {
	ID        string      `json:"id" badgerhold:"key"` // msg_{uuid}
	ContextID string      `json:"context_id" badgerhold:"index"`
	UserID    string      `json:"user_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`

	// Retrieval provenance for assistant messages; empty when the answer
	// was produced without grounding.
	Meta *RetrievalMeta `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
