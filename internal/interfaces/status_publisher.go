package interfaces

import "github.com/ternarybob/memoria/internal/models"

// DocumentKind distinguishes the two document variants in status events
type DocumentKind string

const (
	DocumentKindFile DocumentKind = "file"
	DocumentKindSite DocumentKind = "site"
)

// StatusEvent is one document status transition pushed to connected clients
type StatusEvent struct {
	DocumentID string                  `json:"document_id"`
	Kind       DocumentKind            `json:"kind"`
	ContextID  string                  `json:"context_id"`
	Status     models.ProcessingStatus `json:"status"`
	Error      string                  `json:"error,omitempty"`
	ChunkCount int                     `json:"chunk_count,omitempty"`
}

// StatusPublisher broadcasts document status transitions.
// Implementations are non-blocking; a slow consumer never stalls ingestion.
type StatusPublisher interface {
	Publish(event StatusEvent)
}
