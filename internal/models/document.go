package models

import "time"

// ProcessingStatus tracks a document through the ingestion pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// File represents an uploaded document (txt, md, pdf).
type File struct {
	ID        string `json:"id" badgerhold:"key"` // file_{uuid}
	ContextID string `json:"context_id" badgerhold:"index"`
	UserID    string `json:"user_id"`

	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	BlobKey     string `json:"blob_key"` // {user_id}/contexts/{context_id}/{filename}

	// Text extracted at completion, cached so readers need not re-run
	// extraction against the blob
	Content string `json:"content,omitempty"`

	// Processing state
	Status       ProcessingStatus `json:"status" badgerhold:"index"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ChunkCount   int              `json:"chunk_count"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Site represents a saved web page captured for retrieval.
type Site struct {
	ID        string `json:"id" badgerhold:"key"` // site_{uuid}
	ContextID string `json:"context_id" badgerhold:"index"`
	UserID    string `json:"user_id"`

	URL   string `json:"url"`
	Title string `json:"title"`

	// Page content converted to markdown at capture time
	ContentMarkdown string `json:"content_markdown"`

	Status       ProcessingStatus `json:"status" badgerhold:"index"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ChunkCount   int              `json:"chunk_count"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceName returns the display name used when citing this file in answers.
func (f *File) SourceName() string {
	return f.Filename
}

// SourceName returns the display name used when citing this site in answers.
func (s *Site) SourceName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.URL
}
