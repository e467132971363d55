package interfaces

import (
	"context"

	"github.com/ternarybob/memoria/internal/models"
)

// ContextStorage - interface for knowledge context persistence
type ContextStorage interface {
	SaveContext(ctx context.Context, c *models.Context) error
	GetContext(ctx context.Context, id string) (*models.Context, error)
	ListContexts(ctx context.Context, userID string) ([]*models.Context, error)
	DeleteContext(ctx context.Context, id string) error
	CountContexts(ctx context.Context) (int, error)
}

// FileStorage - interface for uploaded file records
type FileStorage interface {
	SaveFile(ctx context.Context, f *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	ListFilesByContext(ctx context.Context, contextID string) ([]*models.File, error)
	ListFilesByStatus(ctx context.Context, status models.ProcessingStatus) ([]*models.File, error)
	UpdateFileStatus(ctx context.Context, id string, status models.ProcessingStatus, errorMessage string) error

	// CompleteFile marks a file completed, recording the extracted text and
	// chunk count. It updates an existing record only; a file deleted while
	// processing ran is never recreated.
	CompleteFile(ctx context.Context, id string, content string, chunkCount int) error

	DeleteFile(ctx context.Context, id string) error
	DeleteFilesByContext(ctx context.Context, contextID string) error
	CountFilesByContext(ctx context.Context, contextID string) (int, error)
}

// SiteStorage - interface for saved web page records
type SiteStorage interface {
	SaveSite(ctx context.Context, s *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	ListSitesByContext(ctx context.Context, contextID string) ([]*models.Site, error)
	ListSitesByStatus(ctx context.Context, status models.ProcessingStatus) ([]*models.Site, error)
	UpdateSiteStatus(ctx context.Context, id string, status models.ProcessingStatus, errorMessage string) error

	// CompleteSite marks a site completed with its chunk count, updating an
	// existing record only.
	CompleteSite(ctx context.Context, id string, chunkCount int) error

	DeleteSite(ctx context.Context, id string) error
	DeleteSitesByContext(ctx context.Context, contextID string) error
	CountSitesByContext(ctx context.Context, contextID string) (int, error)
}

// ChunkStorage - interface for chunk persistence and retrieval
type ChunkStorage interface {
	// SaveChunks persists a batch of chunks. Every chunk must reference
	// exactly one parent (file or site).
	SaveChunks(ctx context.Context, chunks []*models.Chunk) error

	// GetChunksByContext returns the union of file-parented and site-parented
	// chunks under a context. Tolerates one side failing when the other
	// succeeds; fails only when both queries fail.
	GetChunksByContext(ctx context.Context, contextID string) ([]*models.Chunk, error)

	GetChunksByFile(ctx context.Context, fileID string) ([]*models.Chunk, error)
	GetChunksBySite(ctx context.Context, siteID string) ([]*models.Chunk, error)

	// Deletes are idempotent: removing chunks for an unknown parent is a no-op.
	DeleteChunksByFile(ctx context.Context, fileID string) error
	DeleteChunksBySite(ctx context.Context, siteID string) error
	DeleteChunksByContext(ctx context.Context, contextID string) error

	CountChunksByContext(ctx context.Context, contextID string) (int, error)
}

// MessageStorage - interface for chat history persistence
type MessageStorage interface {
	SaveMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessagesByContext(ctx context.Context, contextID string, limit int) ([]*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	DeleteMessagesByContext(ctx context.Context, contextID string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	ContextStorage() ContextStorage
	FileStorage() FileStorage
	SiteStorage() SiteStorage
	ChunkStorage() ChunkStorage
	MessageStorage() MessageStorage
	KVStorage() KeyValueStorage
	DB() interface{}
	Close() error
}
