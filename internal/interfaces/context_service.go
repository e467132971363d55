package interfaces

import (
	"context"

	"github.com/ternarybob/memoria/internal/models"
)

// ContextService manages knowledge contexts and their cascade deletion.
type ContextService interface {
	CreateContext(ctx context.Context, userID, name, description string) (*models.Context, error)
	GetContext(ctx context.Context, id string) (*models.Context, error)
	ListContexts(ctx context.Context, userID string) ([]*models.Context, error)

	// DeleteContext removes the context and everything under it: chunks,
	// documents, blobs, messages, then the context record. Steps run
	// independently; a blob deletion failure is logged, not fatal.
	DeleteContext(ctx context.Context, id string) error

	// DeleteFile removes one file and its chunks and blob.
	DeleteFile(ctx context.Context, fileID string) error

	// DeleteSite removes one saved page and its chunks.
	DeleteSite(ctx context.Context, siteID string) error
}
