package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/memoria/internal/models"
)

// FileUpload carries one file from a multipart upload into the pipeline
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// IngestService runs the document ingestion pipeline: validate, store the
// raw payload, then extract/chunk/embed/persist in a background task that
// drives the document's status through pending -> processing -> completed|failed.
type IngestService interface {
	// IngestFile validates and stores one upload, returning the File record
	// in pending state. Processing continues in the background.
	IngestFile(ctx context.Context, contextID, userID string, upload FileUpload) (*models.File, error)

	// IngestFiles processes uploads sequentially; one file's validation
	// failure does not abort the rest.
	IngestFiles(ctx context.Context, contextID, userID string, uploads []FileUpload) ([]*models.File, []error)

	// IngestPage captures a web page's HTML once and creates one Site per
	// target context, each ingested independently. Results and errors are
	// positional, matching contextIDs.
	IngestPage(ctx context.Context, contextIDs []string, userID, pageURL, title, html string) ([]*models.Site, []error)

	// ReprocessFile re-runs the pipeline for a file. Existing chunks are
	// deleted before the new run so a reprocess cannot duplicate them.
	ReprocessFile(ctx context.Context, fileID string) error

	// ReprocessSite re-runs the pipeline for a saved page.
	ReprocessSite(ctx context.Context, siteID string) error
}
