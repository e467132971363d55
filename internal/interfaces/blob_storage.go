package interfaces

import (
	"context"
	"io"
)

// BlobStorage stores raw uploaded file bytes keyed by
// {user_id}/contexts/{context_id}/{filename}.
type BlobStorage interface {
	// Upload writes the blob. Fails if the key already exists.
	Upload(ctx context.Context, key string, r io.Reader) error

	// Download opens the blob for reading. Caller closes.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PublicURL returns a URL path the HTTP layer can serve the blob from.
	PublicURL(key string) string
}
