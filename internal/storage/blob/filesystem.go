package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// FilesystemStore implements BlobStorage on the local filesystem. Keys map
// directly to paths under the configured root directory.
type FilesystemStore struct {
	root   string
	logger arbor.ILogger
}

// NewFilesystemStore creates a blob store rooted at the given directory
func NewFilesystemStore(root string, logger arbor.ILogger) (interfaces.BlobStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FilesystemStore{
		root:   root,
		logger: logger,
	}, nil
}

// resolve maps a key to an absolute path, rejecting traversal outside the root
func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Upload writes the blob. The key must not already exist; re-uploading the
// same filename into a context is a caller error.
func (s *FilesystemStore) Upload(ctx context.Context, key string, r io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("blob already exists: %s", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	// O_EXCL guards against a concurrent upload of the same key
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("blob already exists: %s", key)
		}
		return fmt.Errorf("failed to create blob: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write blob: %w", err)
	}

	s.logger.Debug().Str("key", key).Int64("bytes", written).Msg("Blob stored")
	return nil
}

func (s *FilesystemStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob. Missing keys are not errors.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// PublicURL returns the path the HTTP layer serves blobs from
func (s *FilesystemStore) PublicURL(key string) string {
	return "/blobs/" + key
}
