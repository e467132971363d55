package contexts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
)

// Service implements ContextService on top of the storage manager and the
// blob store.
type Service struct {
	contexts interfaces.ContextStorage
	files    interfaces.FileStorage
	sites    interfaces.SiteStorage
	chunks   interfaces.ChunkStorage
	messages interfaces.MessageStorage
	blobs    interfaces.BlobStorage
	logger   arbor.ILogger
}

// NewService creates a new context service
func NewService(storage interfaces.StorageManager, blobs interfaces.BlobStorage, logger arbor.ILogger) interfaces.ContextService {
	return &Service{
		contexts: storage.ContextStorage(),
		files:    storage.FileStorage(),
		sites:    storage.SiteStorage(),
		chunks:   storage.ChunkStorage(),
		messages: storage.MessageStorage(),
		blobs:    blobs,
		logger:   logger,
	}
}

// CreateContext creates a named knowledge context for a user
func (s *Service) CreateContext(ctx context.Context, userID, name, description string) (*models.Context, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("context name is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	c := &models.Context{
		ID:          common.NewContextID(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}

	if err := s.contexts.SaveContext(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save context: %w", err)
	}

	if s.logger != nil {
		s.logger.Info().
			Str("context_id", c.ID).
			Str("user_id", userID).
			Str("name", name).
			Msg("Context created")
	}

	return c, nil
}

func (s *Service) GetContext(ctx context.Context, id string) (*models.Context, error) {
	return s.contexts.GetContext(ctx, id)
}

func (s *Service) ListContexts(ctx context.Context, userID string) ([]*models.Context, error) {
	return s.contexts.ListContexts(ctx, userID)
}

// DeleteContext removes a context and everything under it. Each step runs
// even when an earlier one fails, so a partially deleted context can be
// deleted again to finish the job. The first error is reported.
func (s *Service) DeleteContext(ctx context.Context, id string) error {
	if _, err := s.contexts.GetContext(ctx, id); err != nil {
		return fmt.Errorf("context not found: %w", err)
	}

	var firstErr error
	record := func(step string, err error) {
		if err == nil {
			return
		}
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("context_id", id).Str("step", step).Msg("Context cascade step failed")
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to delete %s: %w", step, err)
		}
	}

	record("chunks", s.chunks.DeleteChunksByContext(ctx, id))

	// Blob removal happens per file before the records go away. Blob
	// failures are logged but never block the cascade.
	files, err := s.files.ListFilesByContext(ctx, id)
	record("file listing", err)
	for _, f := range files {
		if f.BlobKey == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, f.BlobKey); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Str("blob_key", f.BlobKey).Msg("Failed to delete blob during context cascade")
		}
	}
	record("files", s.files.DeleteFilesByContext(ctx, id))
	record("sites", s.sites.DeleteSitesByContext(ctx, id))
	record("messages", s.messages.DeleteMessagesByContext(ctx, id))
	record("context", s.contexts.DeleteContext(ctx, id))

	if firstErr == nil && s.logger != nil {
		s.logger.Info().Str("context_id", id).Msg("Context deleted")
	}

	return firstErr
}

// DeleteFile removes one file, its chunks, and its stored blob
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	if err := s.chunks.DeleteChunksByFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if file.BlobKey != "" {
		if err := s.blobs.Delete(ctx, file.BlobKey); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Str("blob_key", file.BlobKey).Msg("Failed to delete blob")
		}
	}

	if err := s.files.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	if s.logger != nil {
		s.logger.Info().Str("file_id", fileID).Msg("File deleted")
	}
	return nil
}

// DeleteSite removes one saved page and its chunks
func (s *Service) DeleteSite(ctx context.Context, siteID string) error {
	if _, err := s.sites.GetSite(ctx, siteID); err != nil {
		return fmt.Errorf("site not found: %w", err)
	}

	if err := s.chunks.DeleteChunksBySite(ctx, siteID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if err := s.sites.DeleteSite(ctx, siteID); err != nil {
		return fmt.Errorf("failed to delete site record: %w", err)
	}

	if s.logger != nil {
		s.logger.Info().Str("site_id", siteID).Msg("Site deleted")
	}
	return nil
}
