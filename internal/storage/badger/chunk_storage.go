package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChunkStorage implements the ChunkStorage interface for Badger
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ChunkStorage) SaveChunks(ctx context.Context, chunks []*models.Chunk) error {
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk ID is required")
		}
		if chunk.ContextID == "" {
			return fmt.Errorf("chunk context ID is required")
		}
		// Exactly one parent
		if (chunk.FileID == "") == (chunk.SiteID == "") {
			return fmt.Errorf("chunk %s must reference exactly one of file or site", chunk.ID)
		}

		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now()
		}

		if err := s.db.Store().Upsert(chunk.ID, chunk); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// GetChunksByContext returns the union of file-parented and site-parented
// chunks. The two sides are queried independently; if one query fails and
// the other succeeds, the successful side is returned and the failure
// logged. Only a double failure is an error.
func (s *ChunkStorage) GetChunksByContext(ctx context.Context, contextID string) ([]*models.Chunk, error) {
	var fileChunks []models.Chunk
	fileErr := s.db.Store().Find(&fileChunks, badgerhold.Where("ContextID").Eq(contextID).And("FileID").Ne(""))

	var siteChunks []models.Chunk
	siteErr := s.db.Store().Find(&siteChunks, badgerhold.Where("ContextID").Eq(contextID).And("SiteID").Ne(""))

	if fileErr != nil && siteErr != nil {
		return nil, fmt.Errorf("failed to get chunks for context %s: file query: %v, site query: %v", contextID, fileErr, siteErr)
	}
	if fileErr != nil {
		s.logger.Warn().Err(fileErr).Str("context_id", contextID).Msg("File chunk query failed, proceeding with site chunks")
	}
	if siteErr != nil {
		s.logger.Warn().Err(siteErr).Str("context_id", contextID).Msg("Site chunk query failed, proceeding with file chunks")
	}

	result := make([]*models.Chunk, 0, len(fileChunks)+len(siteChunks))
	for i := range fileChunks {
		result = append(result, &fileChunks[i])
	}
	for i := range siteChunks {
		result = append(result, &siteChunks[i])
	}
	return result, nil
}

func (s *ChunkStorage) GetChunksByFile(ctx context.Context, fileID string) ([]*models.Chunk, error) {
	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, badgerhold.Where("FileID").Eq(fileID)); err != nil {
		return nil, fmt.Errorf("failed to get chunks for file: %w", err)
	}

	result := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result, nil
}

func (s *ChunkStorage) GetChunksBySite(ctx context.Context, siteID string) ([]*models.Chunk, error) {
	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, badgerhold.Where("SiteID").Eq(siteID)); err != nil {
		return nil, fmt.Errorf("failed to get chunks for site: %w", err)
	}

	result := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result, nil
}

func (s *ChunkStorage) DeleteChunksByFile(ctx context.Context, fileID string) error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, badgerhold.Where("FileID").Eq(fileID)); err != nil {
		return fmt.Errorf("failed to delete chunks for file: %w", err)
	}
	return nil
}

func (s *ChunkStorage) DeleteChunksBySite(ctx context.Context, siteID string) error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, badgerhold.Where("SiteID").Eq(siteID)); err != nil {
		return fmt.Errorf("failed to delete chunks for site: %w", err)
	}
	return nil
}

func (s *ChunkStorage) DeleteChunksByContext(ctx context.Context, contextID string) error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return fmt.Errorf("failed to delete chunks for context: %w", err)
	}
	return nil
}

func (s *ChunkStorage) CountChunksByContext(ctx context.Context, contextID string) (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, badgerhold.Where("ContextID").Eq(contextID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}
