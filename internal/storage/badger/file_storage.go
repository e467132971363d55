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

// FileStorage implements the FileStorage interface for Badger
type FileStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFileStorage creates a new FileStorage instance
func NewFileStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FileStorage {
	return &FileStorage{
		db:     db,
		logger: logger,
	}
}

func (s *FileStorage) SaveFile(ctx context.Context, f *models.File) error {
	if f.ID == "" {
		return fmt.Errorf("file ID is required")
	}
	if f.ContextID == "" {
		return fmt.Errorf("file context ID is required")
	}

	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	if err := s.db.Store().Upsert(f.ID, f); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (s *FileStorage) GetFile(ctx context.Context, id string) (*models.File, error) {
	var f models.File
	if err := s.db.Store().Get(id, &f); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("file not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &f, nil
}

func (s *FileStorage) ListFilesByContext(ctx context.Context, contextID string) ([]*models.File, error) {
	var files []models.File
	if err := s.db.Store().Find(&files, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	result := make([]*models.File, len(files))
	for i := range files {
		result[i] = &files[i]
	}
	return result, nil
}

func (s *FileStorage) ListFilesByStatus(ctx context.Context, status models.ProcessingStatus) ([]*models.File, error) {
	var files []models.File
	if err := s.db.Store().Find(&files, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list files by status: %w", err)
	}

	result := make([]*models.File, len(files))
	for i := range files {
		result[i] = &files[i]
	}
	return result, nil
}

// UpdateFileStatus transitions a file's processing status. Completed files
// get their ProcessedAt stamped; failed files record the error message.
func (s *FileStorage) UpdateFileStatus(ctx context.Context, id string, status models.ProcessingStatus, errorMessage string) error {
	f, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}

	f.Status = status
	f.ErrorMessage = errorMessage
	if status == models.StatusCompleted {
		now := time.Now()
		f.ProcessedAt = &now
	}

	return s.SaveFile(ctx, f)
}

// CompleteFile records the terminal completed state. Update never recreates
// a missing key, so a file deleted mid-processing stays deleted.
func (s *FileStorage) CompleteFile(ctx context.Context, id string, content string, chunkCount int) error {
	f, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	f.Status = models.StatusCompleted
	f.ErrorMessage = ""
	f.Content = content
	f.ChunkCount = chunkCount
	f.ProcessedAt = &now
	f.UpdatedAt = now

	if err := s.db.Store().Update(id, f); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("file not found: %s", id)
		}
		return fmt.Errorf("failed to complete file: %w", err)
	}
	return nil
}

func (s *FileStorage) DeleteFile(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.File{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *FileStorage) DeleteFilesByContext(ctx context.Context, contextID string) error {
	if err := s.db.Store().DeleteMatching(&models.File{}, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return fmt.Errorf("failed to delete files for context: %w", err)
	}
	return nil
}

func (s *FileStorage) CountFilesByContext(ctx context.Context, contextID string) (int, error) {
	count, err := s.db.Store().Count(&models.File{}, badgerhold.Where("ContextID").Eq(contextID))
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return int(count), nil
}
