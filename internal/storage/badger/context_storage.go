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

// ContextStorage implements the ContextStorage interface for Badger
type ContextStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewContextStorage creates a new ContextStorage instance
func NewContextStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ContextStorage {
	return &ContextStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ContextStorage) SaveContext(ctx context.Context, c *models.Context) error {
	if c.ID == "" {
		return fmt.Errorf("context ID is required")
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := s.db.Store().Upsert(c.ID, c); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}

func (s *ContextStorage) GetContext(ctx context.Context, id string) (*models.Context, error) {
	var c models.Context
	if err := s.db.Store().Get(id, &c); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("context not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	return &c, nil
}

func (s *ContextStorage) ListContexts(ctx context.Context, userID string) ([]*models.Context, error) {
	var contexts []models.Context
	if err := s.db.Store().Find(&contexts, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}

	result := make([]*models.Context, len(contexts))
	for i := range contexts {
		result[i] = &contexts[i]
	}
	return result, nil
}

func (s *ContextStorage) DeleteContext(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Context{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete context: %w", err)
	}
	return nil
}

func (s *ContextStorage) CountContexts(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Context{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count contexts: %w", err)
	}
	return int(count), nil
}
