package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MessageStorage implements the MessageStorage interface for Badger
type MessageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMessageStorage creates a new MessageStorage instance
func NewMessageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MessageStorage) SaveMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if m.ContextID == "" {
		return fmt.Errorf("message context ID is required")
	}

	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if err := s.db.Store().Upsert(m.ID, m); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *MessageStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.db.Store().Get(id, &m); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("message not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &m, nil
}

// ListMessagesByContext returns messages in chronological order. When limit
// is positive, only the most recent limit messages are returned.
func (s *MessageStorage) ListMessagesByContext(ctx context.Context, contextID string, limit int) ([]*models.Message, error) {
	var messages []models.Message
	if err := s.db.Store().Find(&messages, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	result := make([]*models.Message, len(messages))
	for i := range messages {
		result[i] = &messages[i]
	}
	return result, nil
}

func (s *MessageStorage) DeleteMessage(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Message{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *MessageStorage) DeleteMessagesByContext(ctx context.Context, contextID string) error {
	if err := s.db.Store().DeleteMatching(&models.Message{}, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return fmt.Errorf("failed to delete messages for context: %w", err)
	}
	return nil
}
