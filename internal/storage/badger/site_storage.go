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

// SiteStorage implements the SiteStorage interface for Badger
type SiteStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSiteStorage creates a new SiteStorage instance
func NewSiteStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SiteStorage {
	return &SiteStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SiteStorage) SaveSite(ctx context.Context, site *models.Site) error {
	if site.ID == "" {
		return fmt.Errorf("site ID is required")
	}
	if site.ContextID == "" {
		return fmt.Errorf("site context ID is required")
	}

	now := time.Now()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now

	if err := s.db.Store().Upsert(site.ID, site); err != nil {
		return fmt.Errorf("failed to save site: %w", err)
	}
	return nil
}

func (s *SiteStorage) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	if err := s.db.Store().Get(id, &site); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("site not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &site, nil
}

func (s *SiteStorage) ListSitesByContext(ctx context.Context, contextID string) ([]*models.Site, error) {
	var sites []models.Site
	if err := s.db.Store().Find(&sites, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	result := make([]*models.Site, len(sites))
	for i := range sites {
		result[i] = &sites[i]
	}
	return result, nil
}

func (s *SiteStorage) ListSitesByStatus(ctx context.Context, status models.ProcessingStatus) ([]*models.Site, error) {
	var sites []models.Site
	if err := s.db.Store().Find(&sites, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list sites by status: %w", err)
	}

	result := make([]*models.Site, len(sites))
	for i := range sites {
		result[i] = &sites[i]
	}
	return result, nil
}

func (s *SiteStorage) UpdateSiteStatus(ctx context.Context, id string, status models.ProcessingStatus, errorMessage string) error {
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return err
	}

	site.Status = status
	site.ErrorMessage = errorMessage
	if status == models.StatusCompleted {
		now := time.Now()
		site.ProcessedAt = &now
	}

	return s.SaveSite(ctx, site)
}

// CompleteSite records the terminal completed state. Update never recreates
// a missing key, so a site deleted mid-processing stays deleted.
func (s *SiteStorage) CompleteSite(ctx context.Context, id string, chunkCount int) error {
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	site.Status = models.StatusCompleted
	site.ErrorMessage = ""
	site.ChunkCount = chunkCount
	site.ProcessedAt = &now
	site.UpdatedAt = now

	if err := s.db.Store().Update(id, site); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("site not found: %s", id)
		}
		return fmt.Errorf("failed to complete site: %w", err)
	}
	return nil
}

func (s *SiteStorage) DeleteSite(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Site{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return nil
}

func (s *SiteStorage) DeleteSitesByContext(ctx context.Context, contextID string) error {
	if err := s.db.Store().DeleteMatching(&models.Site{}, badgerhold.Where("ContextID").Eq(contextID)); err != nil {
		return fmt.Errorf("failed to delete sites for context: %w", err)
	}
	return nil
}

func (s *SiteStorage) CountSitesByContext(ctx context.Context, contextID string) (int, error) {
	count, err := s.db.Store().Count(&models.Site{}, badgerhold.Where("ContextID").Eq(contextID))
	if err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return int(count), nil
}
