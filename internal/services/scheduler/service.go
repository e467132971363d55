package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"github.com/ternarybob/memoria/internal/models"
)

// Service implements SchedulerService. Its single job is the stale-document
// sweep: documents stuck in pending longer than the configured age are
// re-driven through the ingestion pipeline. Documents stuck in processing
// are left alone; their background task may still be running.
type Service struct {
	files  interfaces.FileStorage
	sites  interfaces.SiteStorage
	ingest interfaces.IngestService
	config *common.SchedulerConfig
	logger arbor.ILogger

	cron       *cron.Cron
	staleAfter time.Duration

	mu       sync.Mutex
	running  bool
	sweeping bool
	lastRun  *time.Time
	lastErr  string
	requeued int
}

// NewService creates a new scheduler service
func NewService(storage interfaces.StorageManager, ingest interfaces.IngestService, config *common.SchedulerConfig, logger arbor.ILogger) (interfaces.SchedulerService, error) {
	staleAfter, err := time.ParseDuration(config.StaleAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid stale_after duration %q: %w", config.StaleAfter, err)
	}

	return &Service{
		files:      storage.FileStorage(),
		sites:      storage.SiteStorage(),
		ingest:     ingest,
		config:     config,
		logger:     logger,
		cron:       cron.New(),
		staleAfter: staleAfter,
	}, nil
}

// Start begins the scheduled sweep
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled by configuration")
		return nil
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to add sweep to cron: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Str("stale_after", s.staleAfter.String()).
		Msg("Scheduler started")

	return nil
}

// Stop halts the scheduler. A sweep in flight finishes.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cron.Stop()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// TriggerSweepNow manually runs the stale-document sweep
func (s *Service) TriggerSweepNow() error {
	s.logger.Info().Msg("Manual sweep trigger requested")
	return s.sweep()
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatus returns the sweep's current status
func (s *Service) GetStatus() *interfaces.SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &interfaces.SweepStatus{
		Enabled:   s.config.Enabled,
		Schedule:  s.config.Schedule,
		LastError: s.lastErr,
		Requeued:  s.requeued,
	}
	if s.lastRun != nil {
		run := *s.lastRun
		status.LastRun = &run
	}
	return status
}

// runSweep is the cron entry point. Panics must not take the cron runner
// down with them.
func (s *Service) runSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered panic in scheduled sweep")
		}
	}()

	if err := s.sweep(); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled sweep failed")
	}
}

// sweep requeues stale pending documents. Overlapping runs are skipped.
func (s *Service) sweep() error {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Debug().Msg("Sweep already in progress, skipping this cycle")
		return nil
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	cutoff := time.Now().Add(-s.staleAfter)
	requeued := 0
	var firstErr error

	files, err := s.files.ListFilesByStatus(ctx, models.StatusPending)
	if err != nil {
		firstErr = fmt.Errorf("failed to list pending files: %w", err)
		s.logger.Warn().Err(err).Msg("Sweep could not list pending files")
	}
	for _, f := range files {
		if f.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.ingest.ReprocessFile(ctx, f.ID); err != nil {
			s.logger.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to requeue stale file")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info().
			Str("file_id", f.ID).
			Str("filename", f.Filename).
			Msg("Requeued stale pending file")
		requeued++
	}

	sites, err := s.sites.ListSitesByStatus(ctx, models.StatusPending)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to list pending sites: %w", err)
		}
		s.logger.Warn().Err(err).Msg("Sweep could not list pending sites")
	}
	for _, site := range sites {
		if site.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.ingest.ReprocessSite(ctx, site.ID); err != nil {
			s.logger.Warn().Err(err).Str("site_id", site.ID).Msg("Failed to requeue stale site")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info().
			Str("site_id", site.ID).
			Str("url", site.URL).
			Msg("Requeued stale pending site")
		requeued++
	}

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.requeued = requeued
	if firstErr != nil {
		s.lastErr = firstErr.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	if requeued > 0 {
		s.logger.Info().Int("requeued", requeued).Msg("Sweep completed")
	} else {
		s.logger.Debug().Msg("Sweep completed, nothing stale")
	}

	return firstErr
}
