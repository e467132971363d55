package interfaces

import "time"

// SweepStatus reports the stale-document sweep's recent activity
type SweepStatus struct {
	Enabled   bool       `json:"enabled"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Requeued  int        `json:"requeued"`
}

// SchedulerService manages cron-based background maintenance
type SchedulerService interface {
	// Start the scheduler
	Start() error

	// Stop the scheduler
	Stop() error

	// TriggerSweepNow manually runs the stale-document sweep
	TriggerSweepNow() error

	// IsRunning returns true if scheduler is active
	IsRunning() bool

	// GetStatus returns the sweep's current status
	GetStatus() *SweepStatus
}
