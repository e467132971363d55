package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// SchedulerHandler handles scheduler status and manual sweep requests
type SchedulerHandler struct {
	schedulerService interfaces.SchedulerService
	logger           arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(schedulerService interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		schedulerService: schedulerService,
		logger:           logger,
	}
}

// StatusHandler handles GET /api/scheduler/status requests
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.schedulerService.IsRunning(),
		"sweep":   h.schedulerService.GetStatus(),
	})
}

// TriggerSweepHandler handles POST /api/scheduler/sweep requests
func (h *SchedulerHandler) TriggerSweepHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.schedulerService.TriggerSweepNow(); err != nil {
		h.logger.Error().Err(err).Msg("Manual sweep failed")
		WriteError(w, http.StatusInternalServerError, "Sweep failed: "+err.Error())
		return
	}

	WriteSuccess(w, "Sweep completed")
}
