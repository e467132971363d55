package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// PageHandler handles web page capture requests from the browser extension
type PageHandler struct {
	ingestService interfaces.IngestService
	logger        arbor.ILogger
}

// NewPageHandler creates a new page capture handler
func NewPageHandler(ingestService interfaces.IngestService, logger arbor.ILogger) *PageHandler {
	return &PageHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

type capturePageRequest struct {
	ContextIDs []string `json:"context_ids"`
	UserID     string   `json:"user_id"`
	URL        string   `json:"url"`
	Title      string   `json:"title,omitempty"`
	HTML       string   `json:"html"`
}

// CaptureHandler handles POST /api/pages requests. A page can be captured
// into several contexts at once; each gets its own Site and the response
// reports per-context outcomes.
func (h *PageHandler) CaptureHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req capturePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.ContextIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "context_ids field is required")
		return
	}

	sites, errs := h.ingestService.IngestPage(r.Context(), req.ContextIDs, req.UserID, req.URL, req.Title, req.HTML)

	results := make([]map[string]interface{}, len(req.ContextIDs))
	accepted := 0
	for i, contextID := range req.ContextIDs {
		result := map[string]interface{}{
			"context_id": contextID,
		}
		if errs[i] != nil {
			result["accepted"] = false
			result["error"] = errs[i].Error()
		} else {
			result["accepted"] = true
			result["site"] = sites[i]
			accepted++
		}
		results[i] = result
	}

	h.logger.Info().
		Str("url", req.URL).
		Int("accepted", accepted).
		Int("rejected", len(req.ContextIDs)-accepted).
		Msg("Page capture processed")

	status := http.StatusCreated
	if accepted == 0 {
		status = http.StatusBadRequest
	}
	WriteJSON(w, status, map[string]interface{}{
		"results": results,
	})
}
