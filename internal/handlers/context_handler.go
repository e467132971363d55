package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// ContextHandler handles knowledge context management requests
type ContextHandler struct {
	contextService interfaces.ContextService
	logger         arbor.ILogger
}

// NewContextHandler creates a new context handler
func NewContextHandler(contextService interfaces.ContextService, logger arbor.ILogger) *ContextHandler {
	return &ContextHandler{
		contextService: contextService,
		logger:         logger,
	}
}

type createContextRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ContextsHandler handles /api/contexts (GET list, POST create)
func (h *ContextHandler) ContextsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listContexts(w, r)
	case http.MethodPost:
		h.createContext(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ContextHandler handles /api/contexts/{id} (GET, DELETE)
func (h *ContextHandler) ContextHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/contexts/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Context not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := h.contextService.GetContext(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusNotFound, "Context not found")
			return
		}
		WriteJSON(w, http.StatusOK, c)

	case http.MethodDelete:
		if err := h.contextService.DeleteContext(r.Context(), id); err != nil {
			h.logger.Error().Err(err).Str("context_id", id).Msg("Failed to delete context")
			WriteError(w, http.StatusInternalServerError, "Failed to delete context: "+err.Error())
			return
		}
		WriteSuccess(w, "Context deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ContextHandler) listContexts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	contexts, err := h.contextService.ListContexts(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list contexts")
		WriteError(w, http.StatusInternalServerError, "Failed to list contexts")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"contexts": contexts,
		"count":    len(contexts),
	})
}

func (h *ContextHandler) createContext(w http.ResponseWriter, r *http.Request) {
	var req createContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.contextService.CreateContext(r.Context(), req.UserID, req.Name, req.Description)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, c)
}
