package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/interfaces"
)

// ChatHandler handles chat-related HTTP requests. Answers stream back to the
// client as Server-Sent Events: one "meta" event with the retrieval grounding,
// "delta" events carrying answer text, then "done" or "error".
type ChatHandler struct {
	chatService interfaces.ChatService
	logger      arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService interfaces.ChatService, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

type sseDelta struct {
	Text string `json:"text"`
}

type sseDone struct {
	MessageID string `json:"message_id"`
}

type sseError struct {
	Error string `json:"error"`
}

// AnswerHandler handles POST /api/chat requests
func (h *ChatHandler) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req interfaces.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode chat request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, "Message field is required")
		return
	}
	if req.ContextID == "" {
		WriteError(w, http.StatusBadRequest, "Context ID field is required")
		return
	}

	h.logger.Info().
		Str("context_id", req.ContextID).
		Int("message_length", len(req.Message)).
		Msg("Processing chat request")

	// Stream is bound to the client connection; a dropped client cancels
	// the completion.
	stream, err := h.chatService.Answer(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to start answer stream")
		WriteError(w, http.StatusInternalServerError, "Failed to generate response: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Flush headers immediately to trigger the client's EventSource.onopen
	flusher.Flush()

	h.sendEvent(w, flusher, "meta", stream.Meta)

	for delta := range stream.Deltas {
		if delta.Err != nil {
			h.logger.Error().Err(delta.Err).Msg("Answer stream failed")
			h.sendEvent(w, flusher, "error", sseError{Error: delta.Err.Error()})
			return
		}
		h.sendEvent(w, flusher, "delta", sseDelta{Text: delta.Text})
	}

	h.sendEvent(w, flusher, "done", sseDone{MessageID: stream.MessageID})
}

// HealthHandler handles GET /api/chat/health requests
func (h *ChatHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := h.chatService.HealthCheck(context.Background())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Chat service health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *ChatHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal SSE event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
