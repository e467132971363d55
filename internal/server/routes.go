package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (document status events)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Chat (RAG-grounded, streamed over SSE)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.AnswerHandler)
	mux.HandleFunc("/api/chat/health", s.app.ChatHandler.HealthHandler)

	// API routes - Contexts and their documents
	mux.HandleFunc("/api/contexts", s.app.ContextHandler.ContextsHandler)
	mux.HandleFunc("/api/contexts/", s.handleContextRoutes)

	// API routes - Individual documents
	mux.HandleFunc("/api/files/", s.app.DocumentHandler.FileHandler)
	mux.HandleFunc("/api/sites/", s.app.DocumentHandler.SiteHandler)

	// API routes - Page capture (browser extension)
	mux.HandleFunc("/api/pages", s.app.PageHandler.CaptureHandler)

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/status", s.app.SchedulerHandler.StatusHandler)
	mux.HandleFunc("/api/scheduler/sweep", s.app.SchedulerHandler.TriggerSweepHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleContextRoutes routes /api/contexts/{id} and its subresources
func (s *Server) handleContextRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/contexts/")

	// POST /api/contexts/{id}/files
	if strings.HasSuffix(path, "/files") {
		contextID := strings.TrimSuffix(path, "/files")
		s.app.DocumentHandler.UploadHandler(w, r, contextID)
		return
	}

	// GET /api/contexts/{id}/documents
	if strings.HasSuffix(path, "/documents") {
		contextID := strings.TrimSuffix(path, "/documents")
		s.app.DocumentHandler.ListHandler(w, r, contextID)
		return
	}

	// GET/DELETE /api/contexts/{id}
	s.app.ContextHandler.ContextHandler(w, r)
}
