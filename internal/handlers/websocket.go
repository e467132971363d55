package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoria/internal/common"
	"github.com/ternarybob/memoria/internal/interfaces"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for all WebSocket messages
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler broadcasts document status transitions to connected
// clients. It implements StatusPublisher: Publish is non-blocking, and
// per-document rate limiting keeps chatty pipelines from flooding the UI.
// Terminal transitions (completed, failed) always go through.
type WebSocketHandler struct {
	logger      arbor.ILogger
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex

	events           chan interfaces.StatusEvent
	throttleInterval time.Duration
	throttlersMu     sync.Mutex
	throttlers       map[string]*rate.Limiter
	serverInstanceID string // Clients use this to detect server restart
}

// NewWebSocketHandler creates a new WebSocket status handler
func NewWebSocketHandler(config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	throttleInterval := 250 * time.Millisecond
	if config != nil && config.ThrottleInterval != "" {
		if parsed, err := time.ParseDuration(config.ThrottleInterval); err == nil {
			throttleInterval = parsed
		} else {
			logger.Warn().
				Err(err).
				Str("interval", config.ThrottleInterval).
				Msg("Failed to parse throttle interval, using default")
		}
	}

	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		events:           make(chan interfaces.StatusEvent, 256),
		throttleInterval: throttleInterval,
		throttlers:       make(map[string]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().
		Str("server_instance_id", h.serverInstanceID).
		Str("throttle_interval", throttleInterval.String()).
		Msg("WebSocket handler initialized")

	common.SafeGo(logger, "websocket-broadcast", h.broadcastLoop)

	return h
}

// Publish queues a status event for broadcast. Never blocks; when the
// queue is full the event is dropped.
func (h *WebSocketHandler) Publish(event interfaces.StatusEvent) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn().
			Str("document_id", event.DocumentID).
			Msg("Status event queue full, dropping event")
	}
}

// HandleWebSocket handles WebSocket upgrade requests at /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("remote", r.RemoteAddr).
		Int("clients", clientCount).
		Msg("WebSocket client connected")

	// Tell the client which server instance it is talking to
	h.sendToConn(conn, WSMessage{
		Type: "connected",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
		},
	})

	// Read loop exists only to detect disconnects; clients do not send
	// meaningful messages.
	common.SafeGo(h.logger, "websocket-read:"+r.RemoteAddr, func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	delete(h.clientMutex, conn)
	clientCount := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Info().Int("clients", clientCount).Msg("WebSocket client disconnected")
}

func (h *WebSocketHandler) broadcastLoop() {
	for event := range h.events {
		if !h.shouldBroadcast(event) {
			continue
		}
		h.broadcast(WSMessage{
			Type:    "document_status",
			Payload: event,
		})
	}
}

// shouldBroadcast applies per-document throttling. Terminal statuses
// always pass and release the document's limiter.
func (h *WebSocketHandler) shouldBroadcast(event interfaces.StatusEvent) bool {
	h.throttlersMu.Lock()
	defer h.throttlersMu.Unlock()

	if event.Status.IsTerminal() {
		delete(h.throttlers, event.DocumentID)
		return true
	}

	limiter, ok := h.throttlers[event.DocumentID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.throttleInterval), 1)
		h.throttlers[event.DocumentID] = limiter
	}

	return limiter.Allow()
}

func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send status event to client")
		}
	}
}

func (h *WebSocketHandler) sendToConn(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	mutex, ok := h.clientMutex[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send message to client")
	}
}
