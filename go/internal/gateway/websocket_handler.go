package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/trivia/go/internal/arena"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for session connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleSessionConnection serves GET /ws/session?room=CODE&player=ID&token=T.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	roomCode := arena.NormalizeRoomCode(r.URL.Query().Get("room"))
	if roomCode == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "player is required", http.StatusBadRequest)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	session, err := h.connectionManager.sessions(roomCode)
	if err != nil {
		if errors.Is(err, arena.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to resolve session", http.StatusInternalServerError)
		return
	}

	// The upgrader has already replied on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, session, roomCode, playerID, token); err != nil {
		log.Error().
			Err(err).
			Str("room_code", roomCode).
			Str("player_id", playerID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/session", h.HandleSessionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
