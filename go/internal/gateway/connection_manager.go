package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/trivia/go/internal/arena"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Session is the part of a session actor a connection talks to.
type Session interface {
	Attach(ctx context.Context, playerID, token string, ch match.Channel) error
	Detach(ctx context.Context, playerID string, ch match.Channel) error
	SubmitAnswer(ctx context.Context, sub match.AnswerSubmission) error
}

// SessionLookup resolves a room code to its session.
type SessionLookup func(code string) (Session, error)

// ArenaLookup resolves sessions from ar.
func ArenaLookup(ar *arena.Arena) SessionLookup {
	return func(code string) (Session, error) {
		actor, err := ar.Get(code)
		if err != nil {
			return nil, err
		}
		return actor, nil
	}
}

// ConnectionManager manages WebSocket connections for live sessions
type ConnectionManager struct {
	// Connection pools organized by room code
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	sessions SessionLookup
	metrics  metrics.Collector
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	CommandTimeout  time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		CommandTimeout:  5 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, sessions SessionLookup, m metrics.Collector) *ConnectionManager {
	if m == nil {
		m = metrics.NoOp{}
	}
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:   config,
		sessions: sessions,
		metrics:  m,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and attaches it
// to the player's session. The session must already be resolved.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, session Session, roomCode, playerID, token string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		RoomCode:    roomCode,
		Conn:        conn,
		Manager:     cm,
		session:     session,
		send:        make(chan []byte, cm.config.SendBufferSize),
		closing:     make(chan struct{}),
		ConnectedAt: now,
		LastPing:    now,
	}

	cm.registerConnection(connection)
	go connection.writePump()

	ctx, cancel := context.WithTimeout(r.Context(), cm.config.CommandTimeout)
	defer cancel()
	if err := session.Attach(ctx, playerID, token, connection); err != nil {
		reason := "attach failed"
		switch {
		case errors.Is(err, match.ErrUnknownPlayer):
			reason = "unknown player"
		case errors.Is(err, match.ErrInvalidToken):
			reason = "invalid token"
		}
		log.Warn().
			Err(err).
			Str("room_code", roomCode).
			Str("player_id", playerID).
			Msg("rejecting WebSocket connection")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(cm.config.WriteTimeout))
		connection.Close()
		cm.unregisterConnection(connection)
		return nil
	}

	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("room_code", roomCode).
		Str("player_id", playerID).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.RoomCode] == nil {
		cm.roomConnections[conn.RoomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.RoomCode][conn] = true
	cm.metrics.ConnectionOpened()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_code", conn.RoomCode).
		Int("total_connections", len(cm.roomConnections[conn.RoomCode])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.roomConnections[conn.RoomCode]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	cm.metrics.ConnectionClosed()

	// Clean up empty room pools
	if len(connections) == 0 {
		delete(cm.roomConnections, conn.RoomCode)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Str("room_code", conn.RoomCode).
		Msg("connection unregistered")
}

// ConnectionStats summarizes open sockets.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRooms:     len(cm.roomConnections),
		RoomConnections: make(map[string]int, len(cm.roomConnections)),
	}
	for code, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[code] = len(connections)
	}
	return stats
}

// CloseAll closes every open connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.roomConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		conn.Close()
	}
}
