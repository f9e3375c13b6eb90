package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrSendBufferFull   = errors.New("connection send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Connection represents a WebSocket connection bound to one player of one
// session. It implements match.Channel.
type Connection struct {
	ID       string
	PlayerID string
	RoomCode string
	Conn     *websocket.Conn
	Manager  *ConnectionManager

	session Session
	send    chan []byte

	mu        sync.Mutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

var _ match.Channel = (*Connection)(nil)

// Send queues payload for the write pump. It never blocks.
func (c *Connection) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks the write pump to send a close frame and shut the socket.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closing)
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.Close()
				return
			}

		case <-c.closing:
			c.drain()
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.Close()
				return
			}
		}
	}
}

// drain flushes whatever was queued before Close.
func (c *Connection) drain() {
	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump handles reading messages from the WebSocket connection. It owns
// the teardown: when the socket dies the connection is detached from its
// session and unregistered.
func (c *Connection) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
		if err := c.session.Detach(ctx, c.PlayerID, c); err != nil && !errors.Is(err, match.ErrSessionClosed) {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("detach failed")
		}
		cancel()
		c.Close()
		c.Manager.unregisterConnection(c)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the client.
// Malformed and foreign messages are dropped without closing the socket.
func (c *Connection) handleClientMessage(message []byte) {
	msg, err := protocol.DecodeClientMessage(message)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Str("player_id", c.PlayerID).
			Msg("dropping client message")
		return
	}

	switch m := msg.(type) {
	case protocol.Ping:
		if err := c.Send(protocol.MustEncode(protocol.Pong{})); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to queue pong")
		}

	case protocol.Answer:
		if m.PlayerID != c.PlayerID {
			log.Debug().
				Str("connection_id", c.ID).
				Str("player_id", c.PlayerID).
				Str("claimed_player_id", m.PlayerID).
				Msg("discarding answer for another player")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
		defer cancel()
		err := c.session.SubmitAnswer(ctx, match.AnswerSubmission{
			PlayerID:  m.PlayerID,
			OptionKey: m.OptionKey,
			ElapsedMs: m.ElapsedMs,
		})
		if err != nil {
			log.Debug().
				Err(err).
				Str("room_code", c.RoomCode).
				Str("player_id", c.PlayerID).
				Msg("answer not accepted")
		}
	}
}
