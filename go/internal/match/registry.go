package match

import (
	"errors"
	"sync"

	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotAttached is returned by SendTo when the player has no live channel.
var ErrNotAttached = errors.New("player has no attached channel")

// Channel is one live outbound connection to a client. Send must not block:
// implementations queue the payload or fail.
type Channel interface {
	Send(payload []byte) error
	Close()
}

// Registry maps player IDs to at most one live channel and fans payloads
// out to all of them. It holds no match state.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	metrics  metrics.Collector
	log      zerolog.Logger
}

// NewRegistry creates an empty registry for one session.
func NewRegistry(roomCode string, m metrics.Collector) *Registry {
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Registry{
		channels: make(map[string]Channel),
		metrics:  m,
		log:      log.With().Str("room_code", roomCode).Logger(),
	}
}

// Attach makes ch the player's only channel. A previous channel is dropped
// and closed; it receives nothing after this returns. Reports whether a
// previous channel was replaced.
func (r *Registry) Attach(playerID string, ch Channel) bool {
	r.mu.Lock()
	old, exists := r.channels[playerID]
	r.channels[playerID] = ch
	r.mu.Unlock()

	if !exists || old == ch {
		return false
	}
	old.Close()
	r.log.Debug().Str("player_id", playerID).Msg("replaced stale channel")
	return true
}

// Detach removes ch if it is still the player's current channel. A late
// close from a replaced channel is a no-op.
func (r *Registry) Detach(playerID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.channels[playerID]; ok && current == ch {
		delete(r.channels, playerID)
		return true
	}
	return false
}

// Broadcast sends payload to every attached channel. A channel whose send
// fails is detached and closed, and delivery continues with the rest.
// Returns the IDs of the players whose channels were dropped.
func (r *Registry) Broadcast(payload []byte) []string {
	r.mu.RLock()
	targets := make(map[string]Channel, len(r.channels))
	for id, ch := range r.channels {
		targets[id] = ch
	}
	r.mu.RUnlock()

	var dropped []string
	for id, ch := range targets {
		if err := ch.Send(payload); err != nil {
			dropped = append(dropped, id)
			r.drop(id, ch, err)
		}
	}
	return dropped
}

// SendTo sends payload to one player's channel.
func (r *Registry) SendTo(playerID string, payload []byte) error {
	r.mu.RLock()
	ch, ok := r.channels[playerID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotAttached
	}
	if err := ch.Send(payload); err != nil {
		r.drop(playerID, ch, err)
		return err
	}
	return nil
}

// IsAttached reports whether the player currently has a live channel.
func (r *Registry) IsAttached(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[playerID]
	return ok
}

// Count returns the number of attached channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll closes and forgets every channel.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
}

func (r *Registry) drop(playerID string, ch Channel, cause error) {
	r.Detach(playerID, ch)
	ch.Close()
	r.metrics.BroadcastFailed()
	r.log.Warn().
		Err(cause).
		Str("player_id", playerID).
		Msg("channel send failed, detached")
}
