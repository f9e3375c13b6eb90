package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
	ErrInvalidRequest  = errors.New("invalid request")
)

const maxCodeAttempts = 16

// Config controls session defaults and housekeeping.
type Config struct {
	Defaults         models.Settings
	Scoring          match.ScoringConfig
	TickInterval     time.Duration
	RevealDelay      time.Duration
	SelectTimeout    time.Duration
	MaxSessions      int
	FinishedTTL      time.Duration
	LobbyTTL         time.Duration
	SweepInterval    time.Duration
	StrictInvariants bool
}

// DefaultConfig returns the production arena configuration.
func DefaultConfig() Config {
	return Config{
		Defaults:      models.DefaultSettings(),
		Scoring:       match.DefaultScoring(),
		TickInterval:  time.Second,
		RevealDelay:   4 * time.Second,
		SelectTimeout: 5 * time.Second,
		MaxSessions:   1000,
		FinishedTTL:   30 * time.Minute,
		LobbyTTL:      2 * time.Hour,
		SweepInterval: time.Minute,
	}
}

// Deps are shared by every session the arena creates.
type Deps struct {
	Clock     clockwork.Clock
	Questions match.QuestionSelector
	Events    match.EventSink
	Metrics   metrics.Collector
}

// CreateRequest describes a new session. Nil settings use the arena defaults.
type CreateRequest struct {
	HostName string           `json:"hostName" validate:"required"`
	Settings *models.Settings `json:"settings,omitempty"`
}

// Arena indexes live sessions by room code. It is the only state shared
// across sessions.
type Arena struct {
	cfg      Config
	deps     Deps
	validate *validator.Validate
	codes    func() (string, error)

	mu       sync.RWMutex
	sessions map[string]*match.Actor
}

// New creates an empty arena.
func New(cfg Config, deps Deps) *Arena {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	return &Arena{
		cfg:      cfg,
		deps:     deps,
		validate: validator.New(),
		codes:    GenerateRoomCode,
		sessions: make(map[string]*match.Actor),
	}
}

// Create validates req, allocates a unique room code and starts a session
// owned by the host.
func (ar *Arena) Create(ctx context.Context, req CreateRequest) (string, models.Player, error) {
	settings := ar.cfg.Defaults
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := ar.validate.StructCtx(ctx, req); err != nil {
		return "", models.Player{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := ar.validate.StructCtx(ctx, settings); err != nil {
		return "", models.Player{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ar.mu.Lock()
	if ar.cfg.MaxSessions > 0 && len(ar.sessions) >= ar.cfg.MaxSessions {
		ar.mu.Unlock()
		return "", models.Player{}, ErrTooManySessions
	}
	code, err := ar.uniqueCode()
	if err != nil {
		ar.mu.Unlock()
		return "", models.Player{}, err
	}

	cfg := match.Config{
		RoomCode:         code,
		Settings:         settings,
		Scoring:          ar.cfg.Scoring,
		TickInterval:     ar.cfg.TickInterval,
		RevealDelay:      ar.cfg.RevealDelay,
		SelectTimeout:    ar.cfg.SelectTimeout,
		StrictInvariants: ar.cfg.StrictInvariants,
	}
	actor, host, err := match.New(cfg, req.HostName, match.Deps{
		Clock:     ar.deps.Clock,
		Questions: ar.deps.Questions,
		Events:    ar.deps.Events,
		Metrics:   ar.deps.Metrics,
	})
	if err != nil {
		ar.mu.Unlock()
		return "", models.Player{}, err
	}
	ar.sessions[code] = actor
	ar.mu.Unlock()

	ar.deps.Metrics.SessionOpened()
	ar.publishCreated(code, host, settings)

	log.Info().
		Str("room_code", code).
		Str("host_id", host.ID).
		Int("max_players", settings.MaxPlayers).
		Int("question_count", settings.QuestionCount).
		Msg("session created")

	return code, host, nil
}

// uniqueCode must be called with mu held.
func (ar *Arena) uniqueCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := ar.codes()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := ar.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate room code: no free code after %d attempts", maxCodeAttempts)
}

func (ar *Arena) publishCreated(code string, host models.Player, settings models.Settings) {
	if ar.deps.Events == nil {
		return
	}
	now := ar.deps.Clock.Now()
	ev, err := events.New(events.TypeMatchCreated, code, now, events.MatchCreatedPayload{
		RoomCode:           code,
		HostID:             host.ID,
		HostName:           host.Name,
		MaxPlayers:         settings.MaxPlayers,
		QuestionCount:      settings.QuestionCount,
		SecondsPerQuestion: settings.SecondsPerQuestion,
		CreatedAt:          now,
	})
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to build MatchCreated event")
		return
	}
	ar.deps.Events.Enqueue(ev)
}

// Get looks up a session by room code, ignoring case.
func (ar *Arena) Get(code string) (*match.Actor, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	actor, ok := ar.sessions[NormalizeRoomCode(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return actor, nil
}

// Join adds a player to the session identified by code.
func (ar *Arena) Join(ctx context.Context, code string, req match.JoinRequest) (models.Player, error) {
	actor, err := ar.Get(code)
	if err != nil {
		return models.Player{}, err
	}
	return actor.Join(ctx, req)
}

// Start begins the session on behalf of playerID.
func (ar *Arena) Start(ctx context.Context, code, playerID string) error {
	actor, err := ar.Get(code)
	if err != nil {
		return err
	}
	return actor.Start(ctx, playerID)
}

// State returns a snapshot of the session.
func (ar *Arena) State(ctx context.Context, code string) (models.Session, error) {
	actor, err := ar.Get(code)
	if err != nil {
		return models.Session{}, err
	}
	return actor.Snapshot(ctx)
}

// Results returns the final standings of a finished session.
func (ar *Arena) Results(ctx context.Context, code string) (match.Results, error) {
	actor, err := ar.Get(code)
	if err != nil {
		return match.Results{}, err
	}
	return actor.Results(ctx)
}

// Count returns the number of live sessions.
func (ar *Arena) Count() int {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return len(ar.sessions)
}

// Sweep closes and forgets sessions that finished more than FinishedTTL ago
// and lobbies idle for more than LobbyTTL. Sessions in play are never swept.
// Returns the number of sessions removed.
func (ar *Arena) Sweep(now time.Time) int {
	var expired []*match.Actor

	ar.mu.Lock()
	for code, actor := range ar.sessions {
		st := actor.Status()
		stale := false
		switch st.Phase {
		case models.PhaseFinished:
			stale = ar.cfg.FinishedTTL > 0 && now.Sub(st.FinishedAt) > ar.cfg.FinishedTTL
		case models.PhaseLobby:
			stale = ar.cfg.LobbyTTL > 0 && now.Sub(st.LastActivity) > ar.cfg.LobbyTTL
		}
		if stale {
			delete(ar.sessions, code)
			expired = append(expired, actor)
		}
	}
	ar.mu.Unlock()

	for _, actor := range expired {
		actor.Close()
		ar.deps.Metrics.SessionClosed()
		log.Info().Str("room_code", actor.RoomCode()).Msg("session swept")
	}
	return len(expired)
}

// Run sweeps on every SweepInterval until ctx is cancelled.
func (ar *Arena) Run(ctx context.Context) error {
	interval := ar.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := ar.deps.Clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session sweeper stopped")
			return ctx.Err()
		case now := <-ticker.Chan():
			if n := ar.Sweep(now); n > 0 {
				log.Debug().Int("removed", n).Int("remaining", ar.Count()).Msg("sweep complete")
			}
		}
	}
}

// Shutdown closes every session.
func (ar *Arena) Shutdown() {
	ar.mu.Lock()
	sessions := ar.sessions
	ar.sessions = make(map[string]*match.Actor)
	ar.mu.Unlock()

	for _, actor := range sessions {
		actor.Close()
		ar.deps.Metrics.SessionClosed()
	}
	log.Info().Int("sessions", len(sessions)).Msg("arena shut down")
}
