package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxNameLength = 20

// JoinRequest asks to add a participant to a session in the lobby.
type JoinRequest struct {
	Name      string
	Spectator bool
}

// AnswerSubmission is one player's answer to the current question. A nil
// OptionKey is an explicit pass.
type AnswerSubmission struct {
	PlayerID  string
	OptionKey *string
	ElapsedMs int64
}

// Status is a lock-free summary of an actor, refreshed after every event.
type Status struct {
	Phase        models.Phase
	LastActivity time.Time
	FinishedAt   time.Time
	Connections  int
}

// Actor owns one session. Every mutation is an event processed to completion
// by a single goroutine, so no two mutations interleave and none of the
// fields below the mailbox need locking.
type Actor struct {
	cfg       Config
	clock     Clock
	questions QuestionSelector
	sink      EventSink
	metrics   metrics.Collector
	registry  *Registry
	log       zerolog.Logger

	mailbox   chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	status    atomic.Pointer[Status]

	// Owned by the run loop.
	phase            models.Phase
	stage            models.Stage
	players          map[string]*models.Player
	order            []string
	hostID           string
	tokens           map[string]string
	questionList     []models.Question
	index            int
	answers          map[string]models.Answer
	secondsRemaining int
	starting         bool
	timer            clockwork.Timer
	generation       uint64
	lastResults      []byte
	createdAt        time.Time
	startedAt        time.Time
	finishedAt       time.Time
	lastActivity     time.Time
}

// New creates the session with its host and starts the actor loop.
func New(cfg Config, hostName string, deps Deps) (*Actor, models.Player, error) {
	name, err := validateName(hostName)
	if err != nil {
		return nil, models.Player{}, err
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Events == nil {
		deps.Events = discardSink{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	if deps.Questions == nil {
		return nil, models.Player{}, fmt.Errorf("session %s: question selector is required", cfg.RoomCode)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 64
	}

	now := deps.Clock.Now()
	host := &models.Player{
		ID:     uuid.NewString(),
		Name:   name,
		IsHost: true,
	}
	hostToken := uuid.NewString()

	a := &Actor{
		cfg:          cfg,
		clock:        deps.Clock,
		questions:    deps.Questions,
		sink:         deps.Events,
		metrics:      deps.Metrics,
		registry:     NewRegistry(cfg.RoomCode, deps.Metrics),
		log:          log.With().Str("room_code", cfg.RoomCode).Logger(),
		mailbox:      make(chan event, cfg.MailboxSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		phase:        models.PhaseLobby,
		players:      map[string]*models.Player{host.ID: host},
		order:        []string{host.ID},
		hostID:       host.ID,
		tokens:       map[string]string{host.ID: hostToken},
		answers:      make(map[string]models.Answer),
		createdAt:    now,
		lastActivity: now,
	}
	a.publishStatus()

	go a.run()

	a.log.Info().Str("host_id", host.ID).Msg("session created")
	owned := *host
	owned.Token = hostToken
	return a, owned, nil
}

// RoomCode returns the session's immutable room code.
func (a *Actor) RoomCode() string {
	return a.cfg.RoomCode
}

// Status returns the latest summary without going through the mailbox.
func (a *Actor) Status() Status {
	return *a.status.Load()
}

// Done is closed once the actor has stopped processing events.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Close stops the actor, cancels its timers and closes every attached
// channel. It is safe to call more than once.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.quit)
	})
	<-a.done
}

// Join adds a player or spectator while the session is in the lobby.
func (a *Actor) Join(ctx context.Context, req JoinRequest) (models.Player, error) {
	reply := make(chan joinResult, 1)
	if err := a.send(ctx, joinEvent{req: req, reply: reply}); err != nil {
		return models.Player{}, err
	}
	select {
	case r := <-reply:
		return r.player, r.err
	case <-ctx.Done():
		return models.Player{}, ctx.Err()
	case <-a.done:
		return models.Player{}, ErrSessionClosed
	}
}

// Start moves the session from the lobby into the first question. Only the
// host may start, and only with at least two competitors.
func (a *Actor) Start(ctx context.Context, playerID string) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, startEvent{playerID: playerID, reply: reply}); err != nil {
		return err
	}
	return a.await(ctx, reply)
}

// SubmitAnswer records an answer for the current question. Late, duplicate
// and spectator answers are rejected with ErrAnswerRejected and change
// nothing.
func (a *Actor) SubmitAnswer(ctx context.Context, sub AnswerSubmission) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, answerEvent{sub: sub, reply: reply}); err != nil {
		return err
	}
	return a.await(ctx, reply)
}

// Attach makes ch the player's live channel and replays whatever the player
// needs to catch up. token must be the one issued when the player joined.
func (a *Actor) Attach(ctx context.Context, playerID, token string, ch Channel) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, attachEvent{playerID: playerID, token: token, ch: ch, reply: reply}); err != nil {
		return err
	}
	return a.await(ctx, reply)
}

// Detach forgets ch if it is still the player's channel. The player, their
// score and their answers are untouched.
func (a *Actor) Detach(ctx context.Context, playerID string, ch Channel) error {
	return a.send(ctx, detachEvent{playerID: playerID, ch: ch})
}

// Snapshot returns a copy of the current session state.
func (a *Actor) Snapshot(ctx context.Context) (models.Session, error) {
	reply := make(chan models.Session, 1)
	if err := a.send(ctx, snapshotEvent{reply: reply}); err != nil {
		return models.Session{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return models.Session{}, ctx.Err()
	case <-a.done:
		return models.Session{}, ErrSessionClosed
	}
}

// CurrentQuestion returns the question being played without its correct
// key. ok is false outside of the playing phase.
func (a *Actor) CurrentQuestion(ctx context.Context) (q models.Question, number int, ok bool, err error) {
	reply := make(chan currentQuestionResult, 1)
	if err := a.send(ctx, currentQuestionEvent{reply: reply}); err != nil {
		return models.Question{}, 0, false, err
	}
	select {
	case r := <-reply:
		return r.question, r.number, r.ok, nil
	case <-ctx.Done():
		return models.Question{}, 0, false, ctx.Err()
	case <-a.done:
		return models.Question{}, 0, false, ErrSessionClosed
	}
}

// Results returns the final standings once the session has finished.
func (a *Actor) Results(ctx context.Context) (Results, error) {
	reply := make(chan resultsReply, 1)
	if err := a.send(ctx, resultsEvent{reply: reply}); err != nil {
		return Results{}, err
	}
	select {
	case r := <-reply:
		return r.results, r.err
	case <-ctx.Done():
		return Results{}, ctx.Err()
	case <-a.done:
		return Results{}, ErrSessionClosed
	}
}

func (a *Actor) run() {
	defer close(a.done)
	for {
		select {
		case <-a.quit:
			a.stopTimer()
			a.generation++
			a.registry.CloseAll()
			a.log.Info().Msg("session closed")
			return
		case ev := <-a.mailbox:
			ev.handle(a)
			a.publishStatus()
		}
	}
}

func (a *Actor) send(ctx context.Context, ev event) error {
	select {
	case <-a.done:
		return ErrSessionClosed
	default:
	}
	select {
	case a.mailbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrSessionClosed
	}
}

// post delivers an internally generated event, such as a timer firing.
func (a *Actor) post(ev event) {
	select {
	case a.mailbox <- ev:
	case <-a.done:
	}
}

func (a *Actor) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrSessionClosed
	}
}

func (a *Actor) publishStatus() {
	a.status.Store(&Status{
		Phase:        a.phase,
		LastActivity: a.lastActivity,
		FinishedAt:   a.finishedAt,
		Connections:  a.registry.Count(),
	})
}

func (a *Actor) touch() {
	a.lastActivity = a.clock.Now()
}

// invariant guards programming-contract failures. Strict actors panic so the
// bug surfaces in development; otherwise the violation is logged and the
// caller skips the mutation.
func (a *Actor) invariant(ok bool, msg string) bool {
	if ok {
		return true
	}
	if a.cfg.StrictInvariants {
		panic(fmt.Sprintf("session %s: invariant violated: %s", a.cfg.RoomCode, msg))
	}
	a.log.Error().Str("invariant", msg).Msg("invariant violated, ignoring mutation")
	return false
}

func (a *Actor) emit(eventType string, payload any) {
	ev, err := events.New(eventType, a.cfg.RoomCode, a.clock.Now(), payload)
	if err != nil {
		a.log.Error().Err(err).Str("event_type", eventType).Msg("failed to build lifecycle event")
		return
	}
	a.sink.Enqueue(ev)
}

func (a *Actor) competitorCount() int {
	n := 0
	for _, p := range a.players {
		if !p.IsSpectator {
			n++
		}
	}
	return n
}

func (a *Actor) nameTaken(name string) bool {
	for _, p := range a.players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}
