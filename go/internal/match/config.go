package match

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/mcdev12/trivia/go/internal/models"
)

// Clock is the scheduling dependency of an actor. In production, use
// clockwork.NewRealClock(). Tests drive it by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// QuestionSelector supplies the questions for one match. It is called at
// most once per successful start.
type QuestionSelector interface {
	SelectQuestions(ctx context.Context, count int) ([]models.Question, error)
}

// EventSink receives lifecycle events. Enqueue must not block.
type EventSink interface {
	Enqueue(ev events.Event)
}

// Config holds everything fixed for the lifetime of one session.
type Config struct {
	RoomCode         string
	Settings         models.Settings
	Scoring          ScoringConfig
	TickInterval     time.Duration
	RevealDelay      time.Duration
	SelectTimeout    time.Duration
	MailboxSize      int
	StrictInvariants bool
}

// DefaultConfig returns production timing with the given room code and
// settings.
func DefaultConfig(roomCode string, settings models.Settings) Config {
	return Config{
		RoomCode:      roomCode,
		Settings:      settings,
		Scoring:       DefaultScoring(),
		TickInterval:  time.Second,
		RevealDelay:   4 * time.Second,
		SelectTimeout: 5 * time.Second,
		MailboxSize:   64,
	}
}

// Deps are the collaborators an actor talks to.
type Deps struct {
	Clock     Clock
	Questions QuestionSelector
	Events    EventSink
	Metrics   metrics.Collector
}

type discardSink struct{}

func (discardSink) Enqueue(events.Event) {}
