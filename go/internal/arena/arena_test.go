package arena

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolSelector struct {
	questions []models.Question
}

func (p poolSelector) SelectQuestions(_ context.Context, count int) ([]models.Question, error) {
	if count > len(p.questions) {
		count = len(p.questions)
	}
	return p.questions[:count], nil
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *sinkRecorder) Enqueue(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) first() events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[0]
}

func questionPool(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:     fmt.Sprintf("q%d", i),
			Prompt: "Pick A",
			Options: []models.Option{
				{Key: "A", Text: "a"}, {Key: "B", Text: "b"},
				{Key: "C", Text: "c"}, {Key: "D", Text: "d"},
			},
			CorrectKey: "A",
		}
	}
	return qs
}

func newTestArena(t *testing.T, mutate func(*Config)) (*Arena, *clockwork.FakeClock, *sinkRecorder) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	sink := &sinkRecorder{}
	cfg := DefaultConfig()
	cfg.StrictInvariants = true
	if mutate != nil {
		mutate(&cfg)
	}
	ar := New(cfg, Deps{
		Clock:     clock,
		Questions: poolSelector{questions: questionPool(5)},
		Events:    sink,
	})
	t.Cleanup(ar.Shutdown)
	return ar, clock, sink
}

func TestArena_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("uses defaults and publishes MatchCreated", func(t *testing.T) {
		ar, _, sink := newTestArena(t, nil)

		code, host, err := ar.Create(ctx, CreateRequest{HostName: "Quiz Master"})
		require.NoError(t, err)
		assert.Len(t, code, RoomCodeLength)
		assert.True(t, host.IsHost)

		state, err := ar.State(ctx, strings.ToLower(code))
		require.NoError(t, err)
		assert.Equal(t, models.DefaultSettings(), state.Settings)
		assert.Equal(t, models.PhaseLobby, state.Phase)

		ev := sink.first()
		assert.Equal(t, events.TypeMatchCreated, ev.Type)
		assert.Equal(t, code, ev.RoomCode)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		ar, _, _ := newTestArena(t, nil)

		_, _, err := ar.Create(ctx, CreateRequest{HostName: ""})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		bad := models.Settings{MaxPlayers: 1, QuestionCount: 5, SecondsPerQuestion: 15}
		_, _, err = ar.Create(ctx, CreateRequest{HostName: "Host", Settings: &bad})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, _, err = ar.Create(ctx, CreateRequest{HostName: strings.Repeat("x", 21)})
		assert.ErrorIs(t, err, match.ErrInvalidName)
		assert.Zero(t, ar.Count())
	})

	t.Run("retries room code collisions", func(t *testing.T) {
		ar, _, _ := newTestArena(t, nil)
		codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
		ar.codes = func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}

		first, _, err := ar.Create(ctx, CreateRequest{HostName: "One"})
		require.NoError(t, err)
		second, _, err := ar.Create(ctx, CreateRequest{HostName: "Two"})
		require.NoError(t, err)
		assert.Equal(t, "AAAAAA", first)
		assert.Equal(t, "BBBBBB", second)
	})

	t.Run("enforces the session limit", func(t *testing.T) {
		ar, _, _ := newTestArena(t, func(c *Config) { c.MaxSessions = 1 })

		_, _, err := ar.Create(ctx, CreateRequest{HostName: "One"})
		require.NoError(t, err)
		_, _, err = ar.Create(ctx, CreateRequest{HostName: "Two"})
		assert.ErrorIs(t, err, ErrTooManySessions)
	})
}

func TestArena_UnknownSession(t *testing.T) {
	ar, _, _ := newTestArena(t, nil)
	ctx := context.Background()

	_, err := ar.Get("NOPE42")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = ar.Join(ctx, "NOPE42", match.JoinRequest{Name: "Bob"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, ar.Start(ctx, "NOPE42", "p1"), ErrSessionNotFound)
	_, err = ar.Results(ctx, "NOPE42")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestArena_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("removes idle lobbies", func(t *testing.T) {
		ar, clock, _ := newTestArena(t, func(c *Config) { c.LobbyTTL = time.Hour })
		code, _, err := ar.Create(ctx, CreateRequest{HostName: "Host"})
		require.NoError(t, err)
		actor, err := ar.Get(code)
		require.NoError(t, err)

		assert.Zero(t, ar.Sweep(clock.Now().Add(30*time.Minute)))
		assert.Equal(t, 1, ar.Sweep(clock.Now().Add(2*time.Hour)))

		_, err = ar.Get(code)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		<-actor.Done()
	})

	t.Run("removes finished sessions after the retention window", func(t *testing.T) {
		ar, clock, _ := newTestArena(t, func(c *Config) {
			c.FinishedTTL = 10 * time.Minute
			c.LobbyTTL = time.Minute
		})
		settings := models.Settings{MaxPlayers: 4, QuestionCount: 1, SecondsPerQuestion: 10}
		code, host, err := ar.Create(ctx, CreateRequest{HostName: "Host", Settings: &settings})
		require.NoError(t, err)
		bob, err := ar.Join(ctx, code, match.JoinRequest{Name: "Bob"})
		require.NoError(t, err)
		require.NoError(t, ar.Start(ctx, code, host.ID))

		actor, err := ar.Get(code)
		require.NoError(t, err)
		a := "A"
		require.NoError(t, actor.SubmitAnswer(ctx, match.AnswerSubmission{PlayerID: host.ID, OptionKey: &a, ElapsedMs: 1000}))
		require.NoError(t, actor.SubmitAnswer(ctx, match.AnswerSubmission{PlayerID: bob.ID, OptionKey: &a, ElapsedMs: 2000}))

		require.Eventually(t, func() bool {
			clock.Advance(time.Second)
			return actor.Status().Phase == models.PhaseFinished
		}, 5*time.Second, 10*time.Millisecond)

		finishedAt := actor.Status().FinishedAt
		assert.Zero(t, ar.Sweep(finishedAt.Add(5*time.Minute)), "finished sessions stay readable")

		results, err := ar.Results(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, 2, results.PlayerCount)

		assert.Equal(t, 1, ar.Sweep(finishedAt.Add(11*time.Minute)))
		assert.Zero(t, ar.Count())
	})
}

func TestArena_Shutdown(t *testing.T) {
	ar, _, _ := newTestArena(t, nil)
	ctx := context.Background()
	code, _, err := ar.Create(ctx, CreateRequest{HostName: "Host"})
	require.NoError(t, err)
	actor, err := ar.Get(code)
	require.NoError(t, err)

	ar.Shutdown()

	assert.Zero(t, ar.Count())
	select {
	case <-actor.Done():
	case <-time.After(time.Second):
		t.Fatal("actor still running after shutdown")
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateRoomCode()
		require.NoError(t, err)
		require.Len(t, code, RoomCodeLength)
		for _, r := range code {
			assert.Contains(t, RoomCodeChars, string(r))
		}
	}
	assert.Equal(t, "ABC234", NormalizeRoomCode("  abc234 "))
}
