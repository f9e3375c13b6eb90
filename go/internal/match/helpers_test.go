package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/protocol"
	"github.com/stretchr/testify/require"
)

var errChannelClosed = errors.New("channel closed")

// manualClock fires timers only when advanced. Callbacks run synchronously
// on the goroutine calling Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock  *manualClock
	at     time.Time
	fn     func()
	active bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) clockwork.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f, active: true}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if !t.active || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.active = false
		c.now = next.at
		c.mu.Unlock()
		next.fn()
	}
}

func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.active {
			n++
		}
	}
	return n
}

func (t *manualTimer) Chan() <-chan time.Time { return nil }

func (t *manualTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.at = t.clock.now.Add(d)
	t.active = true
	return was
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

// fakeChannel records every envelope it receives.
type fakeChannel struct {
	mu      sync.Mutex
	msgs    []protocol.Envelope
	closed  bool
	sendErr error
}

func (c *fakeChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return errChannelClosed
	}
	env, err := protocol.DecodeEnvelope(payload)
	if err != nil {
		return err
	}
	c.msgs = append(c.msgs, env)
	return nil
}

// failSends makes every later Send return err.
func (c *fakeChannel) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) kinds() []protocol.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Kind, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Type
	}
	return out
}

func (c *fakeChannel) count(kind protocol.Kind) int {
	n := 0
	for _, k := range c.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

// last decodes the most recent message of the given kind into v.
func (c *fakeChannel) last(t *testing.T, kind protocol.Kind, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == kind {
			require.NoError(t, json.Unmarshal(c.msgs[i].Data, v))
			return
		}
	}
	t.Fatalf("no %s message received", kind)
}

type staticSelector struct {
	mu        sync.Mutex
	questions []models.Question
	err       error
	calls     int
}

func (s *staticSelector) SelectQuestions(_ context.Context, count int) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if count > len(s.questions) {
		count = len(s.questions)
	}
	return s.questions[:count], nil
}

func (s *staticSelector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Enqueue(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func testQuestion(n int, correct string) models.Question {
	return models.Question{
		ID:     fmt.Sprintf("q%d", n),
		Prompt: fmt.Sprintf("Question %d?", n),
		Options: []models.Option{
			{Key: "A", Text: "alpha"},
			{Key: "B", Text: "bravo"},
			{Key: "C", Text: "charlie"},
			{Key: "D", Text: "delta"},
		},
		CorrectKey: correct,
		Commentary: fmt.Sprintf("Because %s.", correct),
	}
}

func testQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = testQuestion(i+1, "A")
	}
	return qs
}

func key(k string) *string {
	return &k
}

type harness struct {
	t        *testing.T
	actor    *Actor
	host     models.Player
	clock    *manualClock
	selector *staticSelector
	sink     *recordingSink
	cfg      Config
	tokens   map[string]string
}

func newHarness(t *testing.T, settings models.Settings, questions []models.Question) *harness {
	t.Helper()
	clock := newManualClock()
	selector := &staticSelector{questions: questions}
	sink := &recordingSink{}

	cfg := DefaultConfig("ABCDEF", settings)
	cfg.StrictInvariants = true

	actor, host, err := New(cfg, "Host", Deps{
		Clock:     clock,
		Questions: selector,
		Events:    sink,
	})
	require.NoError(t, err)
	t.Cleanup(actor.Close)

	return &harness{
		t:        t,
		actor:    actor,
		host:     host,
		clock:    clock,
		selector: selector,
		sink:     sink,
		cfg:      cfg,
		tokens:   map[string]string{host.ID: host.Token},
	}
}

func (h *harness) join(name string) models.Player {
	h.t.Helper()
	p, err := h.actor.Join(context.Background(), JoinRequest{Name: name})
	require.NoError(h.t, err)
	h.tokens[p.ID] = p.Token
	return p
}

func (h *harness) attach(playerID string) *fakeChannel {
	h.t.Helper()
	ch := &fakeChannel{}
	require.NoError(h.t, h.actor.Attach(context.Background(), playerID, h.tokens[playerID], ch))
	return ch
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.actor.Start(context.Background(), h.host.ID))
}

func (h *harness) answer(playerID string, option *string, elapsedMs int64) error {
	return h.actor.SubmitAnswer(context.Background(), AnswerSubmission{
		PlayerID:  playerID,
		OptionKey: option,
		ElapsedMs: elapsedMs,
	})
}

func (h *harness) snapshot() models.Session {
	h.t.Helper()
	s, err := h.actor.Snapshot(context.Background())
	require.NoError(h.t, err)
	return s
}

// tick advances the clock by one tick interval and waits for the actor to
// handle whatever fired.
func (h *harness) tick(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.clock.Advance(h.cfg.TickInterval)
		h.snapshot()
	}
}

func (h *harness) finishReveal() {
	h.t.Helper()
	h.clock.Advance(h.cfg.RevealDelay)
	h.snapshot()
}

func (h *harness) player(id string) models.Player {
	h.t.Helper()
	for _, p := range h.snapshot().Players {
		if p.ID == id {
			return p
		}
	}
	h.t.Fatalf("player %s not found", id)
	return models.Player{}
}
