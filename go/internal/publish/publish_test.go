package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyPublisher fails the first failures calls, then records events.
type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	calls     int
	published []events.Event
}

func (p *flakyPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *flakyPublisher) snapshot() (int, []events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]events.Event(nil), p.published...)
}

type publishRecord struct {
	eventType string
	success   bool
}

type recordingMetrics struct {
	metrics.NoOp
	mu      sync.Mutex
	records []publishRecord
}

func (m *recordingMetrics) PublishAttempt(eventType string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, publishRecord{eventType, success})
}

func testEvent(t *testing.T, eventType string) events.Event {
	t.Helper()
	ev, err := events.New(eventType, "ROOM42", time.Now(), map[string]string{"k": "v"})
	require.NoError(t, err)
	return ev
}

func fastConfig() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.BufferSize = 4
	return cfg
}

func TestDispatcher_RetriesUntilPublished(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	d := NewDispatcher(pub, fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ev := testEvent(t, events.TypeMatchStarted)
	d.Enqueue(ev)

	require.Eventually(t, func() bool {
		published, _, _ := d.Stats()
		return published == 1
	}, time.Second, 5*time.Millisecond)

	calls, got := pub.snapshot()
	assert.Equal(t, 3, calls)
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	pub := &flakyPublisher{failures: 100}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	d := NewDispatcher(pub, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(testEvent(t, events.TypeMatchFinished))

	require.Eventually(t, func() bool {
		_, failed, _ := d.Stats()
		return failed == 1
	}, time.Second, 5*time.Millisecond)

	calls, _ := pub.snapshot()
	assert.Equal(t, 3, calls)
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	pub := &flakyPublisher{}
	cfg := fastConfig()
	cfg.BufferSize = 2
	d := NewDispatcher(pub, cfg, nil)

	for i := 0; i < 5; i++ {
		d.Enqueue(testEvent(t, events.TypeQuestionRevealed))
	}

	_, _, dropped := d.Stats()
	assert.Equal(t, uint64(3), dropped)
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	pub := &flakyPublisher{}
	d := NewDispatcher(pub, fastConfig(), nil)
	d.Enqueue(testEvent(t, events.TypeMatchCreated))
	d.Enqueue(testEvent(t, events.TypeMatchStarted))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	_, got := pub.snapshot()
	assert.Len(t, got, 2)
}

func TestMultiPublisher(t *testing.T) {
	ok := &flakyPublisher{}
	broken := &flakyPublisher{failures: 1}
	m := MultiPublisher{ok, broken}

	err := m.Publish(context.Background(), testEvent(t, events.TypeMatchStarted))
	require.Error(t, err)
	_, got := ok.snapshot()
	assert.Len(t, got, 1, "a failing member must not stop the others")

	assert.NoError(t, m.Publish(context.Background(), testEvent(t, events.TypeMatchStarted)))
}

func TestMetricPublisher(t *testing.T) {
	rec := &recordingMetrics{}
	clock := clockwork.NewFakeClock()
	failing := PublisherFunc(func(context.Context, events.Event) error { return errors.New("nope") })

	require.NoError(t, NewMetricPublisher(&flakyPublisher{}, rec, clock).Publish(context.Background(), testEvent(t, events.TypeMatchCreated)))
	require.Error(t, NewMetricPublisher(failing, rec, clock).Publish(context.Background(), testEvent(t, events.TypeMatchFinished)))

	assert.Equal(t, []publishRecord{
		{events.TypeMatchCreated, true},
		{events.TypeMatchFinished, false},
	}, rec.records)
}

func TestJetStreamPublisher_StreamConfig(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}

	assert.Equal(t, "trivia.events.MatchFinished", p.Subject(events.TypeMatchFinished))

	sc := p.streamConfig()
	assert.Equal(t, "TRIVIA_EVENTS", sc.Name)
	assert.Equal(t, []string{"trivia.events.>"}, sc.Subjects)
	assert.Equal(t, jetstream.FileStorage, sc.Storage)

	changed := sc
	changed.MaxAge = time.Hour
	assert.True(t, streamConfigEqual(sc, sc))
	assert.False(t, streamConfigEqual(sc, changed))
}
