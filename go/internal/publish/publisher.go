package publish

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Publisher delivers one lifecycle event to a downstream system.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// LogPublisher writes events to the structured log. Used when no broker is
// configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev events.Event) error {
	log.Info().
		Str("event_id", ev.ID.String()).
		Str("event_type", ev.Type).
		Str("room_code", ev.RoomCode).
		Int("payload_bytes", len(ev.Payload)).
		Msg("lifecycle event")
	return nil
}

// MultiPublisher publishes to every member and joins their errors. A retry
// re-publishes to members that already succeeded, so members must tolerate
// duplicates by event ID.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev events.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MetricPublisher records the outcome and latency of every publish.
type MetricPublisher struct {
	next    Publisher
	metrics metrics.Collector
	clock   clockwork.Clock
}

func NewMetricPublisher(next Publisher, m metrics.Collector, clock clockwork.Clock) *MetricPublisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricPublisher{next: next, metrics: m, clock: clock}
}

func (p *MetricPublisher) Publish(ctx context.Context, ev events.Event) error {
	start := p.clock.Now()
	err := p.next.Publish(ctx, ev)
	p.metrics.PublishAttempt(ev.Type, err == nil, p.clock.Since(start))
	return err
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev events.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev events.Event) error {
	return f(ctx, ev)
}
