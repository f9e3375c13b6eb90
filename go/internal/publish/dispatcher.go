package publish

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/rs/zerolog/log"
)

// DispatcherConfig controls buffering and retry of lifecycle events.
type DispatcherConfig struct {
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
	PublishTimeout time.Duration
	DrainTimeout   time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize:     256,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
		PublishTimeout: 5 * time.Second,
		DrainTimeout:   5 * time.Second,
	}
}

// Dispatcher decouples event producers from publishing I/O. Enqueue never
// blocks; a single worker publishes events in order with bounded retry.
type Dispatcher struct {
	publisher Publisher
	cfg       DispatcherConfig
	clock     clockwork.Clock
	queue     chan events.Event

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(p Publisher, cfg DispatcherConfig, clock clockwork.Clock) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		publisher: p,
		cfg:       cfg,
		clock:     clock,
		queue:     make(chan events.Event, cfg.BufferSize),
	}
}

// Enqueue schedules ev for publishing. When the buffer is full the event is
// dropped and counted.
func (d *Dispatcher) Enqueue(ev events.Event) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		log.Warn().
			Str("event_id", ev.ID.String()).
			Str("event_type", ev.Type).
			Str("room_code", ev.RoomCode).
			Msg("event buffer full, dropping lifecycle event")
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left within DrainTimeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Int("buffer", cap(d.queue)).Msg("event dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain() {
	if len(d.queue) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()

	log.Info().Int("pending", len(d.queue)).Msg("draining lifecycle events")
	for {
		select {
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev events.Event) {
	if err := d.publishWithRetry(ctx, ev); err != nil {
		d.failed.Add(1)
		log.Error().
			Err(err).
			Str("event_id", ev.ID.String()).
			Str("event_type", ev.Type).
			Str("room_code", ev.RoomCode).
			Msg("failed to publish lifecycle event")
		return
	}
	d.published.Add(1)
}

// publishWithRetry attempts to publish ev with a linearly growing delay
// between attempts.
func (d *Dispatcher) publishWithRetry(ctx context.Context, ev events.Event) error {
	var lastErr error

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := d.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.clock.After(delay):
			}
		}

		if err := d.publishOnce(ctx, ev); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", ev.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", ev.ID.String()).
				Msg("published after retry")
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", d.cfg.MaxRetries+1, lastErr)
}

func (d *Dispatcher) publishOnce(ctx context.Context, ev events.Event) error {
	if d.cfg.PublishTimeout <= 0 {
		return d.publisher.Publish(ctx, ev)
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()
	return d.publisher.Publish(ctx, ev)
}

// Stats reports how many events were published, failed after all retries,
// or dropped on a full buffer.
func (d *Dispatcher) Stats() (published, failed, dropped uint64) {
	return d.published.Load(), d.failed.Load(), d.dropped.Load()
}
