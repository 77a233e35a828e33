package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guatepass/tolling/internal/domain"
)

var ErrClosed = errors.New("event bus closed")

// Handler consumes one crossing event. Errors matching domain.ErrValidation
// are permanent; any other error is redelivered.
type Handler func(ctx context.Context, event domain.TollCrossingEvent) error

type Options struct {
	Workers       int
	QueueSize     int
	MaxDeliveries int
	RetryBackoff  time.Duration
}

type Stats struct {
	Published    int64 `json:"published"`
	Delivered    int64 `json:"delivered"`
	Redelivered  int64 `json:"redelivered"`
	Rejected     int64 `json:"rejected"`
	DeadLettered int64 `json:"dead_lettered"`
}

// Bus is an in-process queue of crossing events drained by a worker pool.
// Handlers must be idempotent: a failed event is handed to the handler
// again, up to MaxDeliveries times.
type Bus struct {
	handler Handler
	opts    Options
	queue   chan domain.TollCrossingEvent
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	published    atomic.Int64
	delivered    atomic.Int64
	redelivered  atomic.Int64
	rejected     atomic.Int64
	deadLettered atomic.Int64
}

func New(handler Handler, opts Options, logger *slog.Logger) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	return &Bus{
		handler: handler,
		opts:    opts,
		queue:   make(chan domain.TollCrossingEvent, opts.QueueSize),
		logger:  logger.With("component", "eventbus"),
	}
}

// Start launches the workers. ctx is handed to every handler call;
// cancelling it abandons pending redeliveries.
func (b *Bus) Start(ctx context.Context) {
	for i := 0; i < b.opts.Workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}
	b.logger.Info("event bus started", "workers", b.opts.Workers, "queue_size", b.opts.QueueSize)
}

// Publish enqueues an event, blocking while the queue is full.
func (b *Bus) Publish(ctx context.Context, event domain.TollCrossingEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	select {
	case b.queue <- event:
		b.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting events and waits for the queue to drain.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) Stats() Stats {
	return Stats{
		Published:    b.published.Load(),
		Delivered:    b.delivered.Load(),
		Redelivered:  b.redelivered.Load(),
		Rejected:     b.rejected.Load(),
		DeadLettered: b.deadLettered.Load(),
	}
}

func (b *Bus) worker(ctx context.Context) {
	defer b.wg.Done()
	for event := range b.queue {
		b.deliver(ctx, event)
	}
}

func (b *Bus) deliver(ctx context.Context, event domain.TollCrossingEvent) {
	log := b.logger.With("event_id", event.EventID, "plate", event.Plate)

	for attempt := 1; ; attempt++ {
		err := b.handler(ctx, event)
		switch {
		case err == nil:
			b.delivered.Add(1)
			return
		case errors.Is(err, domain.ErrValidation):
			b.rejected.Add(1)
			log.Warn("event rejected", "error", err)
			return
		case attempt >= b.opts.MaxDeliveries:
			b.deadLettered.Add(1)
			log.Error("event dropped after max deliveries", "attempts", attempt, "error", err)
			return
		}

		b.redelivered.Add(1)
		log.Warn("event delivery failed, redelivering", "attempt", attempt, "error", err)

		select {
		case <-time.After(b.opts.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			b.deadLettered.Add(1)
			log.Error("event abandoned on shutdown", "attempts", attempt, "error", err)
			return
		}
	}
}
