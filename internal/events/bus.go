package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"demodrop/internal/logging"
)

// TrackUploaded is published once per track after a submission commits.
const TrackUploaded = "track.uploaded"

// Event is one named occurrence with a string payload. Attempt counts
// deliveries of this event so far, starting at 1.
type Event struct {
	ID      string
	Name    string
	Payload map[string]string
	Attempt int
}

// Handler consumes one event. A non-nil error triggers redelivery.
type Handler func(ctx context.Context, evt Event) error

// ErrBusStopped is returned by Publish after Stop or before Start.
var ErrBusStopped = errors.New("event bus not running")

const queueDepth = 256

// Bus dispatches events to subscribed handlers on background workers.
type Bus struct {
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration

	mu       sync.RWMutex
	handlers map[string][]Handler
	running  bool
	cancel   context.CancelFunc
	queue    chan Event
	wg       sync.WaitGroup
}

// NewBus constructs a bus. maxAttempts is clamped to at least one delivery.
func NewBus(logger *slog.Logger, maxAttempts int, backoff time.Duration) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff < 0 {
		backoff = 0
	}
	return &Bus{
		logger:      logger.With(logging.String(logging.FieldComponent, "events")),
		maxAttempts: maxAttempts,
		backoff:     backoff,
		handlers:    make(map[string][]Handler),
	}
}

// Subscribe registers a handler for a named event. Subscriptions made after
// Start apply to events published afterward.
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Start launches the dispatch workers.
func (b *Bus) Start(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errors.New("event bus already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.queue = make(chan Event, queueDepth)
	b.running = true

	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.runWorker(runCtx)
	}
	return nil
}

// Stop drains in-flight deliveries and shuts the workers down.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
}

// Publish enqueues an event for delivery. The payload map is not copied, so
// callers must not mutate it afterward.
func (b *Bus) Publish(ctx context.Context, name string, payload map[string]string) error {
	b.mu.RLock()
	running := b.running
	queue := b.queue
	b.mu.RUnlock()
	if !running {
		return ErrBusStopped
	}

	evt := Event{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: payload,
		Attempt: 1,
	}
	select {
	case queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) runWorker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.queue:
			b.deliver(ctx, evt)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := b.handlers[evt.Name]
	b.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	for _, h := range handlers {
		err := h(ctx, evt)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		b.logger.Warn("event handler failed",
			logging.String(logging.FieldEventType, evt.Name),
			logging.String("event_id", evt.ID),
			logging.Int("attempt", evt.Attempt),
			logging.Error(err),
		)
		if evt.Attempt >= b.maxAttempts {
			b.logger.Error("event exhausted delivery attempts",
				logging.String(logging.FieldEventType, evt.Name),
				logging.String("event_id", evt.ID),
				logging.Int("attempts", evt.Attempt),
			)
			return
		}
		b.redeliver(ctx, Event{ID: evt.ID, Name: evt.Name, Payload: evt.Payload, Attempt: evt.Attempt + 1})
		return
	}
}

// redeliver requeues an event after the backoff. The wait happens on a timer
// so the delivering worker stays free for other events.
func (b *Bus) redeliver(ctx context.Context, evt Event) {
	queue := b.queue
	requeue := func() {
		select {
		case queue <- evt:
		case <-ctx.Done():
		}
	}
	if b.backoff <= 0 {
		requeue()
		return
	}
	time.AfterFunc(b.backoff, requeue)
}
