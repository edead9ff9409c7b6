package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"demodrop/internal/events"
	"demodrop/internal/logging"
)

func startBus(t *testing.T, maxAttempts int) *events.Bus {
	t.Helper()
	bus := events.NewBus(logging.NewNop(), maxAttempts, 0)
	if err := bus.Start(context.Background(), 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(bus.Stop)
	return bus
}

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := startBus(t, 3)

	received := make(chan events.Event, 1)
	bus.Subscribe("track.uploaded", func(ctx context.Context, evt events.Event) error {
		received <- evt
		return nil
	})

	payload := map[string]string{"track_id": "t-1"}
	if err := bus.Publish(context.Background(), "track.uploaded", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case evt := <-received:
		if evt.Payload["track_id"] != "t-1" {
			t.Fatalf("unexpected payload: %v", evt.Payload)
		}
		if evt.Attempt != 1 {
			t.Fatalf("attempt = %d, want 1", evt.Attempt)
		}
		if evt.ID == "" {
			t.Fatal("expected event ID")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestBusRedeliversUntilSuccess(t *testing.T) {
	bus := startBus(t, 5)

	var mu sync.Mutex
	attempts := make([]int, 0, 3)
	done := make(chan struct{})
	bus.Subscribe("track.uploaded", func(ctx context.Context, evt events.Event) error {
		mu.Lock()
		attempts = append(attempts, evt.Attempt)
		count := len(attempts)
		mu.Unlock()
		if count < 3 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	})

	if err := bus.Publish(context.Background(), "track.uploaded", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for redelivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(attempts))
	}
	for i, attempt := range attempts {
		if attempt != i+1 {
			t.Fatalf("attempt sequence %v, want 1..3", attempts)
		}
	}
}

func TestBusStopsRedeliveryAfterBudget(t *testing.T) {
	bus := startBus(t, 2)

	var mu sync.Mutex
	deliveries := 0
	bus.Subscribe("track.uploaded", func(ctx context.Context, evt events.Event) error {
		mu.Lock()
		deliveries++
		mu.Unlock()
		return errors.New("always failing")
	})

	if err := bus.Publish(context.Background(), "track.uploaded", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		count := deliveries
		mu.Unlock()
		if count >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Give a failed extra attempt a chance to show up before asserting.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if deliveries != 2 {
		t.Fatalf("deliveries = %d, want exactly 2", deliveries)
	}
}

func TestBusBackoffDoesNotBlockWorkers(t *testing.T) {
	bus := events.NewBus(logging.NewNop(), 3, time.Second)
	if err := bus.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(bus.Stop)

	bus.Subscribe("always.failing", func(ctx context.Context, evt events.Event) error {
		return errors.New("transient failure")
	})
	delivered := make(chan struct{}, 1)
	bus.Subscribe("healthy", func(ctx context.Context, evt events.Event) error {
		delivered <- struct{}{}
		return nil
	})

	if err := bus.Publish(context.Background(), "always.failing", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(context.Background(), "healthy", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// With the single worker parked on the failing event's backoff this
	// would not arrive until the full second had passed.
	select {
	case <-delivered:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("backoff stalled delivery of an unrelated event")
	}
}

func TestBusPublishAfterStop(t *testing.T) {
	bus := events.NewBus(logging.NewNop(), 3, 0)
	if err := bus.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bus.Stop()

	err := bus.Publish(context.Background(), "track.uploaded", nil)
	if !errors.Is(err, events.ErrBusStopped) {
		t.Fatalf("expected ErrBusStopped, got %v", err)
	}
}

func TestBusIgnoresUnsubscribedEvents(t *testing.T) {
	bus := startBus(t, 3)
	if err := bus.Publish(context.Background(), "nobody.listens", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.Stop()
}
