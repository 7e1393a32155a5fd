package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"canvaschat/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventMessageReceived {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	bus.Close() // drain
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	bus.Publish(context.Background(), newEvent(domain.EventCanvasActivated))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1 before unsub, got %d", got.Load())
	}

	// Re-create bus since Close was called
	bus = newTestBus()
	unsub2 := bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	_ = unsub // original unsub for old bus

	unsub2()
	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected still 1 after unsub, got %d", got.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	// First subscriber panics
	bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	// Second subscriber should still fire
	bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected 1 (second handler), got %d", got.Load())
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventMessageReceived, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	bus.Close() // should block until the handler finishes

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	// After close, new publishes should be no-ops
	bus.Publish(context.Background(), newEvent(domain.EventMessageReceived))
	// Wait a bit to see if spurious delivery happens
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
}

func TestOrdered_SynchronousDelivery(t *testing.T) {
	bus := New(slog.Default(), WithOrdered())

	var got []domain.EventType
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		got = append(got, e.Type)
	})

	bus.Publish(context.Background(), newEvent(domain.EventCanvasActivated))
	bus.Publish(context.Background(), newEvent(domain.EventCanvasResized))
	bus.Publish(context.Background(), newEvent(domain.EventCanvasClosed))

	// No Close needed: delivery completes before Publish returns.
	assert.Equal(t, []domain.EventType{
		domain.EventCanvasActivated,
		domain.EventCanvasResized,
		domain.EventCanvasClosed,
	}, got)
}

func TestOrdered_NestedPublishQueuesBehindCurrent(t *testing.T) {
	bus := New(slog.Default(), WithOrdered())

	var seenBy [2][]domain.EventType
	bus.Subscribe(domain.EventCanvasActivated, func(ctx context.Context, e domain.Event) {
		seenBy[0] = append(seenBy[0], e.Type)
		bus.Publish(ctx, newEvent(domain.EventCanvasResized))
	})
	bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		seenBy[1] = append(seenBy[1], e.Type)
	})

	bus.Publish(context.Background(), newEvent(domain.EventCanvasActivated))

	assert.Equal(t, []domain.EventType{domain.EventCanvasActivated}, seenBy[0])
	// The all-subscriber sees the outer event before the nested one.
	assert.Equal(t, []domain.EventType{domain.EventCanvasActivated, domain.EventCanvasResized}, seenBy[1])
}

func TestOrdered_PanicRecovery(t *testing.T) {
	bus := New(slog.Default(), WithOrdered())

	calls := 0
	bus.Subscribe(domain.EventEditStarted, func(_ context.Context, _ domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventEditStarted, func(_ context.Context, _ domain.Event) { calls++ })

	bus.Publish(context.Background(), newEvent(domain.EventEditStarted))
	bus.Publish(context.Background(), newEvent(domain.EventEditStarted))
	assert.Equal(t, 2, calls)
}

func TestOrdered_UnsubscribeDuringDelivery(t *testing.T) {
	bus := New(slog.Default(), WithOrdered())

	calls := 0
	var unsub func()
	unsub = bus.Subscribe(domain.EventCanvasClosed, func(_ context.Context, _ domain.Event) {
		calls++
		unsub()
	})

	bus.Publish(context.Background(), newEvent(domain.EventCanvasClosed))
	bus.Publish(context.Background(), newEvent(domain.EventCanvasClosed))
	assert.Equal(t, 1, calls)
}
