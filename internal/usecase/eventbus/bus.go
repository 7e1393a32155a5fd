package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"canvaschat/internal/domain"
)

type subscription struct {
	id      uint64
	handler domain.EventHandler
}

type queued struct {
	ctx   context.Context
	event domain.Event
}

// Option configures a Bus.
type Option func(*Bus)

// WithOrdered makes the bus deliver events synchronously, one at a time, in
// publish order. Events published from inside a handler are queued behind the
// event being delivered, so every subscriber observes the same sequence.
func WithOrdered() Option {
	return func(b *Bus) { b.ordered = true }
}

// Bus is an in-process, goroutine-safe event bus.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]subscription
	allSubs []subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool

	ordered  bool
	qmu      sync.Mutex
	queue    []queued
	draining bool
}

// New creates an event bus. By default each handler runs in its own goroutine.
func New(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		typed:  make(map[domain.EventType][]subscription),
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish fans out an event to matching typed subscribers and all-event subscribers.
// Panicking handlers are recovered.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}
	if b.ordered {
		b.publishOrdered(ctx, event)
		return
	}

	for _, sub := range b.snapshot(event.Type) {
		b.dispatch(ctx, event, sub)
	}
}

func (b *Bus) snapshot(t domain.EventType) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]subscription, 0, len(b.typed[t])+len(b.allSubs))
	subs = append(subs, b.typed[t]...)
	return append(subs, b.allSubs...)
}

func (b *Bus) publishOrdered(ctx context.Context, event domain.Event) {
	b.qmu.Lock()
	b.queue = append(b.queue, queued{ctx: ctx, event: event})
	if b.draining {
		b.qmu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.qmu.Unlock()

		for _, sub := range b.snapshot(next.event.Type) {
			b.invoke(next.ctx, next.event, sub)
		}

		b.qmu.Lock()
	}
	b.draining = false
	b.qmu.Unlock()
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event, sub subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.invoke(ctx, event, sub)
	}()
}

func (b *Bus) invoke(ctx context.Context, event domain.Event, sub subscription) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(event.Type),
				"panic", r,
			)
		}
	}()
	sub.handler(ctx, event)
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.typed[eventType]
		for i, s := range subs {
			if s.id == id {
				b.typed[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.allSubs {
			if s.id == id {
				b.allSubs = append(b.allSubs[:i:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

// Close prevents new publishes and waits for all in-flight handlers to finish.
// Close is idempotent and safe to call multiple times.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.wg.Wait()
}
