// AngelaMos | 2026
// bus.go

package events

import (
	"context"
	"log/slog"
	"sync"
)

const (
	EnquiryCreated = "enquiry:created"
	SessionChanged = "session:changed"
)

type Handler func(ctx context.Context, payload any)

// Bus delivers events synchronously in subscription order. A panicking
// handler is logged and does not stop delivery to the rest.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	logger *slog.Logger
}

type subscription struct {
	id uint64
	fn Handler
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers fn for topic and returns a func that removes it.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, topic, s.fn, payload)
	}
}

func (b *Bus) deliver(ctx context.Context, topic string, fn Handler, payload any) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.WarnContext(ctx, "event handler panicked",
				"topic", topic,
				"panic", p,
			)
		}
	}()
	fn(ctx, payload)
}
