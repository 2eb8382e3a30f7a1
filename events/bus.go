// Package events fans protocol events and display lines out to subscribers.
// Delivery is synchronous on the emitting goroutine; subscribers must not
// block.
package events

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
)

// AnyEvent subscribes to every event name.
const AnyEvent = "*"

type eventSubscription struct {
	id      string
	name    string
	handler func(event *entities.Event)
}

type displaySubscription struct {
	id      string
	handler func(message *entities.DisplayMessage)
}

type Bus struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	onEvent []eventSubscription
	onLine  []displaySubscription
}

type Option func(*Bus)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func NewBus(opts ...Option) *Bus {
	bus := &Bus{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Subscribe registers handler for events called name, or every event when
// name is AnyEvent. The returned id unsubscribes.
func (b *Bus) Subscribe(name string, handler func(event *entities.Event)) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.onEvent = append(b.onEvent, eventSubscription{id: id, name: name, handler: handler})
	b.mu.Unlock()
	return id
}

func (b *Bus) OnDisplay(handler func(message *entities.DisplayMessage)) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.onLine = append(b.onLine, displaySubscription{id: id, handler: handler})
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription of either kind. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, subscription := range b.onEvent {
		if subscription.id == id {
			b.onEvent = append(b.onEvent[:i:i], b.onEvent[i+1:]...)
			return
		}
	}
	for i, subscription := range b.onLine {
		if subscription.id == id {
			b.onLine = append(b.onLine[:i:i], b.onLine[i+1:]...)
			return
		}
	}
}

func (b *Bus) Emit(event *entities.Event) {
	b.mu.RLock()
	handlers := make([]func(*entities.Event), 0, len(b.onEvent))
	for _, subscription := range b.onEvent {
		if subscription.name == AnyEvent || subscription.name == event.Name {
			handlers = append(handlers, subscription.handler)
		}
	}
	b.mu.RUnlock()
	for _, handler := range handlers {
		b.deliver(event.Name, func() { handler(event) })
	}
}

func (b *Bus) Display(message *entities.DisplayMessage) {
	b.mu.RLock()
	handlers := make([]func(*entities.DisplayMessage), 0, len(b.onLine))
	for _, subscription := range b.onLine {
		handlers = append(handlers, subscription.handler)
	}
	b.mu.RUnlock()
	for _, handler := range handlers {
		b.deliver("display", func() { handler(message) })
	}
}

// deliver isolates the emitter from a panicking subscriber.
func (b *Bus) deliver(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", zap.String("event", name), zap.Any("panic", r))
		}
	}()
	fn()
}
