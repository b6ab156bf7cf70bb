package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event represents a system event with typed data
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler receives events published on the bus
type Handler func(event *Event)

// Bus is an in-process publish/subscribe event bus.
// Handlers are invoked synchronously in subscription order; a handler that
// must not block the emitter should hand off to its own goroutine or channel.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType]map[int]Handler
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[int]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a function
// that removes the subscription
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]Handler)
	}
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// SubscribeAll registers a handler for every event type. The returned
// function removes all the subscriptions at once.
func (b *Bus) SubscribeAll(handler Handler) func() {
	cancels := make([]func(), 0, len(AllTypes()))
	for _, t := range AllTypes() {
		cancels = append(cancels, b.Subscribe(t, handler))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Emit publishes an event to all handlers subscribed to its type
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType]))
	for _, h := range b.handlers[eventType] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
