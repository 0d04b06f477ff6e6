package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to one published auth event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans auth events out to the handlers subscribed to their type.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// bus delivers events synchronously on the publishing goroutine, in
// subscription order.
type bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns an empty synchronous dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &bus{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs every handler for event.Type. A failing or panicking handler
// does not stop the ones after it; all failures come back joined.
func (b *bus) Publish(ctx context.Context, event Event) error {
	if event.Type == "" {
		return errors.New("events: publish without a type")
	}

	b.mu.RLock()
	subscribed := b.handlers[event.Type]
	b.mu.RUnlock()

	var errs []error
	for i, handler := range subscribed {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := deliver(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe appends handler to the list for eventType. Nil handlers are ignored.
func (b *bus) Subscribe(eventType EventType, handler EventHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// Copy on write; Publish iterates a snapshot.
	next := make([]EventHandler, len(b.handlers[eventType]), len(b.handlers[eventType])+1)
	copy(next, b.handlers[eventType])
	b.handlers[eventType] = append(next, handler)
}
