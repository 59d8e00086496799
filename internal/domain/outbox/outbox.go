package outbox

import "context"

// Event is a named domain event, e.g. order.placed.
type Event interface {
	EventName() string
}

// Handler processes a delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher hands an event to the bus for asynchronous delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers by event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
