package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Keyed events carry the id of the aggregate they describe; transports use it
// as a partition key so events for one order stay ordered.
type Keyed interface {
	Event
	AggregateID() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
