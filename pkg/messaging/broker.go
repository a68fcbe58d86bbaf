package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw JSON payloads until ctx is done, then closes the
	// returned channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher is the fire-and-forget side used by domain services.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}
