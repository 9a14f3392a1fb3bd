package port

import (
	"context"

	"fleetWs/internal/platform/broker"
)

// Publisher sends JSON messages on the shared command connection.
type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
	Ping(ctx context.Context) error
}

// Listener is a dedicated subscribe-mode connection with a single bound handler.
type Listener interface {
	Listen(ctx context.Context, fn broker.MessageHandler, channels ...string) error
	Close(ctx context.Context) error
}

// ListenerFactory creates a fresh Listener on its own cloned connection.
type ListenerFactory func(name string) Listener

var _ Listener = (*broker.Subscriber)(nil)
