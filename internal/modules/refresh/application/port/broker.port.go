package port

import (
	"context"

	"fleetWs/internal/platform/broker"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

type Listener interface {
	Listen(ctx context.Context, fn broker.MessageHandler, channels ...string) error
	Close(ctx context.Context) error
}

type ListenerFactory func(name string) Listener
