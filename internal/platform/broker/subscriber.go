package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MessageHandler receives every payload delivered on a subscribed channel.
// It runs on the subscriber's single listener goroutine, in delivery order.
type MessageHandler func(channel string, payload []byte)

// Subscriber owns one dedicated connection in blocking subscribe mode.
type Subscriber struct {
	name   string
	client *redis.Client
	logger *slog.Logger

	mu       sync.Mutex
	pubsub   *redis.PubSub
	channels []string
	closed   bool
	done     chan struct{}
}

func newSubscriber(name string, client *redis.Client, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		name:   name,
		client: client,
		logger: logger.With(slog.String("subscriber", name)),
		done:   make(chan struct{}),
	}
}

// Listen binds fn as the listener first and only then subscribes to channels, so a
// message published right after the SUBSCRIBE reply always finds a listener.
func (s *Subscriber) Listen(ctx context.Context, fn MessageHandler, channels ...string) error {
	if len(channels) == 0 {
		return ErrNoChannels
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSubscriberClosed
	}
	if s.pubsub != nil {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	ps := s.client.Subscribe(ctx)
	msgs := ps.Channel()
	s.pubsub = ps
	s.channels = append([]string(nil), channels...)
	s.mu.Unlock()

	go s.loop(msgs, fn)

	if err := ps.Subscribe(ctx, channels...); err != nil {
		return classify(fmt.Sprintf("subscribe %v", channels), err)
	}
	s.logger.Info("broker subscribed", slog.Any("channels", channels))
	return nil
}

func (s *Subscriber) loop(msgs <-chan *redis.Message, fn MessageHandler) {
	defer close(s.done)
	for msg := range msgs {
		if msg == nil {
			continue
		}
		s.invoke(fn, msg)
	}
	s.logger.Debug("broker listener stopped")
}

func (s *Subscriber) invoke(fn MessageHandler, msg *redis.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("broker listener panic", slog.String("channel", msg.Channel), slog.Any("panic", r))
		}
	}()
	fn(msg.Channel, []byte(msg.Payload))
}

// Channels returns the channels passed to Listen.
func (s *Subscriber) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.channels...)
}

// Close unsubscribes, closes the pub/sub connection and the dedicated client.
// Safe to call more than once and when Listen was never called.
func (s *Subscriber) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ps := s.pubsub
	s.mu.Unlock()

	var errs []error
	if ps != nil {
		if err := ps.Unsubscribe(ctx); err != nil && !isTransportError(err) {
			errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
		}
		if err := ps.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, fmt.Errorf("close pubsub: %w", err))
		}
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}
	s.logger.Info("broker subscriber closed")
	return errors.Join(errs...)
}
