package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fleetWs/internal/modules/refresh/application/port"
	"fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/logging"
)

// SignalSink receives every decoded signal of one channel, in delivery order.
type SignalSink func(domain.Signal)

// SignalListener reads one refresh channel on its own dedicated connection.
// Each process runs one per channel, so every process receives every signal.
type SignalListener struct {
	channel     domain.Channel
	newListener port.ListenerFactory
	sink        SignalSink
	logger      *slog.Logger

	mu       sync.Mutex
	listener port.Listener
}

func NewSignalListener(channel domain.Channel, newListener port.ListenerFactory, sink SignalSink, logger *slog.Logger) *SignalListener {
	return &SignalListener{
		channel:     channel,
		newListener: newListener,
		sink:        sink,
		logger:      logging.Component(logger, "refresh-listener").With(slog.String("channel", channel.String())),
	}
}

func (l *SignalListener) Channel() domain.Channel { return l.channel }

func (l *SignalListener) Start(ctx context.Context) error {
	if !l.channel.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownChannel, l.channel)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return nil
	}
	listener := l.newListener(l.channel.String())
	if err := listener.Listen(ctx, l.onMessage, l.channel.String()); err != nil {
		_ = listener.Close(ctx)
		return fmt.Errorf("refresh subscribe %s: %w", l.channel, err)
	}
	l.listener = listener
	l.logger.Info("refresh listener started")
	return nil
}

// Stop is idempotent and safe before Start.
func (l *SignalListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	listener := l.listener
	l.listener = nil
	l.mu.Unlock()
	if listener == nil {
		return nil
	}
	return listener.Close(ctx)
}

func (l *SignalListener) onMessage(_ string, payload []byte) {
	sig, err := domain.DecodeSignal(payload)
	if err != nil {
		metrics.MalformedMessages.WithLabelValues(l.channel.String()).Inc()
		l.logger.Warn("refresh listener dropped malformed signal", slog.Int("bytes", len(payload)), slog.Any("error", err))
		return
	}
	metrics.RefreshReceived.WithLabelValues(l.channel.Namespace()).Inc()
	l.sink(sig)
}
