package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"fleetWs/internal/modules/refresh/application/port"
	"fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/logging"
)

// Emitter publishes refresh signals on the command connection.
type Emitter struct {
	publisher port.Publisher
	logger    *slog.Logger
}

func NewEmitter(publisher port.Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logging.Component(logger, "refresh")}
}

// EmitRefresh sends signal on channel. Delivery is best effort and not retried.
func (e *Emitter) EmitRefresh(ctx context.Context, channel domain.Channel, signal domain.Signal) error {
	if !channel.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownChannel, channel)
	}
	if err := e.publisher.Publish(ctx, channel.String(), signal); err != nil {
		metrics.RefreshEmitted.WithLabelValues(channel.Namespace(), "error").Inc()
		e.logger.Warn("refresh emit failed", slog.String("channel", channel.String()), slog.Any("error", err))
		return err
	}
	metrics.RefreshEmitted.WithLabelValues(channel.Namespace(), "ok").Inc()
	e.logger.Debug("refresh emitted",
		slog.String("channel", channel.String()),
		slog.String("userId", signal.UserID),
		slog.String("role", signal.Role),
		slog.String("scope", signal.Scope),
	)
	return nil
}
