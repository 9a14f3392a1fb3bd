package usecase

import (
	"log/slog"

	"fleetWs/internal/modules/realtime/application/port"
	"fleetWs/internal/modules/realtime/domain"
	refresh "fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/shared/logging"
)

// FanoutUseCase pushes a refresh frame to the audience a signal targets.
type FanoutUseCase struct {
	namespace   domain.Namespace
	broadcaster port.Broadcaster
	logger      *slog.Logger
}

func NewFanoutUseCase(ns domain.Namespace, b port.Broadcaster, logger *slog.Logger) *FanoutUseCase {
	return &FanoutUseCase{
		namespace:   ns,
		broadcaster: b,
		logger:      logging.Component(logger, "fanout").With(slog.String("namespace", ns.String())),
	}
}

func (uc *FanoutUseCase) Namespace() domain.Namespace { return uc.namespace }

// Execute returns the number of clients the frame was queued for.
func (uc *FanoutUseCase) Execute(sig refresh.Signal) int {
	frame, err := domain.RefreshFrame(sig.Scope)
	if err != nil {
		uc.logger.Error("refresh frame encode failed", slog.Any("error", err))
		return 0
	}

	target := domain.TargetFor(uc.namespace, sig)
	var sent int
	if target.Broadcast() {
		sent = uc.broadcaster.EmitToAll(frame)
	} else {
		sent = uc.broadcaster.EmitToRoom(target.Room, frame)
	}

	uc.logger.Debug("refresh fanout",
		slog.String("room", target.Room),
		slog.String("scope", sig.Scope),
		slog.Int("clients", sent),
	)
	return sent
}
