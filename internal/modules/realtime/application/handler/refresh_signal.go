package handler

import (
	"fleetWs/internal/modules/realtime/application/usecase"
	refresh "fleetWs/internal/modules/refresh/domain"
)

// RefreshSignalHandler feeds one refresh channel into its gateway's fanout.
type RefreshSignalHandler struct {
	UseCase *usecase.FanoutUseCase
}

// Channel is the refresh channel matching the gateway namespace.
func (h *RefreshSignalHandler) Channel() refresh.Channel {
	return h.UseCase.Namespace().Channel()
}

func (h *RefreshSignalHandler) Handle(sig refresh.Signal) {
	h.UseCase.Execute(sig)
}
