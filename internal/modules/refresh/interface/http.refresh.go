package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/shared/httputil"
)

// RefreshEmitter is the use case behind the refresh endpoint.
type RefreshEmitter interface {
	EmitRefresh(ctx context.Context, channel domain.Channel, signal domain.Signal) error
}

type RefreshResponse struct {
	Success bool          `json:"success"`
	Channel string        `json:"channel"`
	Signal  domain.Signal `json:"signal"`
}

var refreshErrors = httputil.NewErrorMapper().
	WithMapping(domain.ErrUnknownChannel, http.StatusBadRequest, "unknown refresh channel").
	WithMappings(httputil.BrokerErrors...)

// NewRefreshHTTPHandler exposes POST /api/refresh/:channel for producers that
// cannot reach the broker directly.
func NewRefreshHTTPHandler(emitter RefreshEmitter) echo.HandlerFunc {
	return func(c echo.Context) error {
		channel, err := domain.ParseChannel(c.Param("channel"))
		if err != nil {
			return refreshErrors.HTTPError(err)
		}

		var signal domain.Signal
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&signal); err != nil {
				slog.Warn("refresh http: invalid request body", slog.Any("error", err))
				return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
			}
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := emitter.EmitRefresh(ctx, channel, signal); err != nil {
			return refreshErrors.HTTPError(err)
		}

		slog.Info("refresh http: signal emitted",
			slog.String("channel", channel.String()),
			slog.String("userId", signal.UserID),
			slog.String("role", signal.Role),
			slog.String("scope", signal.Scope),
		)
		return c.JSON(http.StatusAccepted, RefreshResponse{Success: true, Channel: channel.String(), Signal: signal})
	}
}
