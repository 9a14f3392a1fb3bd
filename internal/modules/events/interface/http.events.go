package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"fleetWs/internal/modules/events/domain"
	"fleetWs/internal/modules/events/infrastructure"
	"fleetWs/internal/shared/httputil"
)

// EventRouter is the router surface used by the HTTP endpoints.
type EventRouter interface {
	Publish(ctx context.Context, domainName, action string, data any, opts ...infrastructure.PublishOption) error
	Stats() infrastructure.Stats
}

// PublishRequest is the body of POST /api/events.
type PublishRequest struct {
	Domain        string          `json:"domain"`
	Action        string          `json:"action"`
	Data          json.RawMessage `json:"data,omitempty"`
	Source        string          `json:"source,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

type PublishResponse struct {
	Success       bool   `json:"success"`
	Event         string `json:"event"`
	CorrelationID string `json:"correlationId,omitempty"`
}

var eventErrors = httputil.NewErrorMapper().
	WithMapping(domain.ErrInvalidEvent, http.StatusBadRequest, "domain and action are required").
	WithMappings(httputil.BrokerErrors...)

// NewPublishHTTPHandler exposes POST /api/events for collaborators outside the process.
func NewPublishHTTPHandler(router EventRouter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req PublishRequest
		if err := c.Bind(&req); err != nil {
			slog.Warn("events http: invalid request body", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		var opts []infrastructure.PublishOption
		if req.Source != "" {
			opts = append(opts, infrastructure.WithSource(req.Source))
		}
		if req.CorrelationID != "" {
			opts = append(opts, infrastructure.WithCorrelationID(req.CorrelationID))
		}

		var data any
		if len(req.Data) > 0 {
			data = req.Data
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := router.Publish(ctx, req.Domain, req.Action, data, opts...); err != nil {
			info := eventErrors.Map(err)
			slog.Warn("events http: publish failed", slog.String("domain", req.Domain), slog.String("action", req.Action), slog.Int("status", info.Status), slog.Any("error", err))
			return eventErrors.HTTPError(err)
		}

		return c.JSON(http.StatusAccepted, PublishResponse{
			Success:       true,
			Event:         domain.Normalize(req.Domain) + "." + domain.Normalize(req.Action),
			CorrelationID: req.CorrelationID,
		})
	}
}

// NewStatsHTTPHandler exposes GET /api/events/stats.
func NewStatsHTTPHandler(router EventRouter) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, router.Stats())
	}
}
