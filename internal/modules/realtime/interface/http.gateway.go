package transport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"fleetWs/internal/modules/realtime/application/usecase"
	"fleetWs/internal/modules/realtime/infrastructure"
	"fleetWs/internal/shared/auth"
	"fleetWs/internal/shared/httputil"
	"fleetWs/internal/shared/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var handshakeErrors = httputil.NewErrorMapper().
	WithMapping(auth.ErrMissingToken, http.StatusUnauthorized, "missing token").
	WithMapping(auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token").
	WithMapping(usecase.ErrUserMismatch, http.StatusForbidden, "userId does not match token").
	WithDefault(http.StatusUnauthorized, "unauthorized")

// NewWebsocketHandler serves GET /ws/<namespace>. Identity is resolved before the
// upgrade, so a rejected handshake never joins a room.
func NewWebsocketHandler(hub *infrastructure.Hub, connectUC *usecase.ConnectUseCase, sendBuffer int, logger *slog.Logger) echo.HandlerFunc {
	ns := hub.Namespace()
	logger = logging.Component(logger, "gateway").With(slog.String("namespace", ns.String()))

	return func(c echo.Context) error {
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		peerIP := c.RealIP()

		identity, err := connectUC.Execute(usecase.ConnectInput{
			Namespace: ns,
			Token:     auth.ExtractToken(c.Request(), "token"),
			UserID:    c.QueryParam("userId"),
		})
		if err != nil {
			info := handshakeErrors.Map(err)
			logger.Warn("ws handshake rejected", slog.String("ip", peerIP), slog.String("reqID", requestID), slog.Int("status", info.Status), slog.Any("error", err))
			return echo.NewHTTPError(info.Status, info.Message)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Error("ws upgrade failed", slog.String("ip", peerIP), slog.String("reqID", requestID), slog.Any("error", err))
			var hsErr websocket.HandshakeError
			if errors.As(err, &hsErr) {
				// Upgrade already wrote the error response.
				return nil
			}
			return err
		}

		client := infrastructure.NewClient(conn, ns, identity, sendBuffer)
		hub.Attach(client)

		go client.WritePump(logger)
		go client.ReadPump(hub, logger)

		logger.Info("ws connected",
			slog.String("clientId", client.ID()),
			slog.String("userId", identity.UserID),
			slog.Bool("authenticated", identity.Authenticated),
			slog.String("ip", peerIP),
			slog.String("reqID", requestID),
		)
		return nil
	}
}
