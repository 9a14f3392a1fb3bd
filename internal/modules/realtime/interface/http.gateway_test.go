package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"fleetWs/internal/modules/realtime/application/usecase"
	"fleetWs/internal/modules/realtime/domain"
	"fleetWs/internal/modules/realtime/infrastructure"
	refresh "fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/shared/auth"
	"fleetWs/internal/shared/logging"
)

const testSecret = "gateway-secret"

type gatewayServer struct {
	url    string
	hub    *infrastructure.Hub
	fanout *usecase.FanoutUseCase
}

func newGatewayServer(t *testing.T, ns domain.Namespace, strict bool) *gatewayServer {
	t.Helper()
	hub := infrastructure.NewHub(ns, logging.Discard())
	connectUC := usecase.NewConnectUseCase(auth.NewJWTValidator(testSecret), strict, logging.Discard())

	e := echo.New()
	e.GET("/ws/"+ns.String(), NewWebsocketHandler(hub, connectUC, 8, logging.Discard()))
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &gatewayServer{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + ns.String(),
		hub:    hub,
		fanout: usecase.NewFanoutUseCase(ns, hub, logging.Discard()),
	}
}

func (g *gatewayServer) dial(t *testing.T, query string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(g.url+query, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (g *gatewayServer) waitClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.hub.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func readFrame(conn *websocket.Conn, wait time.Duration) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	_, msg, err := conn.ReadMessage()
	return string(msg), err
}

func signToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestGateway_UserTargetedRefresh(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceTrips, false)
	seven := g.dial(t, "?userId=7", nil)
	other := g.dial(t, "?userId=8", nil)
	g.waitClients(t, 2)

	require.Equal(t, 1, g.fanout.Execute(refresh.Signal{UserID: "7", Scope: "TRIPS"}))

	frame, err := readFrame(seven, 2*time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"refresh","data":{"type":"REFRESH","scope":"TRIPS"}}`, frame)

	_, err = readFrame(other, 200*time.Millisecond)
	require.Error(t, err, "client with a different userId must not receive the frame")
}

func TestGateway_BroadcastReachesEveryClient(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceNotifications, false)
	conns := []*websocket.Conn{
		g.dial(t, "?userId=1", nil),
		g.dial(t, "?userId=2", nil),
		g.dial(t, "", nil),
	}
	g.waitClients(t, 3)

	require.Equal(t, 3, g.fanout.Execute(refresh.Signal{Scope: "APPROVAL"}))
	for _, conn := range conns {
		frame, err := readFrame(conn, 2*time.Second)
		require.NoError(t, err)
		require.JSONEq(t, `{"event":"refresh","data":{"type":"REFRESH","scope":"APPROVAL"}}`, frame)
	}
}

func TestGateway_DashboardRejectsInvalidToken(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceDashboard, false)

	for _, header := range []http.Header{
		nil,
		{"Authorization": []string{"Bearer not-a-token"}},
	} {
		_, resp, err := websocket.DefaultDialer.Dial(g.url, header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}
	require.Zero(t, g.hub.Count())
	require.Zero(t, g.hub.RoomSize(domain.AllRoom(domain.NamespaceDashboard)))
}

func TestGateway_DashboardJoinsRoleAndUserRooms(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceDashboard, false)
	admin := g.dial(t, "", http.Header{"Authorization": []string{"Bearer " + signToken(t, "1", "ADMIN")}})
	driver := g.dial(t, "?token="+signToken(t, "2", "DRIVER"), nil)
	g.waitClients(t, 2)

	require.Equal(t, 1, g.hub.RoomSize("dashboard_role_ADMIN"))
	require.Equal(t, 1, g.hub.RoomSize("dashboard_user_2"))

	require.Equal(t, 1, g.fanout.Execute(refresh.Signal{Role: "ADMIN", Scope: "USER"}))
	frame, err := readFrame(admin, 2*time.Second)
	require.NoError(t, err)
	require.Contains(t, frame, `"scope":"USER"`)
	_, err = readFrame(driver, 200*time.Millisecond)
	require.Error(t, err)
}

func TestGateway_LowerCaseRoleSignalReachesRoleRoom(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceDashboard, false)
	admin := g.dial(t, "?token="+signToken(t, "1", "admin"), nil)
	g.waitClients(t, 1)

	require.Equal(t, 1, g.fanout.Execute(refresh.Signal{Role: "admin", Scope: "USER"}))
	frame, err := readFrame(admin, 2*time.Second)
	require.NoError(t, err)
	require.Contains(t, frame, `"scope":"USER"`)
}

func TestGateway_StrictModeRequiresToken(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceUsers, true)

	_, resp, err := websocket.DefaultDialer.Dial(g.url+"?userId=5", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	g.dial(t, "?token="+signToken(t, "5"), nil)
	g.waitClients(t, 1)
	require.Equal(t, 1, g.hub.RoomSize("users_user_5"))
}

func TestGateway_HubCloseSendsNormalClosure(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceTrips, false)
	conn := g.dial(t, "?userId=3", nil)
	g.waitClients(t, 1)

	g.hub.Close()
	_, err := readFrame(conn, 2*time.Second)
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected a normal close frame, got %v", err)
}

func TestGateway_DisconnectDropsMembership(t *testing.T) {
	g := newGatewayServer(t, domain.NamespaceTrips, false)
	conn := g.dial(t, "?userId=9", nil)
	g.waitClients(t, 1)

	require.NoError(t, conn.Close())
	g.waitClients(t, 0)
	require.Zero(t, g.hub.RoomSize("trips_user_9"))
}
