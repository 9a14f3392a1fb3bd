package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"fleetWs/internal/modules/events/infrastructure"
	"fleetWs/internal/platform/broker"
	"fleetWs/internal/shared/logging"
)

type capturingPublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *capturingPublisher) Publish(_ context.Context, channel string, v any) error {
	if p.err != nil {
		return p.err
	}
	p.channel = channel
	payload, err := json.Marshal(v)
	p.payload = payload
	return err
}

func (p *capturingPublisher) Ping(context.Context) error { return nil }

func newServer(pub *capturingPublisher) (*echo.Echo, *infrastructure.Router) {
	router := infrastructure.NewRouter(pub, nil, logging.Discard())
	e := echo.New()
	e.POST("/api/events", NewPublishHTTPHandler(router))
	e.GET("/api/events/stats", NewStatsHTTPHandler(router))
	return e, router
}

func post(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublishHTTP_PublishesDomainEvent(t *testing.T) {
	pub := &capturingPublisher{}
	e, _ := newServer(pub)

	rec := post(e, `{"domain":"trip","action":"completed","data":{"tripId":42},"source":"trip-service","correlationId":"corr-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"success":true,"event":"TRIP.COMPLETED","correlationId":"corr-1"}`, rec.Body.String())

	require.Equal(t, "system_events", pub.channel)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &ev))
	require.Equal(t, "TRIP", ev["domain"])
	require.Equal(t, "COMPLETED", ev["action"])
	require.Equal(t, "trip-service", ev["source"])
	require.Equal(t, "corr-1", ev["correlationId"])
	require.Equal(t, map[string]any{"tripId": float64(42)}, ev["data"])
}

func TestPublishHTTP_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing action", `{"domain":"trip"}`, nil, http.StatusBadRequest},
		{"bad body", `{"domain":`, nil, http.StatusBadRequest},
		{"broker down", `{"domain":"a","action":"b"}`, broker.ErrTransportUnavailable, http.StatusServiceUnavailable},
		{"broker rejected", `{"domain":"a","action":"b"}`, broker.ErrPublishFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newServer(&capturingPublisher{err: tc.err})
			rec := post(e, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestStatsHTTP(t *testing.T) {
	e, router := newServer(&capturingPublisher{})
	require.NoError(t, router.Subscribe("trip.*", func(json.RawMessage, string, string) error { return nil }))

	req := httptest.NewRequest(http.MethodGet, "/api/events/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"handlerCount":1,"patterns":["TRIP.*"]}`, rec.Body.String())
}
