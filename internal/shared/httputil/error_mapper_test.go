package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"fleetWs/internal/platform/broker"
)

var errBadInput = errors.New("bad input")

func TestErrorMapper_Map(t *testing.T) {
	m := NewErrorMapper().
		WithMapping(errBadInput, http.StatusBadRequest, "bad input").
		WithMappings(BrokerErrors...)

	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", errBadInput), http.StatusBadRequest},
		{fmt.Errorf("%w: publish x: %w", broker.ErrTransportUnavailable, errors.New("refused")), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: publish x: %w", broker.ErrPublishFailed, errors.New("READONLY")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := m.Map(tc.err); got.Status != tc.status {
			t.Fatalf("Map(%v) expected %d got %d", tc.err, tc.status, got.Status)
		}
	}
}

func TestErrorMapper_DefaultAndHTTPError(t *testing.T) {
	m := NewErrorMapper().WithDefault(http.StatusTeapot, "teapot")
	cause := errors.New("boom")

	httpErr := m.HTTPError(cause)
	if httpErr.Code != http.StatusTeapot || httpErr.Message != "teapot" {
		t.Fatalf("unexpected http error %+v", httpErr)
	}
	if !errors.Is(httpErr, cause) {
		t.Fatal("http error should unwrap to its cause")
	}
}
