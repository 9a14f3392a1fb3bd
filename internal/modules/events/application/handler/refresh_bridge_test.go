package handler

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"fleetWs/internal/modules/events/domain"
	refresh "fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/shared/logging"
)

type recordingEmitter struct {
	mu   sync.Mutex
	sent []emission
	err  error
}

func (r *recordingEmitter) EmitRefresh(_ context.Context, channel refresh.Channel, signal refresh.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, emission{channel, signal})
	return r.err
}

type recordingSubscriber struct {
	handlers map[string]domain.Handler
}

func (s *recordingSubscriber) Subscribe(pattern string, h domain.Handler) error {
	s.handlers[pattern] = h
	return nil
}

func registered(t *testing.T, emitter *recordingEmitter) map[string]domain.Handler {
	t.Helper()
	sub := &recordingSubscriber{handlers: map[string]domain.Handler{}}
	if err := NewRefreshBridge(emitter, logging.Discard()).Register(sub); err != nil {
		t.Fatalf("register: %v", err)
	}
	return sub.handlers
}

func TestRefreshBridge_RegistersDomainWildcards(t *testing.T) {
	handlers := registered(t, &recordingEmitter{})
	for _, pattern := range []string{"TRIP.*", "APPROVAL.*", "USER.*"} {
		if handlers[pattern] == nil {
			t.Fatalf("pattern %s not registered", pattern)
		}
	}
}

func TestRefreshBridge_TripTargetsOwnerAndDriver(t *testing.T) {
	emitter := &recordingEmitter{}
	handlers := registered(t, emitter)

	err := handlers["TRIP.*"](json.RawMessage(`{"tripId":42,"userId":"7","driverId":9}`), "TRIP", "COMPLETED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []emission{
		{refresh.ChannelTrips, refresh.Signal{UserID: "7", Scope: "TRIP"}},
		{refresh.ChannelTrips, refresh.Signal{UserID: "9", Scope: "TRIP"}},
		{refresh.ChannelDashboard, refresh.Signal{Scope: "TRIP"}},
	}
	if !reflect.DeepEqual(emitter.sent, expected) {
		t.Fatalf("unexpected emissions %+v", emitter.sent)
	}
}

func TestRefreshBridge_TripWithoutUserBroadcasts(t *testing.T) {
	emitter := &recordingEmitter{}
	handlers := registered(t, emitter)

	if err := handlers["TRIP.*"](json.RawMessage(`null`), "TRIP", "DELETED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emitter.sent) != 2 || emitter.sent[0] != (emission{refresh.ChannelTrips, refresh.Signal{Scope: "TRIP"}}) {
		t.Fatalf("unexpected emissions %+v", emitter.sent)
	}
}

func TestRefreshBridge_ApprovalDeduplicatesIDs(t *testing.T) {
	emitter := &recordingEmitter{}
	handlers := registered(t, emitter)

	if err := handlers["APPROVAL.*"](json.RawMessage(`{"approverId":"3","userId":"3"}`), "APPROVAL", "GRANTED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []emission{
		{refresh.ChannelNotifications, refresh.Signal{UserID: "3", Scope: "APPROVAL"}},
		{refresh.ChannelDashboard, refresh.Signal{Scope: "APPROVAL"}},
	}
	if !reflect.DeepEqual(emitter.sent, expected) {
		t.Fatalf("unexpected emissions %+v", emitter.sent)
	}
}

func TestRefreshBridge_UserTargetsAdmins(t *testing.T) {
	emitter := &recordingEmitter{}
	handlers := registered(t, emitter)

	if err := handlers["USER.*"](json.RawMessage(`{"id":"1"}`), "USER", "CREATED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []emission{
		{refresh.ChannelUsers, refresh.Signal{Scope: "USER"}},
		{refresh.ChannelDashboard, refresh.Signal{Role: "ADMIN", Scope: "USER"}},
	}
	if !reflect.DeepEqual(emitter.sent, expected) {
		t.Fatalf("unexpected emissions %+v", emitter.sent)
	}
}

func TestRefreshBridge_ReturnsEmitErrors(t *testing.T) {
	cause := errors.New("broker down")
	emitter := &recordingEmitter{err: cause}
	handlers := registered(t, emitter)

	err := handlers["USER.*"](nil, "USER", "DELETED")
	if !errors.Is(err, cause) {
		t.Fatalf("expected joined emit error, got %v", err)
	}
	if len(emitter.sent) != 2 {
		t.Fatalf("every emission should be attempted, got %d", len(emitter.sent))
	}
}
