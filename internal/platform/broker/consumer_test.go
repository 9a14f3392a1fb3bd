package broker

import (
	"context"
	"testing"
)

func TestDecodeRecord_UsesPayloadFields(t *testing.T) {
	rec := decodeRecord("fleet.events", []byte(`{"entity":"trip","action":"completed","data":{"tripId":42},"source":"trip-service","correlationId":"corr-1"}`))

	if rec.Domain != "trip" || rec.Action != "completed" {
		t.Fatalf("unexpected domain/action: %s/%s", rec.Domain, rec.Action)
	}
	if string(rec.Data) != `{"tripId":42}` {
		t.Fatalf("unexpected data: %s", rec.Data)
	}
	if rec.Source != "trip-service" || rec.CorrelationID != "corr-1" {
		t.Fatalf("unexpected source/correlation: %s/%s", rec.Source, rec.CorrelationID)
	}
}

func TestDecodeRecord_DomainBeatsEntity(t *testing.T) {
	rec := decodeRecord("x", []byte(`{"domain":"approval","entity":"ignored","action":"granted"}`))
	if rec.Domain != "approval" {
		t.Fatalf("expected domain field to win, got %s", rec.Domain)
	}
	if string(rec.Data) != "null" {
		t.Fatalf("expected null data, got %s", rec.Data)
	}
	if rec.Source != "kafka:x" {
		t.Fatalf("expected topic source, got %s", rec.Source)
	}
}

func TestDecodeRecord_FallsBackToTopic(t *testing.T) {
	rec := decodeRecord("fleet.vehicle.updated", []byte("not json"))
	if rec.Domain != "vehicle" || rec.Action != "updated" {
		t.Fatalf("unexpected inferred domain/action: %s/%s", rec.Domain, rec.Action)
	}
	if string(rec.Data) != `"not json"` {
		t.Fatalf("expected raw value as json string, got %s", rec.Data)
	}

	rec = decodeRecord("users", []byte(`{"data":1}`))
	if rec.Domain != "users" || rec.Action != "unknown" {
		t.Fatalf("unexpected single segment inference: %s/%s", rec.Domain, rec.Action)
	}
}

func TestInferDomainActionFromTopic(t *testing.T) {
	cases := map[string][2]string{
		"trip.created":     {"trip", "created"},
		"a.b.trip.deleted": {"trip", "deleted"},
		"trips":            {"trips", "unknown"},
		"trip.":            {"", "unknown"},
		"":                 {"", "unknown"},
	}
	for topic, expected := range cases {
		domain, action := inferDomainActionFromTopic(topic)
		if domain != expected[0] || action != expected[1] {
			t.Fatalf("inferDomainActionFromTopic(%q) expected %v got %s/%s", topic, expected, domain, action)
		}
	}
}

func TestStartKafkaBridge_NoBrokersIsNoop(t *testing.T) {
	called := false
	StartKafkaBridge(context.Background(), func(context.Context, Record) error {
		called = true
		return nil
	}, nil, "g", []string{"t"}, nil)
	if called {
		t.Fatal("sink must not be called without brokers")
	}
}
