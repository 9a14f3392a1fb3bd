package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel is the single broker channel carrying every domain event.
const Channel = "system_events"

// DefaultSource is stamped on events published without a source.
const DefaultSource = "unknown"

// TimestampLayout is ISO-8601 with millisecond precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrMalformedMessage marks a received payload that is not a usable DomainEvent.
	ErrMalformedMessage = errors.New("malformed domain event")

	// ErrHandlerExecution wraps a handler error or panic caught at the dispatch boundary.
	ErrHandlerExecution = errors.New("domain event handler failed")

	ErrInvalidPattern = errors.New("invalid subscription pattern")

	ErrInvalidEvent = errors.New("domain and action are required")
)

// DomainEvent is the wire shape published on Channel.
type DomainEvent struct {
	Domain        string          `json:"domain"`
	Action        string          `json:"action"`
	Data          json.RawMessage `json:"data"`
	Timestamp     string          `json:"timestamp"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Handler reacts to a matched event. Returned errors are logged, never propagated.
type Handler func(data json.RawMessage, domain, action string) error

// Normalize upper-cases and trims an event segment.
func Normalize(segment string) string {
	return strings.ToUpper(strings.TrimSpace(segment))
}

// NewDomainEvent encodes data and stamps the event at now.
func NewDomainEvent(domain, action string, data any, source, correlationID string, now time.Time) (DomainEvent, error) {
	domain, action = Normalize(domain), Normalize(action)
	if domain == "" || action == "" {
		return DomainEvent{}, ErrInvalidEvent
	}

	raw, ok := data.(json.RawMessage)
	if !ok || len(raw) == 0 {
		encoded, err := json.Marshal(data)
		if err != nil {
			return DomainEvent{}, fmt.Errorf("encode %s.%s data: %w", domain, action, err)
		}
		raw = encoded
	}

	if strings.TrimSpace(source) == "" {
		source = DefaultSource
	}

	return DomainEvent{
		Domain:        domain,
		Action:        action,
		Data:          raw,
		Timestamp:     now.UTC().Format(TimestampLayout),
		Source:        source,
		CorrelationID: strings.TrimSpace(correlationID),
	}, nil
}

// DecodeDomainEvent parses a broker payload. Events from other publishers are
// normalized again so matching stays case-insensitive.
func DecodeDomainEvent(payload []byte) (DomainEvent, error) {
	var ev DomainEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return DomainEvent{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	ev.Domain, ev.Action = Normalize(ev.Domain), Normalize(ev.Action)
	if ev.Domain == "" || ev.Action == "" {
		return DomainEvent{}, fmt.Errorf("%w: missing domain or action", ErrMalformedMessage)
	}
	if len(ev.Data) == 0 {
		ev.Data = json.RawMessage("null")
	}
	return ev, nil
}

// Key returns DOMAIN.ACTION.
func (e DomainEvent) Key() string {
	return e.Domain + "." + e.Action
}

// Time parses Timestamp.
func (e DomainEvent) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}
