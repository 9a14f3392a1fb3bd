package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownChannel = errors.New("unknown refresh channel")

	// ErrMalformedSignal marks a received payload that is not a RefreshSignal object.
	ErrMalformedSignal = errors.New("malformed refresh signal")
)

// Channel is one of the four refresh broker channels.
type Channel string

const (
	ChannelDashboard     Channel = "refresh.dashboard"
	ChannelNotifications Channel = "refresh.notifications"
	ChannelTrips         Channel = "refresh.trips"
	ChannelUsers         Channel = "refresh.users"
)

const channelPrefix = "refresh."

// Channels lists every refresh channel.
func Channels() []Channel {
	return []Channel{ChannelDashboard, ChannelNotifications, ChannelTrips, ChannelUsers}
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelDashboard, ChannelNotifications, ChannelTrips, ChannelUsers:
		return true
	}
	return false
}

// Namespace is the channel name without the "refresh." prefix.
func (c Channel) Namespace() string {
	return strings.TrimPrefix(string(c), channelPrefix)
}

func (c Channel) String() string { return string(c) }

// ParseChannel accepts "trips" or "refresh.trips", case-insensitively.
func ParseChannel(raw string) (Channel, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(name, channelPrefix) {
		name = channelPrefix + name
	}
	ch := Channel(name)
	if !ch.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, raw)
	}
	return ch, nil
}

// Signal tells connected clients to refetch. Every field is optional; Scope is an opaque hint.
type Signal struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	Scope  string `json:"scope,omitempty"`
}

// DecodeSignal parses a broker payload. Numeric ids sent by other producers are
// accepted and kept in their decimal text form.
func DecodeSignal(payload []byte) (Signal, error) {
	var raw struct {
		UserID json.RawMessage `json:"userId"`
		Role   json.RawMessage `json:"role"`
		Scope  json.RawMessage `json:"scope"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Signal{}, fmt.Errorf("%w: %w", ErrMalformedSignal, err)
	}

	var (
		sig Signal
		err error
	)
	if sig.UserID, err = textField("userId", raw.UserID); err != nil {
		return Signal{}, err
	}
	if sig.Role, err = textField("role", raw.Role); err != nil {
		return Signal{}, err
	}
	if sig.Scope, err = textField("scope", raw.Scope); err != nil {
		return Signal{}, err
	}
	return sig, nil
}

func textField(name string, raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrMalformedSignal, name, err)
		}
		return strings.TrimSpace(s), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%w: %s must be a string or number", ErrMalformedSignal, name)
		}
		return n.String(), nil
	}
}
