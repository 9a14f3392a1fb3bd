package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fleetWs/internal/modules/events/domain"
	refresh "fleetWs/internal/modules/refresh/domain"
	"fleetWs/internal/shared/logging"
)

// RefreshEmitter publishes refresh signals.
type RefreshEmitter interface {
	EmitRefresh(ctx context.Context, channel refresh.Channel, signal refresh.Signal) error
}

// Subscriber is the router surface the bridge registers on.
type Subscriber interface {
	Subscribe(pattern string, handler domain.Handler) error
}

const emitTimeout = 5 * time.Second

// RefreshBridge turns business domain events into refresh signals for connected clients.
type RefreshBridge struct {
	emitter RefreshEmitter
	logger  *slog.Logger
}

func NewRefreshBridge(emitter RefreshEmitter, logger *slog.Logger) *RefreshBridge {
	return &RefreshBridge{emitter: emitter, logger: logging.Component(logger, "refresh-bridge")}
}

// Register subscribes the bridge handlers on r.
func (b *RefreshBridge) Register(r Subscriber) error {
	routes := []struct {
		pattern string
		handler domain.Handler
	}{
		{"TRIP.*", b.onTrip},
		{"APPROVAL.*", b.onApproval},
		{"USER.*", b.onUser},
	}
	for _, route := range routes {
		if err := r.Subscribe(route.pattern, route.handler); err != nil {
			return fmt.Errorf("register %s: %w", route.pattern, err)
		}
	}
	return nil
}

// onTrip refreshes the trip owner and driver, then the dashboard.
func (b *RefreshBridge) onTrip(data json.RawMessage, domainName, action string) error {
	scope := domainName
	ids := userIDs(data, "userId", "driverId")
	return b.emitAll(domainName, action,
		append(perUser(refresh.ChannelTrips, ids, scope), emission{refresh.ChannelDashboard, refresh.Signal{Scope: scope}})...)
}

// onApproval notifies approver and requester, then the dashboard.
func (b *RefreshBridge) onApproval(data json.RawMessage, domainName, action string) error {
	scope := domainName
	ids := userIDs(data, "approverId", "userId")
	return b.emitAll(domainName, action,
		append(perUser(refresh.ChannelNotifications, ids, scope), emission{refresh.ChannelDashboard, refresh.Signal{Scope: scope}})...)
}

// onUser refreshes every users client and the admin dashboards.
func (b *RefreshBridge) onUser(_ json.RawMessage, domainName, action string) error {
	scope := domainName
	return b.emitAll(domainName, action,
		emission{refresh.ChannelUsers, refresh.Signal{Scope: scope}},
		emission{refresh.ChannelDashboard, refresh.Signal{Role: "ADMIN", Scope: scope}},
	)
}

type emission struct {
	channel refresh.Channel
	signal  refresh.Signal
}

// perUser targets each id, or broadcasts when there is none.
func perUser(channel refresh.Channel, ids []string, scope string) []emission {
	if len(ids) == 0 {
		return []emission{{channel, refresh.Signal{Scope: scope}}}
	}
	out := make([]emission, 0, len(ids))
	for _, id := range ids {
		out = append(out, emission{channel, refresh.Signal{UserID: id, Scope: scope}})
	}
	return out
}

func (b *RefreshBridge) emitAll(domainName, action string, emissions ...emission) error {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	var errs []error
	for _, e := range emissions {
		if err := b.emitter.EmitRefresh(ctx, e.channel, e.signal); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.channel, err))
		}
	}
	b.logger.Debug("refresh bridge emitted",
		slog.String("domain", domainName),
		slog.String("action", action),
		slog.Int("signals", len(emissions)),
		slog.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// userIDs reads the named fields of a JSON object as ids, skipping blanks and duplicates.
func userIDs(data json.RawMessage, fields ...string) []string {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil
	}

	var ids []string
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		var id string
		switch v := obj[field].(type) {
		case string:
			id = strings.TrimSpace(v)
		case json.Number:
			id = v.String()
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
