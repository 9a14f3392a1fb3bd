package infrastructure

import (
	"log/slog"
	"sync"

	"fleetWs/internal/modules/realtime/domain"
	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/logging"
)

// Hub tracks the live clients of one namespace and their room memberships.
type Hub struct {
	namespace domain.Namespace
	logger    *slog.Logger

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
}

func NewHub(ns domain.Namespace, logger *slog.Logger) *Hub {
	return &Hub{
		namespace: ns,
		logger:    logging.Component(logger, "hub").With(slog.String("namespace", ns.String())),
		rooms:     make(map[string]map[*Client]struct{}),
		clients:   make(map[*Client]struct{}),
	}
}

func (h *Hub) Namespace() domain.Namespace { return h.namespace }

// Attach registers c and joins it to its rooms. Membership is fixed for the connection's life.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	for room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.WithLabelValues(h.namespace.String()).Set(float64(count))
	h.logger.Info("ws client attached", slog.String("clientId", c.ID()), slog.String("userId", c.UserID()), slog.Any("rooms", c.Rooms()))
}

// Detach drops c from every room and closes it. Safe to call more than once.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c]
	if known {
		delete(h.clients, c)
		for room := range c.rooms {
			if members, ok := h.rooms[room]; ok {
				delete(members, c)
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if known {
		metrics.ConnectedClients.WithLabelValues(h.namespace.String()).Set(float64(count))
		h.logger.Info("ws client detached", slog.String("clientId", c.ID()), slog.String("userId", c.UserID()))
	}
}

// EmitToRoom queues frame for every member of room and returns how many were reached.
func (h *Hub) EmitToRoom(room string, frame []byte) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	return h.deliver(members, frame)
}

// EmitToAll queues frame for every client on the namespace.
func (h *Hub) EmitToAll(frame []byte) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		members = append(members, c)
	}
	h.mu.RUnlock()
	return h.deliver(members, frame)
}

func (h *Hub) deliver(members []*Client, frame []byte) int {
	sent := 0
	for _, c := range members {
		if c.enqueue(frame) {
			sent++
			continue
		}
		metrics.FramesDropped.WithLabelValues(h.namespace.String()).Inc()
		h.logger.Warn("ws send buffer full", slog.String("clientId", c.ID()), slog.String("userId", c.UserID()))
		go h.Detach(c)
	}
	return sent
}

// Count returns the number of attached clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of members of room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close detaches every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Detach(c)
	}
}
