package infrastructure

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetWs/internal/modules/realtime/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 1 << 16
)

// Client is one live websocket connection and the rooms it joined at handshake.
type Client struct {
	id       string
	conn     *websocket.Conn
	identity domain.Identity
	rooms    map[string]struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient builds a client with a fresh id. conn may be nil in tests.
func NewClient(conn *websocket.Conn, ns domain.Namespace, identity domain.Identity, buf int) *Client {
	if buf <= 0 {
		buf = 16
	}
	rooms := make(map[string]struct{})
	for _, room := range domain.RoomsFor(ns, identity) {
		rooms[room] = struct{}{}
	}
	return &Client{
		id:       uuid.NewString(),
		conn:     conn,
		identity: identity,
		rooms:    rooms,
		send:     make(chan []byte, buf),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string { return c.identity.UserID }

func (c *Client) Identity() domain.Identity { return c.identity }

func (c *Client) InRoom(room string) bool {
	_, ok := c.rooms[room]
	return ok
}

func (c *Client) Rooms() []string {
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	return out
}

// enqueue never blocks; false means the buffer is full or the client closed.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump drains the send buffer to the socket and keeps the connection alive with pings.
// It owns the socket: once the client is closed it sends a normal close frame and closes the conn.
func (c *Client) WritePump(logger *slog.Logger) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("websocket write error", slog.String("clientId", c.id), slog.Any("error", err))
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Warn("websocket ping error", slog.String("clientId", c.id), slog.Any("error", err))
				return
			}
		}
	}
}

// ReadPump discards inbound messages and detaches the client once the socket ends.
func (c *Client) ReadPump(hub *Hub, logger *slog.Logger) {
	defer hub.Detach(c)
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read error", slog.String("clientId", c.id), slog.String("userId", c.identity.UserID), slog.Any("error", err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
