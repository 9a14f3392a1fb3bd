package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetWs/internal/config"
	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/logging"
)

const (
	reconnectStep = 50 * time.Millisecond
	reconnectCap  = 2 * time.Second
)

// ReconnectDelay is the wait before reconnect attempt n (1-based): min(n*50ms, 2s).
func ReconnectDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := time.Duration(attempt) * reconnectStep
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}

// Options builds go-redis options from either a URL or the host/port/password triple.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if url := strings.TrimSpace(cfg.URL); url != "" {
		if !strings.Contains(url, "://") {
			opts = &redis.Options{Addr: url, Password: cfg.Password, DB: cfg.DB}
		} else {
			parsed, err := redis.ParseURL(url)
			if err != nil {
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			opts = parsed
		}
	} else {
		host := strings.TrimSpace(cfg.Host)
		if host == "" {
			return nil, config.ErrMissingRedis
		}
		port := strings.TrimSpace(cfg.Port)
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	// Publishes are never retried here; the caller decides.
	opts.MaxRetries = -1
	opts.Protocol = 2
	opts.DisableIdentity = true
	return opts, nil
}

// Manager owns the shared command connection and hands out clones for blocking subscribe use.
type Manager struct {
	command *redis.Client
	opts    redis.Options
	logger  *slog.Logger
	hook    *connectionHook

	closeOnce sync.Once
}

// NewManager builds a manager without touching the network.
func NewManager(opts *redis.Options, logger *slog.Logger) *Manager {
	logger = logging.Component(logger, "broker")
	m := &Manager{
		opts:   *opts,
		logger: logger,
	}
	m.command, m.hook = m.newClient("command")
	return m
}

// Connect builds the manager and waits until the command connection answers a PING.
// Transport failures are retried without limit using ReconnectDelay; only ctx ends the wait.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Manager, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	m := NewManager(opts, logger)

	for attempt := 1; ; attempt++ {
		err := m.command.Ping(ctx).Err()
		if err == nil {
			m.logger.Info("redis command connection ready", slog.String("addr", m.opts.Addr), slog.Int("attempts", attempt))
			return m, nil
		}
		if ctx.Err() != nil {
			_ = m.Close()
			return nil, fmt.Errorf("%w: connect %s: %w", ErrTransportUnavailable, m.opts.Addr, ctx.Err())
		}
		if !isTransportError(err) {
			_ = m.Close()
			return nil, fmt.Errorf("redis handshake %s: %w", m.opts.Addr, err)
		}
		// The dial hook already waited for dial failures; other transport errors wait here.
		if m.hook.failures.Load() == 0 {
			sleepCtx(ctx, ReconnectDelay(attempt))
		}
	}
}

func (m *Manager) newClient(role string) (*redis.Client, *connectionHook) {
	opts := m.opts
	client := redis.NewClient(&opts)
	hook := &connectionHook{role: role, logger: m.logger.With(slog.String("role", role))}
	client.AddHook(hook)
	return client, hook
}

// Command returns the shared command connection. It is safe for concurrent use.
func (m *Manager) Command() *redis.Client {
	return m.command
}

// CloneForSubscription returns a new client configured like the command connection.
// Closing it leaves the command connection and other clones untouched.
func (m *Manager) CloneForSubscription(role string) *redis.Client {
	if strings.TrimSpace(role) == "" {
		role = "subscriber"
	}
	client, _ := m.newClient(role)
	return client
}

// NewSubscriber creates a subscriber owning a dedicated cloned connection.
func (m *Manager) NewSubscriber(name string) *Subscriber {
	return newSubscriber(name, m.CloneForSubscription(name), m.logger)
}

// Publish JSON-encodes v and sends it on channel through the command connection.
func (m *Manager) Publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", channel, err)
	}
	return m.PublishRaw(ctx, channel, payload)
}

// PublishRaw sends an already encoded payload.
func (m *Manager) PublishRaw(ctx context.Context, channel string, payload []byte) error {
	if err := m.command.Publish(ctx, channel, payload).Err(); err != nil {
		return classify("publish "+channel, err)
	}
	return nil
}

// Ping performs a liveness round trip on the command connection.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.command.Ping(ctx).Err(); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close tears down the command connection. It is idempotent.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.command.Close()
		m.logger.Info("redis command connection closed")
	})
	return err
}

// connectionHook logs dial transitions and applies the reconnect delay before each retry.
type connectionHook struct {
	role      string
	logger    *slog.Logger
	failures  atomic.Int64
	connected atomic.Bool
}

func (h *connectionHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if n := h.failures.Load(); n > 0 {
			delay := ReconnectDelay(int(n))
			h.logger.Info("redis reconnect attempt", slog.String("addr", addr), slog.Int64("attempt", n), slog.Duration("delay", delay))
			if !sleepCtx(ctx, delay) {
				return nil, ctx.Err()
			}
		}

		conn, err := next(ctx, network, addr)
		if err != nil {
			n := h.failures.Add(1)
			h.connected.Store(false)
			metrics.BrokerDialFailures.WithLabelValues(h.role).Inc()
			h.logger.Warn("redis connection error", slog.String("addr", addr), slog.Int64("failures", n), slog.Any("error", err))
			return nil, err
		}

		if prev := h.failures.Swap(0); prev > 0 {
			h.logger.Info("redis reconnected", slog.String("addr", addr), slog.Int64("failedAttempts", prev))
		} else if h.connected.CompareAndSwap(false, true) {
			h.logger.Info("redis connected", slog.String("addr", addr))
		}
		h.connected.Store(true)
		return conn, nil
	}
}

func (h *connectionHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h *connectionHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
