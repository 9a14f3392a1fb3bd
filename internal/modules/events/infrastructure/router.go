package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fleetWs/internal/modules/events/application/port"
	"fleetWs/internal/modules/events/domain"
	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/logging"
)

// Stats is a snapshot of the registry.
type Stats struct {
	HandlerCount int      `json:"handlerCount"`
	Patterns     []string `json:"patterns"`
}

type publishOptions struct {
	source        string
	correlationID string
}

// PublishOption customizes a single Publish call.
type PublishOption func(*publishOptions)

// WithSource overrides the router's default source. Blank values are ignored.
func WithSource(source string) PublishOption {
	return func(o *publishOptions) {
		if source != "" {
			o.source = source
		}
	}
}

func WithCorrelationID(id string) PublishOption {
	return func(o *publishOptions) { o.correlationID = id }
}

// RouterOption customizes a Router at construction.
type RouterOption func(*Router)

// WithDefaultSource replaces "unknown" as the source of events published without one.
func WithDefaultSource(source string) RouterOption {
	return func(r *Router) {
		if source != "" {
			r.defaultSource = source
		}
	}
}

// WithErrorObserver receives every ErrHandlerExecution after it is logged.
func WithErrorObserver(fn func(error)) RouterOption {
	return func(r *Router) { r.onHandlerError = fn }
}

func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// Router publishes domain events on the shared channel and dispatches received
// events to locally registered pattern handlers.
type Router struct {
	publisher   port.Publisher
	newListener port.ListenerFactory
	registry    *HandlerRegistry
	logger      *slog.Logger

	defaultSource  string
	onHandlerError func(error)
	now            func() time.Time

	mu       sync.Mutex
	listener port.Listener
	stopping bool
	inflight sync.WaitGroup
}

func NewRouter(publisher port.Publisher, newListener port.ListenerFactory, logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		publisher:     publisher,
		newListener:   newListener,
		registry:      NewHandlerRegistry(),
		logger:        logging.Component(logger, "router"),
		defaultSource: domain.DefaultSource,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start binds the listener, subscribes to the shared channel and pings the command connection.
// Calling Start on a running router is a no-op.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return nil
	}

	listener := r.newListener("router")
	if err := listener.Listen(ctx, r.onMessage, domain.Channel); err != nil {
		_ = listener.Close(ctx)
		return fmt.Errorf("router subscribe: %w", err)
	}
	if err := r.publisher.Ping(ctx); err != nil {
		_ = listener.Close(ctx)
		return fmt.Errorf("router liveness check: %w", err)
	}
	r.listener = listener
	r.stopping = false
	r.logger.Info("router started", slog.String("channel", domain.Channel))
	return nil
}

// Stop unsubscribes and closes the listener, then waits for in-flight dispatches
// until ctx ends. Messages delivered after Stop began are dropped. Safe to call
// when never started and more than once.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	listener := r.listener
	r.listener = nil
	if listener != nil {
		r.stopping = true
	}
	r.mu.Unlock()
	if listener == nil {
		return nil
	}

	err := listener.Close(ctx)

	drained := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		r.logger.Warn("router stopped with handlers still running")
	}
	r.logger.Info("router stopped")
	return err
}

// Publish builds a DomainEvent and sends it on the shared channel. It returns once
// the broker acknowledged the send; failures are returned as is and never retried.
func (r *Router) Publish(ctx context.Context, domainName, action string, data any, opts ...PublishOption) error {
	o := publishOptions{source: r.defaultSource}
	for _, opt := range opts {
		opt(&o)
	}

	ev, err := domain.NewDomainEvent(domainName, action, data, o.source, o.correlationID, r.now())
	if err != nil {
		return err
	}
	if err := r.publisher.Publish(ctx, domain.Channel, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return err
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	r.logger.Debug("domain event published",
		slog.String("domain", ev.Domain),
		slog.String("action", ev.Action),
		slog.String("source", ev.Source),
		slog.String("correlationId", ev.CorrelationID),
	)
	return nil
}

// Subscribe registers handler under pattern. Handlers accumulate per pattern.
func (r *Router) Subscribe(pattern string, handler domain.Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %q", domain.ErrInvalidPattern, pattern)
	}
	p, err := domain.ParsePattern(pattern)
	if err != nil {
		return err
	}
	r.registry.Register(p, handler)
	r.logger.Debug("handler subscribed", slog.String("pattern", p.String()), slog.String("kind", p.Kind.String()))
	return nil
}

// SubscribeMultiple registers the same handler under each pattern. Patterns are
// all validated first so an invalid entry registers nothing.
func (r *Router) SubscribeMultiple(patterns []string, handler domain.Handler) error {
	for _, pattern := range patterns {
		if _, err := domain.ParsePattern(pattern); err != nil {
			return err
		}
	}
	for _, pattern := range patterns {
		if err := r.Subscribe(pattern, handler); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe removes every handler registered under pattern.
func (r *Router) Unsubscribe(pattern string) error {
	p, err := domain.ParsePattern(pattern)
	if err != nil {
		return err
	}
	removed := r.registry.Remove(p)
	r.logger.Debug("pattern unsubscribed", slog.String("pattern", p.String()), slog.Int("removed", removed))
	return nil
}

func (r *Router) Stats() Stats {
	return Stats{HandlerCount: r.registry.Count(), Patterns: r.registry.Patterns()}
}

// onMessage runs on the listener goroutine; it only decodes and hands off.
func (r *Router) onMessage(channel string, payload []byte) {
	ev, err := domain.DecodeDomainEvent(payload)
	if err != nil {
		metrics.MalformedMessages.WithLabelValues(channel).Inc()
		r.logger.Warn("router dropped malformed message", slog.String("channel", channel), slog.Int("bytes", len(payload)), slog.Any("error", err))
		return
	}
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		r.logger.Debug("router stopping, event dropped", slog.String("domain", ev.Domain), slog.String("action", ev.Action))
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()
	metrics.EventsReceived.Inc()

	go func() {
		defer r.inflight.Done()
		r.Dispatch(ev)
	}()
}

// Dispatch runs every matching handler concurrently and waits for all of them.
// Handler failures are logged and never affect siblings.
func (r *Router) Dispatch(ev domain.DomainEvent) {
	matches := r.registry.Lookup(ev.Domain, ev.Action)
	if len(matches) == 0 {
		return
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, m := range matches {
		wg.Add(1)
		go func(m Match) {
			defer wg.Done()
			if err := r.run(m, ev); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(m)
	}
	wg.Wait()

	r.logger.Debug("domain event dispatched",
		slog.String("domain", ev.Domain),
		slog.String("action", ev.Action),
		slog.String("correlationId", ev.CorrelationID),
		slog.Int("handlers", len(matches)),
		slog.Int("failed", failed),
	)
}

func (r *Router) run(m Match, ev domain.DomainEvent) (err error) {
	pattern := m.Pattern.String()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err == nil {
			metrics.HandlerRuns.WithLabelValues(pattern, "ok").Inc()
			return
		}
		err = fmt.Errorf("%w: pattern %s event %s: %w", domain.ErrHandlerExecution, pattern, ev.Key(), err)
		metrics.HandlerRuns.WithLabelValues(pattern, "error").Inc()
		r.logger.Error("router handler failed",
			slog.String("pattern", pattern),
			slog.String("domain", ev.Domain),
			slog.String("action", ev.Action),
			slog.String("correlationId", ev.CorrelationID),
			slog.Any("error", err),
		)
		if r.onHandlerError != nil {
			r.onHandlerError(err)
		}
	}()
	return m.Handler(ev.Data, ev.Domain, ev.Action)
}
