package infrastructure

import (
	"sync"

	"fleetWs/internal/modules/events/domain"
)

// HandlerRegistry maps parsed patterns to their handlers. One registry belongs to one Router.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.Pattern][]domain.Handler
	order    []domain.Pattern
}

// Match is one handler selected for an event, with the pattern that claimed it.
type Match struct {
	Pattern domain.Pattern
	Handler domain.Handler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[domain.Pattern][]domain.Handler)}
}

// Register appends h under p; earlier handlers for p are kept.
func (r *HandlerRegistry) Register(p domain.Pattern, h domain.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[p]; !ok {
		r.order = append(r.order, p)
	}
	r.handlers[p] = append(r.handlers[p], h)
}

// Remove drops every handler under p and reports how many were removed.
func (r *HandlerRegistry) Remove(p domain.Pattern) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.handlers[p])
	if n == 0 {
		return 0
	}
	delete(r.handlers, p)
	for i, existing := range r.order {
		if existing == p {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return n
}

// Lookup collects the handlers of every pattern claiming DOMAIN.ACTION, checked
// exact, domain wildcard, action wildcard, then all.
func (r *HandlerRegistry) Lookup(domainName, action string) []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []Match
	for _, p := range domain.MatchOrder(domainName, action) {
		for _, h := range r.handlers[p] {
			matches = append(matches, Match{Pattern: p, Handler: h})
		}
	}
	return matches
}

// Count returns the total number of registered handlers.
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, hs := range r.handlers {
		total += len(hs)
	}
	return total
}

// Patterns returns registered pattern keys in first-registration order.
func (r *HandlerRegistry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.String())
	}
	return out
}
