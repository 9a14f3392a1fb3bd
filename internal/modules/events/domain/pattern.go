package domain

import (
	"fmt"
	"strings"
)

const Wildcard = "*"

type PatternKind int

const (
	PatternExact PatternKind = iota
	PatternDomainWildcard
	PatternActionWildcard
	PatternAll
)

func (k PatternKind) String() string {
	switch k {
	case PatternExact:
		return "exact"
	case PatternDomainWildcard:
		return "domain-wildcard"
	case PatternActionWildcard:
		return "action-wildcard"
	case PatternAll:
		return "all"
	default:
		return "unknown"
	}
}

// Pattern is a parsed subscription key. It is comparable and used directly as a map key.
type Pattern struct {
	Kind   PatternKind
	Domain string
	Action string
}

func Exact(domain, action string) Pattern {
	return Pattern{Kind: PatternExact, Domain: Normalize(domain), Action: Normalize(action)}
}

func DomainWildcard(domain string) Pattern {
	return Pattern{Kind: PatternDomainWildcard, Domain: Normalize(domain)}
}

func ActionWildcard(action string) Pattern {
	return Pattern{Kind: PatternActionWildcard, Action: Normalize(action)}
}

func All() Pattern {
	return Pattern{Kind: PatternAll}
}

// ParsePattern accepts DOMAIN.ACTION, DOMAIN.*, *.ACTION or *.*, case-insensitively.
func ParsePattern(raw string) (Pattern, error) {
	domain, action, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok {
		return Pattern{}, fmt.Errorf("%w: %q has no '.' separator", ErrInvalidPattern, raw)
	}
	domain, action = Normalize(domain), Normalize(action)
	if domain == "" || action == "" || strings.Contains(action, ".") {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
	}

	switch {
	case domain == Wildcard && action == Wildcard:
		return All(), nil
	case domain == Wildcard:
		return ActionWildcard(action), nil
	case action == Wildcard:
		return DomainWildcard(domain), nil
	case strings.Contains(domain, Wildcard) || strings.Contains(action, Wildcard):
		return Pattern{}, fmt.Errorf("%w: %q mixes wildcard and text", ErrInvalidPattern, raw)
	default:
		return Exact(domain, action), nil
	}
}

// MatchOrder lists the patterns an event matches, in lookup order.
func MatchOrder(domain, action string) [4]Pattern {
	domain, action = Normalize(domain), Normalize(action)
	return [4]Pattern{
		Exact(domain, action),
		DomainWildcard(domain),
		ActionWildcard(action),
		All(),
	}
}

// Matches reports whether an event with domain and action is claimed by p.
func (p Pattern) Matches(domain, action string) bool {
	domain, action = Normalize(domain), Normalize(action)
	switch p.Kind {
	case PatternExact:
		return p.Domain == domain && p.Action == action
	case PatternDomainWildcard:
		return p.Domain == domain
	case PatternActionWildcard:
		return p.Action == action
	case PatternAll:
		return true
	}
	return false
}

// String renders the canonical upper-case form.
func (p Pattern) String() string {
	switch p.Kind {
	case PatternDomainWildcard:
		return p.Domain + "." + Wildcard
	case PatternActionWildcard:
		return Wildcard + "." + p.Action
	case PatternAll:
		return Wildcard + "." + Wildcard
	default:
		return p.Domain + "." + p.Action
	}
}
