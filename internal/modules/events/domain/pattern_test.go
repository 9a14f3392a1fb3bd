package domain

import (
	"errors"
	"testing"
)

func TestParsePattern(t *testing.T) {
	cases := []struct {
		raw      string
		expected Pattern
		key      string
	}{
		{"user.create", Exact("USER", "CREATE"), "USER.CREATE"},
		{" Trip.* ", DomainWildcard("TRIP"), "TRIP.*"},
		{"*.deleted", ActionWildcard("DELETED"), "*.DELETED"},
		{"*.*", All(), "*.*"},
	}
	for _, tc := range cases {
		p, err := ParsePattern(tc.raw)
		if err != nil {
			t.Fatalf("ParsePattern(%q) unexpected error: %v", tc.raw, err)
		}
		if p != tc.expected {
			t.Fatalf("ParsePattern(%q) expected %+v got %+v", tc.raw, tc.expected, p)
		}
		if p.String() != tc.key {
			t.Fatalf("ParsePattern(%q).String() expected %s got %s", tc.raw, tc.key, p.String())
		}
	}
}

func TestParsePattern_Rejects(t *testing.T) {
	for _, raw := range []string{"", "USER", ".CREATE", "USER.", "a.b.c", "US*ER.CREATE", "USER.CR*"} {
		if _, err := ParsePattern(raw); !errors.Is(err, ErrInvalidPattern) {
			t.Fatalf("ParsePattern(%q) expected ErrInvalidPattern, got %v", raw, err)
		}
	}
}

func TestPatternMatches(t *testing.T) {
	if !DomainWildcard("user").Matches("User", "anything") {
		t.Fatal("domain wildcard should match case-insensitively")
	}
	if DomainWildcard("USER").Matches("TRIP", "CREATE") {
		t.Fatal("domain wildcard matched a different domain")
	}
	if !ActionWildcard("CREATE").Matches("trip", "create") {
		t.Fatal("action wildcard should match")
	}
	if !All().Matches("X", "Y") {
		t.Fatal("all should match everything")
	}
	if Exact("USER", "CREATE").Matches("USER", "DELETE") {
		t.Fatal("exact matched a different action")
	}
}

func TestMatchOrder(t *testing.T) {
	order := MatchOrder("user", "create")
	expected := []string{"USER.CREATE", "USER.*", "*.CREATE", "*.*"}
	for i, p := range order {
		if p.String() != expected[i] {
			t.Fatalf("position %d expected %s got %s", i, expected[i], p.String())
		}
		if !p.Matches("USER", "CREATE") {
			t.Fatalf("pattern %s in match order does not match its event", p)
		}
	}
}
