package domain

import (
	"strings"

	refresh "fleetWs/internal/modules/refresh/domain"
)

// Namespace names one gateway; it matches the refresh channel suffix.
type Namespace string

const (
	NamespaceDashboard     Namespace = "dashboard"
	NamespaceNotifications Namespace = "notifications"
	NamespaceTrips         Namespace = "trips"
	NamespaceUsers         Namespace = "users"
)

func Namespaces() []Namespace {
	return []Namespace{NamespaceDashboard, NamespaceNotifications, NamespaceTrips, NamespaceUsers}
}

// Channel returns the refresh channel feeding this namespace.
func (n Namespace) Channel() refresh.Channel {
	return refresh.Channel("refresh." + string(n))
}

// HasRoleRooms reports whether role targeting exists; only the dashboard has role rooms.
func (n Namespace) HasRoleRooms() bool {
	return n == NamespaceDashboard
}

func (n Namespace) String() string { return string(n) }

// AllRoom is the namespace broadcast group.
func AllRoom(ns Namespace) string {
	return string(ns) + "_all"
}

func UserRoom(ns Namespace, userID string) string {
	return string(ns) + "_user_" + strings.TrimSpace(userID)
}

// RoleRoom upper-cases role so token roles and signal roles meet in the same room.
func RoleRoom(ns Namespace, role string) string {
	return string(ns) + "_role_" + strings.ToUpper(strings.TrimSpace(role))
}

// Identity is what a handshake established about a connection.
type Identity struct {
	UserID        string
	Roles         []string
	Authenticated bool
}

// RoomsFor lists the rooms a connection joins at handshake time.
func RoomsFor(ns Namespace, id Identity) []string {
	rooms := []string{AllRoom(ns)}
	if ns.HasRoleRooms() {
		for _, role := range id.Roles {
			if role = strings.TrimSpace(role); role != "" {
				rooms = append(rooms, RoleRoom(ns, role))
			}
		}
	}
	if userID := strings.TrimSpace(id.UserID); userID != "" {
		rooms = append(rooms, UserRoom(ns, userID))
	}
	return rooms
}

// Target is the audience a signal resolves to. An empty Room means every client.
type Target struct {
	Room string
}

func (t Target) Broadcast() bool { return t.Room == "" }

// TargetFor picks the audience: the user room, else the role room where role
// rooms exist, else everyone on the namespace.
func TargetFor(ns Namespace, sig refresh.Signal) Target {
	if userID := strings.TrimSpace(sig.UserID); userID != "" {
		return Target{Room: UserRoom(ns, userID)}
	}
	if role := strings.TrimSpace(sig.Role); role != "" && ns.HasRoleRooms() {
		return Target{Room: RoleRoom(ns, role)}
	}
	return Target{}
}
