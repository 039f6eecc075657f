// Package actorcontext carries the explicit caller identity through service
// calls. Handlers and jobs set it; services read it for auditing and
// authorization instead of consulting ambient state.
package actorcontext

import (
	"context"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleTenant Role = "tenant"
	RoleSystem Role = "system"
)

// Actor is the authenticated caller as asserted by the upstream gateway.
type Actor struct {
	ID   string
	Role Role
}

// System is the actor used by background jobs.
var System = Actor{ID: "scheduler", Role: RoleSystem}

type actorKey struct{}

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStaff:
		return RoleStaff, true
	case RoleTenant:
		return RoleTenant, true
	case RoleSystem:
		return RoleSystem, true
	default:
		return "", false
	}
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.Role == "" {
		return Actor{}, false
	}
	return actor, true
}

// Subject renders the actor as a casbin subject, e.g. "staff:42".
func (a Actor) Subject() string {
	if a.ID == "" {
		return string(a.Role)
	}
	return string(a.Role) + ":" + a.ID
}
