// Package scope carries request identity through context so evaluation
// contexts can be rebuilt at the decision boundary. The deployment
// environment is deliberately not carried here: it comes from trusted
// configuration, not from anything a request can set.
package scope

import (
	"context"
	"strings"

	"github.com/goliatone/go-accessgate/gate"
)

type contextKey string

const (
	userIDKey contextKey = "accessgate.user_id"
	orgIDKey  contextKey = "accessgate.org_id"
	roleKey   contextKey = "accessgate.role"
	sectorKey contextKey = "accessgate.sector"
)

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
}

// WithOrgID stores an organization identifier in context.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, strings.TrimSpace(orgID))
}

// WithRole stores a caller role in context. The value is normalized through
// ParseRole; unparseable roles are stored as RoleUnknown so downstream checks
// fail closed instead of crashing.
func WithRole(ctx context.Context, role string) context.Context {
	parsed, _ := gate.ParseRole(role)
	return context.WithValue(ctx, roleKey, parsed)
}

// WithSector stores a sector code in context.
func WithSector(ctx context.Context, sector string) context.Context {
	return context.WithValue(ctx, sectorKey, strings.TrimSpace(sector))
}

// UserID extracts the user identifier from context.
func UserID(ctx context.Context) string {
	return toString(ctx.Value(userIDKey))
}

// OrgID extracts the organization identifier from context.
func OrgID(ctx context.Context) string {
	return toString(ctx.Value(orgIDKey))
}

// Role extracts the caller role from context.
func Role(ctx context.Context) gate.Role {
	if role, ok := ctx.Value(roleKey).(gate.Role); ok {
		return role
	}
	return gate.RoleUnknown
}

// Sector extracts the sector code from context.
func Sector(ctx context.Context) string {
	return toString(ctx.Value(sectorKey))
}

// FromContext builds an EvalContext from context values. Environment is left
// unset for the caller to stamp from configuration.
func FromContext(ctx context.Context) gate.EvalContext {
	if ctx == nil {
		return gate.EvalContext{}
	}
	return gate.EvalContext{
		UserID: UserID(ctx),
		OrgID:  OrgID(ctx),
		Role:   Role(ctx),
		Sector: Sector(ctx),
	}
}

func toString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
