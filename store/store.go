// Package store defines the persistence contracts for flags, overrides, and
// roles. The backing store is the source of truth; caches layered on top are
// read-through only.
package store

import (
	"context"

	"github.com/goliatone/go-accessgate/gate"
)

// FlagReader loads flag definitions.
type FlagReader interface {
	// GetFlag returns the flag and whether it exists. A missing flag is not
	// an error; errors signal a degraded store.
	GetFlag(ctx context.Context, key string) (gate.FeatureFlag, bool, error)
}

// FlagWriter persists flag definitions.
type FlagWriter interface {
	UpsertFlag(ctx context.Context, flag gate.FeatureFlag, actor gate.ActorRef) error
	// DeleteFlag removes a flag definition. Implementations must refuse to
	// delete a flag that overrides still reference.
	DeleteFlag(ctx context.Context, key string, actor gate.ActorRef) error
}

// OverrideReader resolves overrides with user-level preferred over org-level.
type OverrideReader interface {
	GetOverride(ctx context.Context, key, orgID, userID string) (gate.Override, bool, error)
}

// OverrideWriter persists overrides. At most one override exists per
// (flag, level, entity) tuple; upserting replaces it.
type OverrideWriter interface {
	UpsertOverride(ctx context.Context, override gate.Override, actor gate.ActorRef) error
	DeleteOverride(ctx context.Context, key string, level gate.OverrideLevel, entityID string, actor gate.ActorRef) error
}

// RoleReader loads user roles, normalized to the Role enumeration at this
// boundary.
type RoleReader interface {
	GetRole(ctx context.Context, userID string) (gate.Role, bool, error)
}

// RoleWriter persists user roles.
type RoleWriter interface {
	SetRole(ctx context.Context, userID string, role gate.Role, actor gate.ActorRef) error
}

// FlagStore is a combined flag reader/writer.
type FlagStore interface {
	FlagReader
	FlagWriter
}

// OverrideStore is a combined override reader/writer.
type OverrideStore interface {
	OverrideReader
	OverrideWriter
}

// RoleStore is a combined role reader/writer.
type RoleStore interface {
	RoleReader
	RoleWriter
}
