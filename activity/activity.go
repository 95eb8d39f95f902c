// Package activity emits hooks for administrative mutations so callers can
// invalidate caches, notify UIs, or mirror changes elsewhere.
package activity

import (
	"context"

	"github.com/goliatone/go-accessgate/gate"
)

// Action describes an administrative mutation.
type Action string

const (
	ActionUpsertFlag     Action = "upsert_flag"
	ActionDeleteFlag     Action = "delete_flag"
	ActionUpsertOverride Action = "upsert_override"
	ActionDeleteOverride Action = "delete_override"
	ActionSetRole        Action = "set_role"
)

// UpdateEvent captures a single administrative mutation.
type UpdateEvent struct {
	Action  Action
	FlagKey string
	// Subject is the affected user for role mutations, or the override
	// entity for override mutations.
	Subject string
	Level   gate.OverrideLevel
	Actor   gate.ActorRef
	Enabled *bool
	Role    gate.Role
}

// Hook receives update events.
type Hook interface {
	OnUpdate(ctx context.Context, event UpdateEvent)
}

// HookFunc wraps a function as a Hook.
type HookFunc func(context.Context, UpdateEvent)

// OnUpdate implements Hook.
func (fn HookFunc) OnUpdate(ctx context.Context, event UpdateEvent) {
	if fn == nil {
		return
	}
	fn(ctx, event)
}

// NoopHook ignores updates.
type NoopHook struct{}

// OnUpdate implements Hook.
func (NoopHook) OnUpdate(context.Context, UpdateEvent) {}

var _ Hook = (HookFunc)(nil)
var _ Hook = NoopHook{}
