package gate

import "context"

// Reason explains a decision so callers can distinguish a role denial from a
// disabled flag from an environment denial.
type Reason string

const (
	// Role hierarchy reasons.
	ReasonRoleSatisfied    Reason = "role_satisfied"
	ReasonRoleInsufficient Reason = "role_insufficient"
	ReasonRoleMalformed    Reason = "role_malformed"

	// Flag evaluation reasons.
	ReasonFlagNotFound     Reason = "flag_not_found"
	ReasonFlagInactive     Reason = "flag_inactive"
	ReasonSectorBlocked    Reason = "sector_blocked"
	ReasonSectorNotAllowed Reason = "sector_not_allowed"
	ReasonOverride         Reason = "override"
	ReasonGlobalDefault    Reason = "global_default"
	ReasonRollout          Reason = "rollout"
	ReasonStoreError       Reason = "store_error"
	ReasonInvalidKey       Reason = "invalid_key"

	// Environment gate reasons.
	ReasonEnvironmentAllowed Reason = "environment_allowed"
	ReasonNotAllowlisted     Reason = "not_allowlisted"
	ReasonRateLimited        Reason = "rate_limited"
)

// OverrideTrace captures override resolution details.
type OverrideTrace struct {
	Found   bool
	Level   OverrideLevel
	Value   *bool
	Expired bool
	Error   error
}

// RolloutTrace captures rollout bucketing details.
type RolloutTrace struct {
	Computed   bool
	EntityID   string
	Bucket     int
	Percentage int
}

// EvalTrace captures provenance for a single flag evaluation.
type EvalTrace struct {
	Key           string
	NormalizedKey string
	Context       EvalContext
	Value         bool
	Reason        Reason
	FlagStatus    FlagStatus
	Override      OverrideTrace
	Rollout       RolloutTrace
	CacheHit      bool
}

// EvalEvent is emitted after an evaluation for hooks.
type EvalEvent struct {
	Key           string
	NormalizedKey string
	Context       EvalContext
	Value         bool
	Reason        Reason
	Error         error
	Trace         EvalTrace
}

// EvalHook receives evaluation events.
type EvalHook interface {
	OnEvaluate(ctx context.Context, event EvalEvent)
}

// EvalHookFunc wraps a function as an EvalHook.
type EvalHookFunc func(context.Context, EvalEvent)

// OnEvaluate implements EvalHook.
func (fn EvalHookFunc) OnEvaluate(ctx context.Context, event EvalEvent) {
	if fn == nil {
		return
	}
	fn(ctx, event)
}
