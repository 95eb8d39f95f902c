// Package authorizer decides whether a caller role satisfies a required
// minimum role. Decisions are total: malformed role input never raises past
// this boundary, it resolves to a denial and is logged.
package authorizer

import (
	"context"

	"github.com/goliatone/go-accessgate/audit"
	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/logger"
	"github.com/goliatone/go-accessgate/scope"
)

// ActorResolver derives the acting identity for audit records.
type ActorResolver func(ctx context.Context) gate.ActorRef

// Resolver compares roles by their position in the total order.
type Resolver struct {
	recorder audit.Recorder
	log      logger.Logger
	actor    ActorResolver
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithAudit sets the audit recorder.
func WithAudit(recorder audit.Recorder) Option {
	return func(r *Resolver) {
		if r == nil || recorder == nil {
			return
		}
		r.recorder = recorder
	}
}

// WithLogger sets the logger used for malformed-role warnings.
func WithLogger(log logger.Logger) Option {
	return func(r *Resolver) {
		if r == nil || log == nil {
			return
		}
		r.log = log
	}
}

// WithActorResolver overrides how the acting identity is derived from context.
func WithActorResolver(resolver ActorResolver) Option {
	return func(r *Resolver) {
		if r == nil || resolver == nil {
			return
		}
		r.actor = resolver
	}
}

// New constructs a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		recorder: audit.NoopRecorder{},
		log:      logger.Default(),
		actor:    actorFromScope,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Authorize implements gate.Authorizer. Allowed iff
// rank(caller) >= rank(required); unknown roles on either side deny.
func (r *Resolver) Authorize(ctx context.Context, caller gate.Role, required gate.Role) gate.Decision {
	decision := decide(caller, required)
	if r == nil {
		return decision
	}
	if decision.Reason == gate.ReasonRoleMalformed && r.log != nil {
		r.log.Warn("authorizer: malformed role resolved to denial",
			"caller_role", string(caller), "required_role", string(required))
	}
	r.record(ctx, caller, required, decision)
	return decision
}

// AuthorizeValue normalizes a raw role representation before authorizing.
// Use this at boundaries where the role arrives as free text (stored strings,
// token claims); it never panics on garbage input.
func (r *Resolver) AuthorizeValue(ctx context.Context, callerRole string, required gate.Role) gate.Decision {
	caller, _ := gate.ParseRole(callerRole)
	return r.Authorize(ctx, caller, required)
}

// Allowed is a convenience wrapper returning only the boolean decision.
func (r *Resolver) Allowed(ctx context.Context, caller gate.Role, required gate.Role) bool {
	return r.Authorize(ctx, caller, required).Allowed
}

func decide(caller, required gate.Role) gate.Decision {
	if !caller.Valid() || !required.Valid() {
		return gate.Deny(gate.ReasonRoleMalformed)
	}
	if caller.AtLeast(required) {
		return gate.Allow(gate.ReasonRoleSatisfied)
	}
	return gate.Deny(gate.ReasonRoleInsufficient)
}

func (r *Resolver) record(ctx context.Context, caller, required gate.Role, decision gate.Decision) {
	if r.recorder == nil {
		return
	}
	actor := gate.ActorRef{}
	if r.actor != nil {
		actor = r.actor(ctx)
	}
	r.recorder.Record(ctx, audit.Stamp(audit.Event{
		Actor:    actor,
		Action:   audit.ActionAuthorize,
		Target:   string(required),
		Decision: decision,
		Context: map[string]any{
			"caller_role": string(caller),
		},
	}))
}

func actorFromScope(ctx context.Context) gate.ActorRef {
	if ctx == nil {
		return gate.ActorRef{}
	}
	return gate.ActorRef{
		ID:   scope.UserID(ctx),
		Name: string(scope.Role(ctx)),
	}
}

var _ gate.Authorizer = (*Resolver)(nil)
