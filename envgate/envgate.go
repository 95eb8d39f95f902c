// Package envgate decides whether classified operations may execute in the
// current deployment environment. Destructive administrative operations
// require admin rank everywhere and an explicit allow-list entry in
// production; a per-caller sliding-window budget bounds the blast radius of
// compromised credentials.
package envgate

import (
	"context"
	"time"

	"github.com/goliatone/go-accessgate/audit"
	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/logger"
)

// DefaultBudget is the default number of destructive attempts allowed per
// caller per window.
const DefaultBudget = 10

// DefaultWindow is the default rate-limit window.
const DefaultWindow = time.Hour

// Policy is the trusted gate configuration. It is sourced from deployment
// configuration (see configadapter), never from request input.
type Policy struct {
	// ProductionAllowlist names the operations permitted to run in
	// production. Keys match Operation.RateKey().
	ProductionAllowlist []string
	// Budget is the number of destructive attempts per caller per window.
	// Zero means DefaultBudget.
	Budget int
	// Window is the sliding rate-limit window. Zero means DefaultWindow.
	Window time.Duration
}

// Gate enforces the policy.
type Gate struct {
	allowlist map[string]struct{}
	budget    int
	window    time.Duration
	limiter   *slidingWindow
	recorder  audit.Recorder
	log       logger.Logger
	now       func() time.Time
}

// Option customizes a Gate.
type Option func(*Gate)

// WithAudit sets the audit recorder.
func WithAudit(recorder audit.Recorder) Option {
	return func(g *Gate) {
		if g == nil || recorder == nil {
			return
		}
		g.recorder = recorder
	}
}

// WithLogger sets the logger for denial warnings.
func WithLogger(log logger.Logger) Option {
	return func(g *Gate) {
		if g == nil || log == nil {
			return
		}
		g.log = log
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(g *Gate) {
		if g == nil || now == nil {
			return
		}
		g.now = now
	}
}

// New constructs a Gate from policy.
func New(policy Policy, opts ...Option) *Gate {
	g := &Gate{
		allowlist: map[string]struct{}{},
		budget:    policy.Budget,
		window:    policy.Window,
		recorder:  audit.NoopRecorder{},
		log:       logger.Default(),
		now:       time.Now,
	}
	for _, key := range policy.ProductionAllowlist {
		if key == "" {
			continue
		}
		g.allowlist[key] = struct{}{}
	}
	if g.budget <= 0 {
		g.budget = DefaultBudget
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.limiter = newSlidingWindow(g.budget, g.window, g.now)
	return g
}

// Permit implements gate.OperationGate. Every check is audited, denials
// included. Checks run in order: role, production allow-list, rate budget.
// The budget is charged only for otherwise-permitted attempts so a role
// probe cannot burn another caller's budget.
func (g *Gate) Permit(ctx context.Context, req gate.OperationRequest) gate.Decision {
	decision := g.decide(req)
	if !decision.Allowed && g.log != nil {
		g.log.Warn("envgate: operation denied",
			"operation", req.Operation.RateKey(),
			"class", string(req.Operation.Class),
			"environment", string(req.Environment),
			"reason", string(decision.Reason))
	}
	g.record(ctx, req, decision)
	return decision
}

// Permitted is a convenience wrapper returning only the boolean decision.
func (g *Gate) Permitted(ctx context.Context, req gate.OperationRequest) bool {
	return g.Permit(ctx, req).Allowed
}

func (g *Gate) decide(req gate.OperationRequest) gate.Decision {
	if req.Operation.Class != gate.OperationAdministrativeDestructive {
		return gate.Allow(gate.ReasonEnvironmentAllowed)
	}
	if !req.CallerRole.Valid() {
		return gate.Deny(gate.ReasonRoleMalformed)
	}
	if !req.CallerRole.AtLeast(gate.RoleAdmin) {
		return gate.Deny(gate.ReasonRoleInsufficient)
	}
	env := req.Environment
	if !env.Valid() {
		// Unknown environments gate as production.
		env = gate.EnvironmentProduction
	}
	if env == gate.EnvironmentProduction {
		if _, ok := g.allowlist[req.Operation.RateKey()]; !ok {
			return gate.Deny(gate.ReasonNotAllowlisted)
		}
	}
	if !g.limiter.allow(req.Actor.ID, req.Operation.RateKey()) {
		return gate.Deny(gate.ReasonRateLimited)
	}
	return gate.Allow(gate.ReasonEnvironmentAllowed)
}

func (g *Gate) record(ctx context.Context, req gate.OperationRequest, decision gate.Decision) {
	if g.recorder == nil {
		return
	}
	g.recorder.Record(ctx, audit.Stamp(audit.Event{
		Actor:    req.Actor,
		Action:   audit.ActionPermitOperation,
		Target:   req.Operation.RateKey(),
		Decision: decision,
		Context: map[string]any{
			"operation_class": string(req.Operation.Class),
			"environment":     string(req.Environment),
			"caller_role":     string(req.CallerRole),
		},
	}))
}

var _ gate.OperationGate = (*Gate)(nil)
