package gate

import "context"

// EvalContext captures the request-scoped inputs to a flag evaluation.
// It is constructed per request and never persisted.
type EvalContext struct {
	UserID      string
	OrgID       string
	Role        Role
	Sector      string
	Environment Environment
}

// Empty reports whether the context carries no identity at all.
func (c EvalContext) Empty() bool {
	return c.UserID == "" && c.OrgID == ""
}

// ContextResolver derives an EvalContext from a request context.
type ContextResolver interface {
	Resolve(ctx context.Context) (EvalContext, error)
}

// EvalOption mutates an evaluation request.
type EvalOption func(*EvalRequest)

// EvalRequest captures optional inputs for an evaluation call.
type EvalRequest struct {
	Context *EvalContext
}

// WithEvalContext forces a specific evaluation context instead of deriving it
// from the request context.
func WithEvalContext(c EvalContext) EvalOption {
	return func(req *EvalRequest) {
		if req == nil {
			return
		}
		req.Context = &c
	}
}

// FlagGate resolves feature enablement for an evaluation context.
//
// The returned bool is always a concrete decision: on any internal failure it
// is the fail-closed value (false). The error, when non-nil, is the
// out-of-band diagnostic classification for logging and alerting; callers may
// safely ignore it and act on the bool alone.
type FlagGate interface {
	Enabled(ctx context.Context, key string, opts ...EvalOption) (bool, error)
}

// TraceableFlagGate adds explainability for flag evaluation.
type TraceableFlagGate interface {
	FlagGate
	EvaluateWithTrace(ctx context.Context, key string, opts ...EvalOption) (bool, EvalTrace, error)
}

// Authorizer decides whether a caller role satisfies a required minimum role.
// Malformed roles resolve to a denial, never to a panic or error.
type Authorizer interface {
	Authorize(ctx context.Context, caller Role, required Role) Decision
}

// OperationRequest carries the inputs to an environment gate check.
type OperationRequest struct {
	Operation   Operation
	Environment Environment
	CallerRole  Role
	Actor       ActorRef
}

// OperationGate decides whether a classified operation may execute in the
// current environment.
type OperationGate interface {
	Permit(ctx context.Context, req OperationRequest) Decision
}

// ActorRef identifies the actor behind a decision or mutation.
type ActorRef struct {
	ID   string
	Type string
	Name string
}

// Decision is the outcome of an authorization or gating check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow builds an allowed decision with the given reason.
func Allow(reason Reason) Decision {
	return Decision{Allowed: true, Reason: reason}
}

// Deny builds a denied decision with the given reason.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}
