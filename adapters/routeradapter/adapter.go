package routeradapter

import (
	"context"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gate/guard"
	"github.com/goliatone/go-accessgate/scope"
)

// Context extracts the standard context from a router context.
func Context(ctx router.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx.Context()
}

// EvalContext derives an evaluation context from a router context.
func EvalContext(ctx router.Context) gate.EvalContext {
	return scope.FromContext(Context(ctx))
}

// WithRouterContext returns an eval option that uses identity carried on the
// router context.
func WithRouterContext(ctx router.Context) gate.EvalOption {
	return gate.WithEvalContext(EvalContext(ctx))
}

// RequireFlag checks a flag for the identity on the router context and
// returns an error when the flag is disabled.
func RequireFlag(ctx router.Context, fg gate.FlagGate, key string, opts ...guard.Option) error {
	opts = append(opts, guard.WithEvalOptions(WithRouterContext(ctx)))
	return guard.RequireFlag(Context(ctx), fg, key, opts...)
}

// RequireRole checks the role carried on the router context against a
// required minimum role.
func RequireRole(ctx router.Context, az gate.Authorizer, required gate.Role, opts ...guard.Option) error {
	return guard.RequireRole(Context(ctx), az, EvalContext(ctx).Role, required, opts...)
}
