// Package guard provides Require-style helpers that turn gate decisions into
// errors suitable for handler early returns.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
)

// ErrFeatureDisabled is returned when a flag evaluates to disabled and no
// custom error is provided.
var ErrFeatureDisabled = errors.New("feature disabled")

// ErrRoleInsufficient is returned when a caller's role does not satisfy the
// required role.
var ErrRoleInsufficient = errors.New("role insufficient")

// ErrOperationDenied is returned when the environment gate denies an
// operation.
var ErrOperationDenied = errors.New("operation denied")

// DisabledError includes the disabled flag key and unwraps to
// ErrFeatureDisabled.
type DisabledError struct {
	Key string
}

func (e DisabledError) Error() string {
	if e.Key == "" {
		return ErrFeatureDisabled.Error()
	}
	return fmt.Sprintf("%s: %s", ErrFeatureDisabled.Error(), e.Key)
}

func (e DisabledError) Unwrap() error {
	return ErrFeatureDisabled
}

// RoleError carries the caller and required roles and unwraps to
// ErrRoleInsufficient.
type RoleError struct {
	Caller   gate.Role
	Required gate.Role
	Reason   gate.Reason
}

func (e RoleError) Error() string {
	return fmt.Sprintf("%s: %s requires %s", ErrRoleInsufficient.Error(), e.Caller, e.Required)
}

func (e RoleError) Unwrap() error {
	return ErrRoleInsufficient
}

// OperationError carries the denied operation and the denial reason and
// unwraps to ErrOperationDenied.
type OperationError struct {
	Operation gate.Operation
	Reason    gate.Reason
}

func (e OperationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrOperationDenied.Error(), e.Operation.RateKey(), e.Reason)
}

func (e OperationError) Unwrap() error {
	return ErrOperationDenied
}

// Option configures Require behavior.
type Option func(*config)

type config struct {
	deniedErr   error
	errorMapper func(error) error
	fallbacks   []string
	evalOpts    []gate.EvalOption
}

// WithDeniedError sets the error returned when access is denied.
func WithDeniedError(err error) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.deniedErr = err
	}
}

// WithErrorMapper transforms returned errors before they reach the caller.
func WithErrorMapper(mapper func(error) error) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.errorMapper = mapper
	}
}

// WithFallbacks allows alternate flag keys when the primary key is disabled.
func WithFallbacks(keys ...string) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.fallbacks = append(c.fallbacks, keys...)
	}
}

// WithEvalOptions passes evaluation options through to the flag gate.
func WithEvalOptions(opts ...gate.EvalOption) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.evalOpts = append(c.evalOpts, opts...)
	}
}

// RequireFlag checks a flag gate and returns an error when the flag is
// disabled. Evaluation diagnostics do not grant access: a store failure still
// yields a denial. If fg is nil, RequireFlag returns nil.
func RequireFlag(ctx context.Context, fg gate.FlagGate, key string, opts ...Option) error {
	if fg == nil {
		return nil
	}

	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	enabled, err := fg.Enabled(ctx, key, cfg.evalOpts...)
	if enabled {
		return nil
	}
	if err != nil && errors.Is(err, gerrors.ErrInvalidKey) {
		return mapErr(cfg, err)
	}

	for _, fallback := range cfg.fallbacks {
		ok, _ := fg.Enabled(ctx, fallback, cfg.evalOpts...)
		if ok {
			return nil
		}
	}

	if cfg.deniedErr != nil {
		return mapErr(cfg, cfg.deniedErr)
	}
	return mapErr(cfg, DisabledError{Key: key})
}

// RequireRole checks the caller role against the required role and returns an
// error when the hierarchy is not satisfied. If az is nil, RequireRole
// returns nil.
func RequireRole(ctx context.Context, az gate.Authorizer, caller, required gate.Role, opts ...Option) error {
	if az == nil {
		return nil
	}

	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	decision := az.Authorize(ctx, caller, required)
	if decision.Allowed {
		return nil
	}
	if cfg.deniedErr != nil {
		return mapErr(cfg, cfg.deniedErr)
	}
	return mapErr(cfg, RoleError{Caller: caller, Required: required, Reason: decision.Reason})
}

// RequireOperation checks an operation against the environment gate and
// returns an error when the operation is denied. If og is nil,
// RequireOperation returns nil.
func RequireOperation(ctx context.Context, og gate.OperationGate, req gate.OperationRequest, opts ...Option) error {
	if og == nil {
		return nil
	}

	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	decision := og.Permit(ctx, req)
	if decision.Allowed {
		return nil
	}
	if cfg.deniedErr != nil {
		return mapErr(cfg, cfg.deniedErr)
	}
	return mapErr(cfg, OperationError{Operation: req.Operation, Reason: decision.Reason})
}

func mapErr(cfg *config, err error) error {
	if err == nil {
		return nil
	}
	if cfg != nil && cfg.errorMapper != nil {
		return cfg.errorMapper(err)
	}
	return err
}
