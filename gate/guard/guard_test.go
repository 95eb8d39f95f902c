package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-accessgate/gate"
)

type stubFlagGate struct {
	enabled map[string]bool
	err     error
}

func (s stubFlagGate) Enabled(_ context.Context, key string, _ ...gate.EvalOption) (bool, error) {
	return s.enabled[key], s.err
}

type stubAuthorizer struct {
	decision gate.Decision
}

func (s stubAuthorizer) Authorize(context.Context, gate.Role, gate.Role) gate.Decision {
	return s.decision
}

type stubOperationGate struct {
	decision gate.Decision
}

func (s stubOperationGate) Permit(context.Context, gate.OperationRequest) gate.Decision {
	return s.decision
}

func TestRequireFlagEnabled(t *testing.T) {
	fg := stubFlagGate{enabled: map[string]bool{"admin.panel": true}}
	if err := RequireFlag(context.Background(), fg, "admin.panel"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireFlagDisabled(t *testing.T) {
	fg := stubFlagGate{enabled: map[string]bool{}}
	err := RequireFlag(context.Background(), fg, "admin.panel")
	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
	var disabled DisabledError
	if !errors.As(err, &disabled) || disabled.Key != "admin.panel" {
		t.Fatalf("expected DisabledError with key, got %v", err)
	}
}

func TestRequireFlagFallbacks(t *testing.T) {
	fg := stubFlagGate{enabled: map[string]bool{"market.trends": true}}
	err := RequireFlag(context.Background(), fg, "market.causal_engine",
		WithFallbacks("market.trends"))
	if err != nil {
		t.Fatalf("fallback key should grant access: %v", err)
	}
}

func TestRequireFlagCustomDeniedError(t *testing.T) {
	custom := errors.New("upgrade required")
	fg := stubFlagGate{}
	err := RequireFlag(context.Background(), fg, "market.trends", WithDeniedError(custom))
	if !errors.Is(err, custom) {
		t.Fatalf("expected custom error, got %v", err)
	}
}

func TestRequireFlagStoreFailureDenies(t *testing.T) {
	// Diagnostics never grant access: a degraded store is still a denial.
	fg := stubFlagGate{err: errors.New("store unreachable")}
	err := RequireFlag(context.Background(), fg, "admin.panel")
	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected disabled denial, got %v", err)
	}
}

func TestRequireFlagErrorMapper(t *testing.T) {
	mapped := errors.New("http 403")
	fg := stubFlagGate{}
	err := RequireFlag(context.Background(), fg, "admin.panel",
		WithErrorMapper(func(error) error { return mapped }))
	if !errors.Is(err, mapped) {
		t.Fatalf("expected mapped error, got %v", err)
	}
}

func TestRequireFlagNilGate(t *testing.T) {
	if err := RequireFlag(context.Background(), nil, "admin.panel"); err != nil {
		t.Fatalf("nil gate must not block: %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	az := stubAuthorizer{decision: gate.Deny(gate.ReasonRoleInsufficient)}
	err := RequireRole(context.Background(), az, gate.RoleAnalyst, gate.RoleAdmin)
	if !errors.Is(err, ErrRoleInsufficient) {
		t.Fatalf("expected ErrRoleInsufficient, got %v", err)
	}
	var roleErr RoleError
	if !errors.As(err, &roleErr) || roleErr.Required != gate.RoleAdmin {
		t.Fatalf("expected RoleError carrying required role, got %v", err)
	}

	az = stubAuthorizer{decision: gate.Allow(gate.ReasonRoleSatisfied)}
	if err := RequireRole(context.Background(), az, gate.RoleAdmin, gate.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireOperation(t *testing.T) {
	og := stubOperationGate{decision: gate.Deny(gate.ReasonNotAllowlisted)}
	req := gate.OperationRequest{
		Operation: gate.Operation{Class: gate.OperationAdministrativeDestructive, Key: "flush_cache"},
	}
	err := RequireOperation(context.Background(), og, req)
	if !errors.Is(err, ErrOperationDenied) {
		t.Fatalf("expected ErrOperationDenied, got %v", err)
	}
	var opErr OperationError
	if !errors.As(err, &opErr) || opErr.Reason != gate.ReasonNotAllowlisted {
		t.Fatalf("expected OperationError carrying the denial reason, got %v", err)
	}

	og = stubOperationGate{decision: gate.Allow(gate.ReasonEnvironmentAllowed)}
	if err := RequireOperation(context.Background(), og, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
