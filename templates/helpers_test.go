package templates

import (
	"context"
	"testing"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-accessgate/authorizer"
	"github.com/goliatone/go-accessgate/gate"
)

type captureGate struct {
	value    bool
	err      error
	calls    int
	lastKey  string
	lastEval *gate.EvalContext
}

func (g *captureGate) Enabled(_ context.Context, key string, opts ...gate.EvalOption) (bool, error) {
	g.calls++
	g.lastKey = key
	req := gate.EvalRequest{}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	if req.Context != nil {
		evalCopy := *req.Context
		g.lastEval = &evalCopy
	} else {
		g.lastEval = nil
	}
	return g.value, g.err
}

type captureOperationGate struct {
	lastReq  gate.OperationRequest
	decision gate.Decision
}

func (g *captureOperationGate) Permit(_ context.Context, req gate.OperationRequest) gate.Decision {
	g.lastReq = req
	return g.decision
}

func TestFeatureEnabledUsesEvalContext(t *testing.T) {
	gateStub := &captureGate{value: true}
	helpers := Helpers(gateStub, nil, nil)
	fn, ok := helpers["feature_enabled"].(func(*pongo2.ExecutionContext, any) bool)
	if !ok {
		t.Fatalf("feature_enabled helper not found")
	}
	execCtx := &pongo2.ExecutionContext{
		Public: pongo2.Context{
			TemplateEvalKey: map[string]any{
				"user_id": "user-1",
				"org_id":  "org-1",
				"role":    "analyst",
			},
		},
	}

	if !fn(execCtx, "market.trends") {
		t.Fatalf("expected helper to return true")
	}
	if gateStub.lastEval == nil || gateStub.lastEval.UserID != "user-1" {
		t.Fatalf("expected eval context to be forwarded, got %+v", gateStub.lastEval)
	}
	if gateStub.lastEval.Role != gate.RoleAnalyst {
		t.Fatalf("expected role to be parsed, got %q", gateStub.lastEval.Role)
	}
}

func TestFeatureEnabledSnapshotPrecedence(t *testing.T) {
	gateStub := &captureGate{value: false}
	helpers := Helpers(gateStub, nil, nil)
	fn := helpers["feature_enabled"].(func(*pongo2.ExecutionContext, any) bool)
	execCtx := &pongo2.ExecutionContext{
		Public: pongo2.Context{
			TemplateSnapshotKey: map[string]bool{
				"admin.panel": true,
			},
		},
	}

	if !fn(execCtx, "admin.panel") {
		t.Fatalf("expected snapshot value to be used")
	}
	if gateStub.calls != 0 {
		t.Fatalf("expected gate not to be called when snapshot contains key")
	}
}

func TestFeatureIfFallback(t *testing.T) {
	gateStub := &captureGate{value: false}
	helpers := Helpers(gateStub, nil, nil)
	fn := helpers["feature_if"].(func(*pongo2.ExecutionContext, any, any, ...any) any)
	execCtx := &pongo2.ExecutionContext{Public: pongo2.Context{}}

	if value := fn(execCtx, "market.trends", "on", "off"); value != "off" {
		t.Fatalf("expected fallback value, got %v", value)
	}
	if value := fn(execCtx, "", "on", "off"); value != "off" {
		t.Fatalf("invalid keys must fall back, got %v", value)
	}
}

func TestHasRoleFailsClosed(t *testing.T) {
	helpers := Helpers(nil, authorizer.New(), nil)
	fn := helpers["has_role"].(func(*pongo2.ExecutionContext, any) bool)

	execCtx := &pongo2.ExecutionContext{
		Public: pongo2.Context{
			TemplateEvalKey: map[string]any{"role": "admin", "user_id": "user-1"},
		},
	}
	if !fn(execCtx, "analyst") {
		t.Fatalf("admin must satisfy analyst")
	}
	if fn(execCtx, "super_admin") {
		t.Fatalf("admin must not satisfy super_admin")
	}

	garbage := &pongo2.ExecutionContext{
		Public: pongo2.Context{
			TemplateEvalKey: map[string]any{"role": "<UserRole.ADMIN: 'admin'>", "user_id": "user-1"},
		},
	}
	if fn(garbage, "viewer") {
		t.Fatalf("malformed caller role must deny")
	}
}

func TestCanOperateForwardsIdentity(t *testing.T) {
	og := &captureOperationGate{decision: gate.Allow(gate.ReasonEnvironmentAllowed)}
	helpers := Helpers(nil, nil, og, WithEnvironment(gate.EnvironmentStaging))
	fn := helpers["can_operate"].(func(*pongo2.ExecutionContext, any, ...any) bool)

	execCtx := &pongo2.ExecutionContext{
		Public: pongo2.Context{
			TemplateEvalKey: map[string]any{"role": "admin", "user_id": "admin-1"},
		},
	}
	if !fn(execCtx, "administrative_destructive", "flush_cache") {
		t.Fatalf("expected allowed decision")
	}
	if og.lastReq.Environment != gate.EnvironmentStaging {
		t.Fatalf("expected configured environment, got %q", og.lastReq.Environment)
	}
	if og.lastReq.CallerRole != gate.RoleAdmin || og.lastReq.Actor.ID != "admin-1" {
		t.Fatalf("expected identity forwarded, got %+v", og.lastReq)
	}
	if og.lastReq.Operation.Key != "flush_cache" {
		t.Fatalf("expected operation key forwarded, got %+v", og.lastReq.Operation)
	}
}
