package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-accessgate/activity"
	"github.com/goliatone/go-accessgate/authorizer"
	"github.com/goliatone/go-accessgate/cache"
	"github.com/goliatone/go-accessgate/evaluator"
	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/store"
)

func newService(t *testing.T, m *store.MemoryStore, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithFlagStore(m),
		WithOverrideStore(m),
		WithRoleStore(m),
	}
	return New(authorizer.New(), append(base, opts...)...)
}

func TestUpsertFlagRequiresAdminRank(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	s := newService(t, m)
	actor := gate.ActorRef{ID: "user-1"}

	err := s.UpsertFlag(ctx, actor, gate.RoleAnalyst, gate.FeatureFlag{
		Key:    "admin.panel",
		Status: gate.FlagStatusActive,
	})
	if err == nil {
		t.Fatalf("analyst must not mutate flags")
	}
	rich, ok := gerrors.As(err)
	if !ok || rich.TextCode != gerrors.TextCodeMutationDenied {
		t.Fatalf("expected mutation denial, got %v", err)
	}

	if err := s.UpsertFlag(ctx, actor, gate.RoleSuperAdmin, gate.FeatureFlag{
		Key:    "admin.panel",
		Status: gate.FlagStatusActive,
	}); err != nil {
		t.Fatalf("super_admin mutation should succeed: %v", err)
	}
	if _, ok, _ := m.GetFlag(ctx, "admin.panel"); !ok {
		t.Fatalf("expected flag to be stored")
	}
}

func TestUpsertFlagValidatesRolloutRange(t *testing.T) {
	ctx := context.Background()
	s := newService(t, store.NewMemoryStore())
	err := s.UpsertFlag(ctx, gate.ActorRef{ID: "admin-1"}, gate.RoleAdmin, gate.FeatureFlag{
		Key:               "admin.panel",
		Status:            gate.FlagStatusActive,
		RolloutPercentage: 120,
	})
	if err == nil {
		t.Fatalf("expected rollout range validation")
	}
	rich, ok := gerrors.As(err)
	if !ok || rich.TextCode != gerrors.TextCodeRolloutOutOfRange {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	s := newService(t, store.NewMemoryStore())
	err := s.SetRole(ctx, gate.ActorRef{ID: "admin-1"}, gate.RoleAdmin, "user-1", gate.Role("root"))
	if err == nil {
		t.Fatalf("unknown role must be rejected before the write")
	}
	rich, ok := gerrors.As(err)
	if !ok || rich.TextCode != gerrors.TextCodeRoleMalformed {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMutationInvalidatesCacheImmediately(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	c := cache.NewTTLCache()
	s := newService(t, m, WithCache(c))
	actor := gate.ActorRef{ID: "admin-1"}

	if err := s.UpsertFlag(ctx, actor, gate.RoleAdmin, gate.FeatureFlag{
		Key:            "admin.panel",
		Status:         gate.FlagStatusActive,
		Scope:          gate.FlagScopeGlobal,
		EnabledDefault: false,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := evaluator.New(evaluator.WithFlagStore(m), evaluator.WithOverrideStore(m), evaluator.WithCache(c))
	enabled, err := g.Enabled(ctx, "admin.panel")
	if err != nil || enabled {
		t.Fatalf("expected disabled before mutation: %v, %v", enabled, err)
	}

	// Flip the default; the cached definition must not survive the write.
	if err := s.UpsertFlag(ctx, actor, gate.RoleAdmin, gate.FeatureFlag{
		Key:            "admin.panel",
		Status:         gate.FlagStatusActive,
		Scope:          gate.FlagScopeGlobal,
		EnabledDefault: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enabled, err = g.Enabled(ctx, "admin.panel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Fatalf("mutation must invalidate the cache, not wait for TTL")
	}
}

func TestDeleteFlagPropagatesReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	s := newService(t, m)
	actor := gate.ActorRef{ID: "admin-1"}

	if err := s.UpsertFlag(ctx, actor, gate.RoleAdmin, gate.FeatureFlag{Key: "admin.panel", Status: gate.FlagStatusActive}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpsertOverride(ctx, actor, gate.RoleAdmin, gate.Override{
		FlagKey: "admin.panel",
		Level:   gate.OverrideLevelUser,
		UserID:  "user-1",
		Enabled: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.DeleteFlag(ctx, actor, gate.RoleAdmin, "admin.panel")
	if !errors.Is(err, gerrors.ErrFlagReferenced) {
		t.Fatalf("expected ErrFlagReferenced, got %v", err)
	}
}

func TestMutationEmitsActivityHook(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	var events []activity.UpdateEvent
	s := newService(t, m, WithActivityHook(activity.HookFunc(func(_ context.Context, event activity.UpdateEvent) {
		events = append(events, event)
	})))
	actor := gate.ActorRef{ID: "admin-1"}

	if err := s.SetRole(ctx, actor, gate.RoleSuperAdmin, "user-1", gate.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Action != activity.ActionSetRole || events[0].Subject != "user-1" || events[0].Role != gate.RoleAdmin {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}
