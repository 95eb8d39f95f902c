package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-accessgate/cache"
	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/store"
)

type stubFlagStore struct {
	flags    map[string]gate.FeatureFlag
	err      error
	getCalls int
}

func (s *stubFlagStore) GetFlag(_ context.Context, key string) (gate.FeatureFlag, bool, error) {
	s.getCalls++
	if s.err != nil {
		return gate.FeatureFlag{}, false, s.err
	}
	flag, ok := s.flags[key]
	return flag, ok, nil
}

type stubOverrideStore struct {
	overrides map[string]gate.Override
	err       error
}

func (s *stubOverrideStore) GetOverride(_ context.Context, key, orgID, userID string) (gate.Override, bool, error) {
	if s.err != nil {
		return gate.Override{}, false, s.err
	}
	override, ok := s.overrides[key]
	return override, ok, nil
}

func activeFlag(key string, scope gate.FlagScope, pct int, def bool) gate.FeatureFlag {
	return gate.FeatureFlag{
		Key:               key,
		Status:            gate.FlagStatusActive,
		Scope:             scope,
		RolloutPercentage: pct,
		EnabledDefault:    def,
	}
}

func TestFullyRolledOutGlobalFlagEnabledForAnyContext(t *testing.T) {
	ctx := context.Background()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"admin.feature_flags": activeFlag("admin.feature_flags", gate.FlagScopeGlobal, 100, true),
	}}
	g := New(WithFlagStore(flags))

	for _, evalCtx := range []gate.EvalContext{
		{},
		{UserID: "user-1"},
		{UserID: "user-2", OrgID: "org-9", Sector: "finance"},
	} {
		enabled, err := g.Enabled(ctx, "admin.feature_flags", gate.WithEvalContext(evalCtx))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !enabled {
			t.Fatalf("expected enabled for context %+v", evalCtx)
		}
	}
}

func TestMissingFlagFailsClosedWithoutError(t *testing.T) {
	ctx := context.Background()
	g := New(WithFlagStore(&stubFlagStore{flags: map[string]gate.FeatureFlag{}}))

	enabled, trace, err := g.EvaluateWithTrace(ctx, "nonexistent_key")
	if err != nil {
		t.Fatalf("missing flag must not error: %v", err)
	}
	if enabled {
		t.Fatalf("missing flag must evaluate disabled")
	}
	if trace.Reason != gate.ReasonFlagNotFound {
		t.Fatalf("reason = %s, want flag_not_found", trace.Reason)
	}
}

func TestInactiveFlagBeatsOverride(t *testing.T) {
	ctx := context.Background()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"market.trends": {
			Key:               "market.trends",
			Status:            gate.FlagStatusDeprecated,
			Scope:             gate.FlagScopeUser,
			RolloutPercentage: 100,
		},
	}}
	overrides := &stubOverrideStore{overrides: map[string]gate.Override{
		"market.trends": {FlagKey: "market.trends", Level: gate.OverrideLevelUser, UserID: "user-1", Enabled: true},
	}}
	g := New(WithFlagStore(flags), WithOverrideStore(overrides))

	enabled, trace, err := g.EvaluateWithTrace(ctx, "market.trends",
		gate.WithEvalContext(gate.EvalContext{UserID: "user-1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled {
		t.Fatalf("deprecated flag must be disabled regardless of override")
	}
	if trace.Reason != gate.ReasonFlagInactive {
		t.Fatalf("reason = %s, want flag_inactive", trace.Reason)
	}
}

func TestOverrideIsAbsoluteOverRollout(t *testing.T) {
	ctx := context.Background()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"market.trends": activeFlag("market.trends", gate.FlagScopeUser, 0, false),
	}}
	overrides := &stubOverrideStore{overrides: map[string]gate.Override{
		"market.trends": {FlagKey: "market.trends", Level: gate.OverrideLevelUser, UserID: "user-1", Enabled: true},
	}}
	g := New(WithFlagStore(flags), WithOverrideStore(overrides))

	enabled, trace, err := g.EvaluateWithTrace(ctx, "market.trends",
		gate.WithEvalContext(gate.EvalContext{UserID: "user-1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Fatalf("user override must beat 0%% rollout")
	}
	if trace.Reason != gate.ReasonOverride {
		t.Fatalf("reason = %s, want override", trace.Reason)
	}
}

func TestExpiredOverrideFallsThroughToRollout(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"market.trends": activeFlag("market.trends", gate.FlagScopeUser, 0, false),
	}}
	overrides := &stubOverrideStore{overrides: map[string]gate.Override{
		"market.trends": {
			FlagKey:   "market.trends",
			Level:     gate.OverrideLevelUser,
			UserID:    "user-1",
			Enabled:   true,
			ExpiresAt: now.Add(-time.Hour),
		},
	}}
	g := New(
		WithFlagStore(flags),
		WithOverrideStore(overrides),
		WithNowFunc(func() time.Time { return now }),
	)

	enabled, trace, err := g.EvaluateWithTrace(ctx, "market.trends",
		gate.WithEvalContext(gate.EvalContext{UserID: "user-1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled {
		t.Fatalf("expired override must not apply over 0%% rollout")
	}
	if !trace.Override.Expired {
		t.Fatalf("expected expired override in trace")
	}
	if trace.Reason != gate.ReasonRollout {
		t.Fatalf("reason = %s, want rollout", trace.Reason)
	}
}

func TestRolloutDeterministic(t *testing.T) {
	ctx := context.Background()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"market.causal_engine": activeFlag("market.causal_engine", gate.FlagScopeOrganization, 50, false),
	}}
	g := New(WithFlagStore(flags))

	first, err := g.Enabled(ctx, "market.causal_engine",
		gate.WithEvalContext(gate.EvalContext{OrgID: "org-42"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := g.Enabled(ctx, "market.causal_engine",
			gate.WithEvalContext(gate.EvalContext{OrgID: "org-42"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("rollout decision flipped between calls")
		}
	}
}

func TestSectorGating(t *testing.T) {
	ctx := context.Background()
	flag := activeFlag("market.trends", gate.FlagScopeGlobal, 100, true)
	flag.AllowedSectors = []string{"technology"}
	flag.BlockedSectors = []string{"gambling"}
	g := New(WithFlagStore(&stubFlagStore{flags: map[string]gate.FeatureFlag{"market.trends": flag}}))

	cases := []struct {
		sector string
		want   bool
		reason gate.Reason
	}{
		{"gambling", false, gate.ReasonSectorBlocked},
		{"finance", false, gate.ReasonSectorNotAllowed},
		{"technology", true, gate.ReasonGlobalDefault},
		{"", true, gate.ReasonGlobalDefault},
	}
	for _, tc := range cases {
		enabled, trace, err := g.EvaluateWithTrace(ctx, "market.trends",
			gate.WithEvalContext(gate.EvalContext{UserID: "user-1", Sector: tc.sector}))
		if err != nil {
			t.Fatalf("sector %q: unexpected error: %v", tc.sector, err)
		}
		if enabled != tc.want {
			t.Fatalf("sector %q: enabled = %v, want %v", tc.sector, enabled, tc.want)
		}
		if trace.Reason != tc.reason {
			t.Fatalf("sector %q: reason = %s, want %s", tc.sector, trace.Reason, tc.reason)
		}
	}
}

func TestStoreErrorFailsClosedWithRetryableClassification(t *testing.T) {
	ctx := context.Background()
	g := New(WithFlagStore(&stubFlagStore{err: errors.New("connection refused")}))

	enabled, trace, err := g.EvaluateWithTrace(ctx, "admin.panel")
	if enabled {
		t.Fatalf("store error must fail closed")
	}
	if trace.Reason != gate.ReasonStoreError {
		t.Fatalf("reason = %s, want store_error", trace.Reason)
	}
	if err == nil {
		t.Fatalf("expected out-of-band error classification")
	}
	rich, ok := gerrors.As(err)
	if !ok {
		t.Fatalf("expected rich error")
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("category = %s, want external", rich.Category)
	}
	if !gerrors.IsRetryable(err) {
		t.Fatalf("store failures should classify as retryable")
	}
}

func TestOverrideStoreErrorFailsClosed(t *testing.T) {
	ctx := context.Background()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"admin.panel": activeFlag("admin.panel", gate.FlagScopeUser, 100, false),
	}}
	g := New(
		WithFlagStore(flags),
		WithOverrideStore(&stubOverrideStore{err: errors.New("timeout")}),
	)

	enabled, _, err := g.EvaluateWithTrace(ctx, "admin.panel",
		gate.WithEvalContext(gate.EvalContext{UserID: "user-1"}))
	if enabled {
		t.Fatalf("override store error must fail closed even at 100%% rollout")
	}
	if err == nil {
		t.Fatalf("expected error classification")
	}
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	flags := &stubFlagStore{flags: map[string]gate.FeatureFlag{
		"admin.panel": activeFlag("admin.panel", gate.FlagScopeGlobal, 0, true),
	}}
	c := cache.NewTTLCache()
	g := New(WithFlagStore(flags), WithCache(c))

	for i := 0; i < 5; i++ {
		if _, err := g.Enabled(ctx, "admin.panel"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if flags.getCalls != 1 {
		t.Fatalf("expected 1 store read with warm cache, got %d", flags.getCalls)
	}

	// Invalidation forces the next evaluation back to the store.
	c.Delete(ctx, "admin.panel")
	if _, err := g.Enabled(ctx, "admin.panel"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags.getCalls != 2 {
		t.Fatalf("expected store re-read after invalidation, got %d", flags.getCalls)
	}
}

func TestMemoryStoreEndToEndUserOverOrgPrecedence(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	actor := gate.ActorRef{ID: "admin-1"}
	if err := m.UpsertFlag(ctx, activeFlag("market.trends", gate.FlagScopeUser, 0, false), actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.UpsertOverride(ctx, gate.Override{
		FlagKey: "market.trends", Level: gate.OverrideLevelOrganization, OrgID: "org-1", Enabled: false,
	}, actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.UpsertOverride(ctx, gate.Override{
		FlagKey: "market.trends", Level: gate.OverrideLevelUser, UserID: "user-1", Enabled: true,
	}, actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := New(WithFlagStore(m), WithOverrideStore(m))
	enabled, err := g.Enabled(ctx, "market.trends",
		gate.WithEvalContext(gate.EvalContext{UserID: "user-1", OrgID: "org-1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Fatalf("user override should win over org override")
	}
}

func TestInvalidKeyDeniedWithSentinel(t *testing.T) {
	ctx := context.Background()
	g := New(WithFlagStore(&stubFlagStore{}))
	enabled, _, err := g.EvaluateWithTrace(ctx, "   ")
	if enabled {
		t.Fatalf("invalid key must be disabled")
	}
	if !errors.Is(err, gerrors.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
