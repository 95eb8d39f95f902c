package configadapter

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-accessgate/gate"
)

func TestFlagDefaultsFromBools(t *testing.T) {
	defaults := NewFlagDefaultsFromBools(map[string]bool{
		"admin.panel":   true,
		"market.trends": false,
	})

	flag, ok, err := defaults.GetFlag(context.Background(), "admin.panel")
	if err != nil || !ok {
		t.Fatalf("expected flag, got ok=%v err=%v", ok, err)
	}
	if !flag.EnabledDefault || flag.Status != gate.FlagStatusActive || flag.RolloutPercentage != 100 {
		t.Fatalf("unexpected flag: %+v", flag)
	}

	flag, ok, _ = defaults.GetFlag(context.Background(), "market.trends")
	if !ok || flag.EnabledDefault {
		t.Fatalf("expected disabled flag, got ok=%v %+v", ok, flag)
	}
}

func TestFlagDefaultsNestedMaps(t *testing.T) {
	defaults := NewFlagDefaults(map[string]any{
		"market": map[string]any{
			"causal_engine": map[string]any{
				"status":             "active",
				"scope":              "organization",
				"rollout_percentage": 25,
				"allowed_sectors":    []any{"energy", "transport"},
			},
		},
	})

	flag, ok, _ := defaults.GetFlag(context.Background(), "market.causal_engine")
	if !ok {
		t.Fatalf("expected nested flag definition")
	}
	if flag.Scope != gate.FlagScopeOrganization || flag.RolloutPercentage != 25 {
		t.Fatalf("unexpected flag: %+v", flag)
	}
	if len(flag.AllowedSectors) != 2 {
		t.Fatalf("unexpected sectors: %v", flag.AllowedSectors)
	}
}

func TestFlagDefaultsAliasLookup(t *testing.T) {
	defaults := NewFlagDefaultsFromBools(map[string]bool{
		"market.trends": true,
	})
	if _, ok, _ := defaults.GetFlag(context.Background(), "market.insight"); !ok {
		t.Fatalf("alias must resolve to the canonical key")
	}
	if _, ok, _ := defaults.GetFlag(context.Background(), ""); ok {
		t.Fatalf("empty key must miss")
	}
}

func TestPolicyFromMap(t *testing.T) {
	policy := PolicyFromMap(map[string]any{
		"production_allowlist": []any{"flush_cache", "reindex"},
		"budget":               3,
		"window":               "30m",
	})
	if len(policy.ProductionAllowlist) != 2 {
		t.Fatalf("unexpected allowlist: %v", policy.ProductionAllowlist)
	}
	if policy.Budget != 3 || policy.Window != 30*time.Minute {
		t.Fatalf("unexpected policy: %+v", policy)
	}
}

func TestEnvironmentFromValueFailsClosed(t *testing.T) {
	if env := EnvironmentFromValue("staging"); env != gate.EnvironmentStaging {
		t.Fatalf("unexpected environment: %q", env)
	}
	if env := EnvironmentFromValue("qa-7"); env != gate.EnvironmentProduction {
		t.Fatalf("unknown environments must classify as production, got %q", env)
	}
	if env := EnvironmentFromValue(nil); env != gate.EnvironmentProduction {
		t.Fatalf("missing environment must classify as production, got %q", env)
	}
}
