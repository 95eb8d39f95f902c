package catalog

import (
	"testing"

	"github.com/goliatone/go-accessgate/gate"
)

func TestStaticCatalogNormalizesKeys(t *testing.T) {
	c := NewStatic(map[string]FlagDefinition{
		"  Admin.Flags  ": {Description: "flag management screens"},
	})

	def, ok := c.Get("admin.feature_flags")
	if !ok {
		t.Fatalf("expected alias and casing to normalize into the canonical key")
	}
	if def.Key != gate.FeatureAdminFlags {
		t.Fatalf("unexpected key: %q", def.Key)
	}
	if def.RequiredRole != gate.RoleAdmin {
		t.Fatalf("zero required role must default to admin, got %q", def.RequiredRole)
	}
}

func TestStaticCatalogGetByAlias(t *testing.T) {
	c := NewStatic(map[string]FlagDefinition{
		gate.FeatureMarketTrends: {Description: "trend dashboards", RequiredRole: gate.RoleAnalyst},
	})

	def, ok := c.Get("market.insight")
	if !ok {
		t.Fatalf("alias lookup must resolve")
	}
	if def.RequiredRole != gate.RoleAnalyst {
		t.Fatalf("unexpected required role: %q", def.RequiredRole)
	}
	if _, ok := c.Get(""); ok {
		t.Fatalf("empty key must not resolve")
	}
}

func TestStaticCatalogListOrdered(t *testing.T) {
	c := NewStatic(map[string]FlagDefinition{
		gate.FeatureMarketTrends: {},
		gate.FeatureAdminPanel:   {},
		gate.FeatureCausalEngine: {},
	})

	defs := c.List()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Key >= defs[i].Key {
			t.Fatalf("definitions out of order: %q before %q", defs[i-1].Key, defs[i].Key)
		}
	}
}

func TestStaticCatalogNilSafe(t *testing.T) {
	var c *StaticCatalog
	if _, ok := c.Get("admin.panel"); ok {
		t.Fatalf("nil catalog must miss")
	}
	if defs := c.List(); defs != nil {
		t.Fatalf("nil catalog must list nothing")
	}
}
