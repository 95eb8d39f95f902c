package gate

import (
	"testing"
	"time"
)

func TestNormalizeKeyResolvesAlias(t *testing.T) {
	if got := NormalizeKey(" Admin.Flags "); got != FeatureAdminFlags {
		t.Fatalf("NormalizeKey() = %q, want %q", got, FeatureAdminFlags)
	}
	if !IsAlias("admin.flags") {
		t.Fatalf("expected admin.flags to be an alias")
	}
	if IsAlias(FeatureAdminFlags) {
		t.Fatalf("canonical key should not be an alias")
	}
}

func TestNormalizeKeyEmpty(t *testing.T) {
	if got := NormalizeKey("   "); got != "" {
		t.Fatalf("NormalizeKey() = %q, want empty", got)
	}
}

func TestOverrideExpiry(t *testing.T) {
	now := time.Now()
	override := Override{Enabled: true}
	if override.Expired(now) {
		t.Fatalf("zero ExpiresAt should never expire")
	}
	override.ExpiresAt = now.Add(-time.Minute)
	if !override.Expired(now) {
		t.Fatalf("past ExpiresAt should be expired")
	}
	override.ExpiresAt = now.Add(time.Minute)
	if override.Expired(now) {
		t.Fatalf("future ExpiresAt should not be expired")
	}
}

func TestFeatureFlagSectors(t *testing.T) {
	flag := FeatureFlag{
		AllowedSectors: []string{"technology", "finance"},
		BlockedSectors: []string{"gambling"},
	}
	if !flag.SectorAllowed("finance") {
		t.Fatalf("finance should be allowed")
	}
	if flag.SectorAllowed("retail") {
		t.Fatalf("retail should not pass a non-empty allow list")
	}
	if !flag.SectorBlocked("gambling") {
		t.Fatalf("gambling should be blocked")
	}
	if flag.SectorBlocked("") {
		t.Fatalf("empty sector should never match a block list")
	}
}

func TestParseEnvironmentFailsClosed(t *testing.T) {
	env, ok := ParseEnvironment("qa")
	if ok {
		t.Fatalf("expected parse failure")
	}
	if env != EnvironmentProduction {
		t.Fatalf("unknown environment should resolve to production, got %q", env)
	}
	env, ok = ParseEnvironment(" Staging ")
	if !ok || env != EnvironmentStaging {
		t.Fatalf("ParseEnvironment() = %q, %v", env, ok)
	}
}
