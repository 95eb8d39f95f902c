package gate

import "time"

// FlagStatus captures the lifecycle state of a feature flag.
type FlagStatus string

const (
	FlagStatusActive     FlagStatus = "active"
	FlagStatusInactive   FlagStatus = "inactive"
	FlagStatusDeprecated FlagStatus = "deprecated"
)

// FlagScope selects the entity a rollout percentage is bucketed against.
type FlagScope string

const (
	FlagScopeGlobal       FlagScope = "global"
	FlagScopeOrganization FlagScope = "organization"
	FlagScopeUser         FlagScope = "user"
)

// FeatureFlag is a flag definition as stored by the flag store.
type FeatureFlag struct {
	Key               string
	Status            FlagStatus
	Scope             FlagScope
	RolloutPercentage int
	EnabledDefault    bool
	Config            map[string]any
	AllowedSectors    []string
	BlockedSectors    []string
}

// Active reports whether the flag may evaluate to enabled at all. Inactive
// and deprecated flags are disabled regardless of overrides or rollout.
func (f FeatureFlag) Active() bool {
	return f.Status == FlagStatusActive
}

// SectorBlocked reports whether the sector appears in BlockedSectors.
func (f FeatureFlag) SectorBlocked(sector string) bool {
	if sector == "" {
		return false
	}
	for _, blocked := range f.BlockedSectors {
		if blocked == sector {
			return true
		}
	}
	return false
}

// SectorAllowed reports whether the sector passes the AllowedSectors list.
// An empty allow list admits every sector.
func (f FeatureFlag) SectorAllowed(sector string) bool {
	if sector == "" || len(f.AllowedSectors) == 0 {
		return true
	}
	for _, allowed := range f.AllowedSectors {
		if allowed == sector {
			return true
		}
	}
	return false
}

// OverrideLevel identifies which entity an override is pinned to.
type OverrideLevel string

const (
	OverrideLevelUser         OverrideLevel = "user"
	OverrideLevelOrganization OverrideLevel = "organization"
)

// Override pins a flag's evaluation for one organization or user. An
// unexpired override takes absolute precedence over rollout evaluation.
type Override struct {
	FlagKey   string
	Level     OverrideLevel
	OrgID     string
	UserID    string
	Enabled   bool
	Reason    string
	ExpiresAt time.Time
}

// Expired reports whether the override has lapsed at the given instant.
// A zero ExpiresAt never expires.
func (o Override) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}
