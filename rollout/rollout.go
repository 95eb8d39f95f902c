// Package rollout computes deterministic rollout buckets so the same entity
// always receives the same decision for a given flag and percentage.
package rollout

import (
	"hash/fnv"

	"github.com/goliatone/go-accessgate/gate"
)

// Bucket maps (flagKey, entityID) into [0,100). FNV-1a keeps the bucket
// stable across processes and restarts; changing the algorithm reshuffles
// every in-flight rollout, so treat it as part of the storage contract.
func Bucket(flagKey, entityID string) int {
	h := fnv.New64a()
	h.Write([]byte(flagKey))
	h.Write([]byte{0})
	h.Write([]byte(entityID))
	return int(h.Sum64() % 100)
}

// Entity selects the identifier a flag's scope buckets against: the org for
// organization-scoped flags, the user otherwise. Falls back across the two so
// a partially-populated context still buckets deterministically.
func Entity(scope gate.FlagScope, evalCtx gate.EvalContext) string {
	switch scope {
	case gate.FlagScopeOrganization:
		if evalCtx.OrgID != "" {
			return evalCtx.OrgID
		}
		return evalCtx.UserID
	default:
		if evalCtx.UserID != "" {
			return evalCtx.UserID
		}
		return evalCtx.OrgID
	}
}

// Enabled reports whether the entity falls inside the rollout percentage.
// Percentages are clamped to [0,100]; 0 admits nobody and 100 everybody.
func Enabled(flagKey, entityID string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}
	if entityID == "" {
		// No entity to bucket; fail closed rather than flip per call.
		return false
	}
	return Bucket(flagKey, entityID) < percentage
}
