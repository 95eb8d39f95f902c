package configadapter

import (
	"strings"
	"time"

	"github.com/goliatone/go-accessgate/envgate"
	"github.com/goliatone/go-accessgate/gate"
)

// EnvironmentFromValue classifies the deployment environment from a config
// value. Unknown or missing values classify as production so that gating
// fails closed on misconfiguration.
func EnvironmentFromValue(value any) gate.Environment {
	raw, _ := value.(string)
	env, _ := gate.ParseEnvironment(raw)
	return env
}

// PolicyFromMap builds an environment gate policy from a config map. Expected
// keys: production_allowlist (list of operation keys), budget (int), window
// (duration string such as "1h").
func PolicyFromMap(data map[string]any) envgate.Policy {
	policy := envgate.Policy{}
	if len(data) == 0 {
		return policy
	}
	if allowlist, ok := stringsFromValue(data["production_allowlist"]); ok {
		policy.ProductionAllowlist = allowlist
	}
	if budget, ok := intFromValue(data["budget"]); ok {
		policy.Budget = budget
	}
	if window, ok := durationFromValue(data["window"]); ok {
		policy.Window = window
	}
	return policy
}

func durationFromValue(value any) (time.Duration, bool) {
	switch typed := value.(type) {
	case time.Duration:
		return typed, true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case int:
		return time.Duration(typed) * time.Second, true
	case int64:
		return time.Duration(typed) * time.Second, true
	case float64:
		return time.Duration(typed) * time.Second, true
	default:
		return 0, false
	}
}
