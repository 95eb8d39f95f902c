package gate

import "strings"

const (
	FeatureAdminPanel   = "admin.panel"
	FeatureAdminFlags   = "admin.feature_flags"
	FeatureMarketTrends = "market.trends"
	FeatureCausalEngine = "market.causal_engine"
)

// keyAliases maps retired flag keys to their replacements so callers holding
// an old key keep resolving the same flag.
var keyAliases = map[string]string{
	"admin.flags":    FeatureAdminFlags,
	"market.insight": FeatureMarketTrends,
}

// NormalizeKey trims whitespace, lowercases, and resolves any known aliases.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ""
	}
	if alias, ok := keyAliases[key]; ok {
		return alias
	}
	return key
}

// IsAlias reports whether the key is a retired alias.
func IsAlias(key string) bool {
	_, ok := keyAliases[strings.ToLower(strings.TrimSpace(key))]
	return ok
}
