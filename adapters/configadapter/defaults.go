// Package configadapter sources flag definitions and gate policy from
// deployment configuration maps.
package configadapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-config/config"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/store"
)

type configOptions struct {
	delimiter string
}

// Option configures configadapter parsing.
type Option func(*configOptions)

// WithDelimiter sets the key delimiter used when flattening nested maps.
func WithDelimiter(delimiter string) Option {
	return func(cfg *configOptions) {
		if cfg == nil {
			return
		}
		cfg.delimiter = delimiter
	}
}

// FlagDefaults is a read-only flag source backed by configuration. It backs
// environments that ship flag definitions in config files instead of a
// database.
type FlagDefaults struct {
	flags map[string]gate.FeatureFlag
}

// NewFlagDefaults builds FlagDefaults from a nested map. Leaves may be plain
// booleans, config OptionalBool values, or maps carrying full flag fields
// (status, scope, rollout_percentage, enabled_default, allowed_sectors,
// blocked_sectors).
func NewFlagDefaults(data map[string]any, opts ...Option) *FlagDefaults {
	cfg := configOptions{delimiter: "."}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.delimiter == "" {
		cfg.delimiter = "."
	}

	flags := map[string]gate.FeatureFlag{}
	flattenFlags("", data, cfg.delimiter, flags)
	return &FlagDefaults{flags: flags}
}

// NewFlagDefaultsFromBools builds FlagDefaults from a simple map of booleans.
func NewFlagDefaultsFromBools(data map[string]bool, opts ...Option) *FlagDefaults {
	if len(data) == 0 {
		return NewFlagDefaults(nil, opts...)
	}
	raw := make(map[string]any, len(data))
	for key, value := range data {
		raw[key] = value
	}
	return NewFlagDefaults(raw, opts...)
}

// GetFlag implements store.FlagReader.
func (d *FlagDefaults) GetFlag(_ context.Context, key string) (gate.FeatureFlag, bool, error) {
	if d == nil || len(d.flags) == 0 {
		return gate.FeatureFlag{}, false, nil
	}
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return gate.FeatureFlag{}, false, nil
	}
	flag, ok := d.flags[normalized]
	return flag, ok, nil
}

// Flags returns all configured flag definitions, for seeding a writable
// store at startup.
func (d *FlagDefaults) Flags() []gate.FeatureFlag {
	if d == nil || len(d.flags) == 0 {
		return nil
	}
	out := make([]gate.FeatureFlag, 0, len(d.flags))
	for _, flag := range d.flags {
		out = append(out, flag)
	}
	return out
}

type optionalBool interface {
	IsSet() bool
	Value() bool
}

func flattenFlags(prefix string, data map[string]any, delim string, out map[string]gate.FeatureFlag) {
	if len(data) == 0 {
		return
	}
	for key, value := range data {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		path := trimmedKey
		if prefix != "" {
			path = prefix + delim + trimmedKey
		}

		switch typed := value.(type) {
		case map[string]any:
			if flag, ok := flagFromMap(typed); ok {
				addFlag(out, path, flag)
				continue
			}
			flattenFlags(path, typed, delim, out)
		case map[string]bool:
			flattenFlags(path, boolMapToAny(typed), delim, out)
		default:
			if enabled, ok := enabledFromValue(value); ok {
				addFlag(out, path, gate.FeatureFlag{
					Status:            gate.FlagStatusActive,
					Scope:             gate.FlagScopeGlobal,
					RolloutPercentage: 100,
					EnabledDefault:    enabled,
				})
			}
		}
	}
}

func addFlag(out map[string]gate.FeatureFlag, path string, flag gate.FeatureFlag) {
	normalized := gate.NormalizeKey(path)
	if normalized == "" {
		return
	}
	flag.Key = normalized
	if flag.Status == "" {
		flag.Status = gate.FlagStatusActive
	}
	if flag.Scope == "" {
		flag.Scope = gate.FlagScopeGlobal
	}
	out[normalized] = flag
}

// flagFromMap reports whether the map describes a flag definition rather than
// a nested key group. Presence of any known flag field marks a definition.
func flagFromMap(data map[string]any) (gate.FeatureFlag, bool) {
	flag := gate.FeatureFlag{}
	found := false
	if value, ok := data["status"].(string); ok {
		flag.Status = gate.FlagStatus(strings.ToLower(strings.TrimSpace(value)))
		found = true
	}
	if value, ok := data["scope"].(string); ok {
		flag.Scope = gate.FlagScope(strings.ToLower(strings.TrimSpace(value)))
		found = true
	}
	if value, ok := intFromValue(data["rollout_percentage"]); ok {
		flag.RolloutPercentage = value
		found = true
	}
	if value, ok := enabledFromValue(data["enabled_default"]); ok {
		flag.EnabledDefault = value
		found = true
	}
	if value, ok := stringsFromValue(data["allowed_sectors"]); ok {
		flag.AllowedSectors = value
		found = true
	}
	if value, ok := stringsFromValue(data["blocked_sectors"]); ok {
		flag.BlockedSectors = value
		found = true
	}
	if value, ok := data["config"].(map[string]any); ok {
		flag.Config = value
		found = true
	}
	return flag, found
}

func enabledFromValue(value any) (bool, bool) {
	switch typed := value.(type) {
	case optionalBool:
		if !typed.IsSet() {
			return false, false
		}
		return typed.Value(), true
	case config.OptionalBool:
		if !typed.IsSet() {
			return false, false
		}
		return typed.Value(), true
	case *config.OptionalBool:
		if typed == nil || !typed.IsSet() {
			return false, false
		}
		return typed.Value(), true
	case bool:
		return typed, true
	case *bool:
		if typed == nil {
			return false, false
		}
		return *typed, true
	default:
		return false, false
	}
}

func intFromValue(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

func stringsFromValue(value any) ([]string, bool) {
	switch typed := value.(type) {
	case []string:
		return typed, true
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func boolMapToAny(data map[string]bool) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	return out
}

var _ store.FlagReader = (*FlagDefaults)(nil)
