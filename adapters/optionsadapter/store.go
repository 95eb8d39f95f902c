// Package optionsadapter stores flag overrides in a go-options state store,
// so deployments already running go-options preference storage can reuse it
// for overrides without a dedicated table.
package optionsadapter

import (
	"context"
	"strings"
	"time"

	opts "github.com/goliatone/go-options"
	"github.com/goliatone/go-options/pkg/state"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/store"
)

const (
	priorityOrg  = 30
	priorityUser = 40
)

// DefaultDomain is the default options domain used for flag overrides.
const DefaultDomain = "feature_flag_overrides"

// ErrStoreRequired indicates the underlying state store is missing.
var ErrStoreRequired = gerrors.ErrFlagStoreRequired

// ErrInvalidKey indicates a missing or invalid flag key.
var ErrInvalidKey = gerrors.ErrInvalidKey

// MetaBuilder builds storage metadata from an actor reference.
type MetaBuilder func(actor gate.ActorRef) state.Meta

// Option customizes the Store adapter.
type Option func(*Store)

// Store adapts a go-options state.Store into an override store. Each override
// level maps to an options scope; user scope outranks organization scope.
type Store struct {
	stateStore state.Store[map[string]any]
	domain     string
	meta       MetaBuilder
	now        func() time.Time
}

// NewStore constructs an adapter backed by a go-options state.Store.
func NewStore(stateStore state.Store[map[string]any], options ...Option) *Store {
	adapter := &Store{
		stateStore: stateStore,
		domain:     DefaultDomain,
		meta:       defaultMeta,
		now:        time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.domain == "" {
		adapter.domain = DefaultDomain
	}
	if adapter.meta == nil {
		adapter.meta = defaultMeta
	}
	if adapter.now == nil {
		adapter.now = time.Now
	}
	return adapter
}

// WithDomain sets the options domain used for overrides.
func WithDomain(domain string) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.domain = strings.TrimSpace(domain)
	}
}

// WithMetaBuilder overrides the metadata builder used on mutations.
func WithMetaBuilder(builder MetaBuilder) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.meta = builder
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(adapter *Store) {
		if adapter == nil || now == nil {
			return
		}
		adapter.now = now
	}
}

// GetOverride implements store.OverrideReader. User-level overrides take
// precedence over organization-level ones.
func (s *Store) GetOverride(ctx context.Context, key, orgID, userID string) (gate.Override, bool, error) {
	if s == nil || s.stateStore == nil {
		return gate.Override{}, false, storeRequiredError(key, "get")
	}
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return gate.Override{}, false, invalidKeyError(key, "get")
	}

	for _, probe := range probes(orgID, userID) {
		snapshot, _, ok, err := s.stateStore.Load(ctx, state.Ref{Domain: s.domain, Scope: probe.scope})
		if err != nil {
			return gate.Override{}, false, gerrors.WrapExternal(err, gerrors.TextCodeStoreReadFailed, "optionsadapter: load failed", map[string]any{
				gerrors.MetaAdapter:           "options",
				gerrors.MetaFlagKeyNormalized: normalized,
			})
		}
		if !ok || len(snapshot) == 0 {
			continue
		}
		value, found := lookupPath(snapshot, normalized)
		if !found {
			continue
		}
		override, err := overrideFromValue(normalized, probe, value)
		if err != nil {
			return gate.Override{}, false, err
		}
		return override, true, nil
	}
	return gate.Override{}, false, nil
}

// UpsertOverride implements store.OverrideWriter.
func (s *Store) UpsertOverride(ctx context.Context, override gate.Override, actor gate.ActorRef) error {
	if s == nil || s.stateStore == nil {
		return storeRequiredError(override.FlagKey, "upsert")
	}
	normalized := gate.NormalizeKey(override.FlagKey)
	if normalized == "" {
		return invalidKeyError(override.FlagKey, "upsert")
	}
	entityID := overrideEntity(override)
	if entityID == "" {
		return gerrors.NewBadInput(gerrors.TextCodeOverrideOrphaned, "override entity is required", map[string]any{
			gerrors.MetaFlagKeyNormalized: normalized,
		})
	}

	ref := state.Ref{Domain: s.domain, Scope: scopeFor(override.Level, entityID)}
	resolver := state.Resolver[map[string]any]{Store: s.stateStore}
	_, _, err := resolver.Mutate(ctx, ref, s.meta(actor), func(snapshot *map[string]any) error {
		if snapshot == nil {
			return gerrors.NewIntegrity(gerrors.TextCodeAdapterFailed, "optionsadapter: snapshot is nil", nil)
		}
		if *snapshot == nil {
			*snapshot = map[string]any{}
		}
		return setPath(*snapshot, normalized, encodeOverride(override))
	})
	if err != nil {
		return gerrors.WrapExternal(err, gerrors.TextCodeStoreWriteFailed, "optionsadapter: upsert failed", map[string]any{
			gerrors.MetaAdapter:           "options",
			gerrors.MetaFlagKeyNormalized: normalized,
		})
	}
	return nil
}

// DeleteOverride implements store.OverrideWriter.
func (s *Store) DeleteOverride(ctx context.Context, key string, level gate.OverrideLevel, entityID string, actor gate.ActorRef) error {
	if s == nil || s.stateStore == nil {
		return storeRequiredError(key, "delete")
	}
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return invalidKeyError(key, "delete")
	}

	ref := state.Ref{Domain: s.domain, Scope: scopeFor(level, entityID)}
	resolver := state.Resolver[map[string]any]{Store: s.stateStore}
	_, _, err := resolver.Mutate(ctx, ref, s.meta(actor), func(snapshot *map[string]any) error {
		if snapshot == nil {
			return gerrors.NewIntegrity(gerrors.TextCodeAdapterFailed, "optionsadapter: snapshot is nil", nil)
		}
		if *snapshot == nil {
			*snapshot = map[string]any{}
		}
		deletePath(*snapshot, normalized)
		return nil
	})
	if err != nil {
		return gerrors.WrapExternal(err, gerrors.TextCodeStoreWriteFailed, "optionsadapter: delete failed", map[string]any{
			gerrors.MetaAdapter:           "options",
			gerrors.MetaFlagKeyNormalized: normalized,
		})
	}
	return nil
}

type overrideProbe struct {
	level    gate.OverrideLevel
	entityID string
	scope    opts.Scope
}

func probes(orgID, userID string) []overrideProbe {
	out := make([]overrideProbe, 0, 2)
	if userID != "" {
		out = append(out, overrideProbe{
			level:    gate.OverrideLevelUser,
			entityID: userID,
			scope:    scopeFor(gate.OverrideLevelUser, userID),
		})
	}
	if orgID != "" {
		out = append(out, overrideProbe{
			level:    gate.OverrideLevelOrganization,
			entityID: orgID,
			scope:    scopeFor(gate.OverrideLevelOrganization, orgID),
		})
	}
	return out
}

func scopeFor(level gate.OverrideLevel, entityID string) opts.Scope {
	if level == gate.OverrideLevelUser {
		return scoped("user", "User", priorityUser, gerrors.MetaUserID, entityID)
	}
	return scoped("org", "Org", priorityOrg, gerrors.MetaOrgID, entityID)
}

func scoped(name, label string, priority int, metadataKey, metadataValue string) opts.Scope {
	var metadata map[string]any
	if metadataKey != "" && metadataValue != "" {
		metadata = map[string]any{metadataKey: metadataValue}
	}
	return opts.NewScope(
		name,
		priority,
		opts.WithScopeLabel(label),
		opts.WithScopeMetadata(metadata),
	)
}

func defaultMeta(actor gate.ActorRef) state.Meta {
	extra := map[string]string{}
	if actor.ID != "" {
		extra["actor_id"] = actor.ID
	}
	if actor.Type != "" {
		extra["actor_type"] = actor.Type
	}
	if actor.Name != "" {
		extra["actor_name"] = actor.Name
	}
	if len(extra) == 0 {
		return state.Meta{}
	}
	return state.Meta{Extra: extra}
}

func encodeOverride(override gate.Override) map[string]any {
	value := map[string]any{
		"enabled": override.Enabled,
	}
	if override.Reason != "" {
		value["reason"] = override.Reason
	}
	if !override.ExpiresAt.IsZero() {
		value["expires_at"] = override.ExpiresAt.Format(time.RFC3339Nano)
	}
	return value
}

func overrideFromValue(key string, probe overrideProbe, value any) (gate.Override, error) {
	override := gate.Override{
		FlagKey: key,
		Level:   probe.level,
	}
	if probe.level == gate.OverrideLevelUser {
		override.UserID = probe.entityID
	} else {
		override.OrgID = probe.entityID
	}

	switch typed := value.(type) {
	case bool:
		override.Enabled = typed
		return override, nil
	case map[string]any:
		enabled, _ := typed["enabled"].(bool)
		override.Enabled = enabled
		if reason, ok := typed["reason"].(string); ok {
			override.Reason = reason
		}
		if raw, ok := typed["expires_at"].(string); ok && raw != "" {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return gate.Override{}, gerrors.NewIntegrity(gerrors.TextCodeAdapterFailed, "optionsadapter: invalid expires_at", map[string]any{
					gerrors.MetaFlagKeyNormalized: key,
				})
			}
			override.ExpiresAt = parsed
		}
		return override, nil
	default:
		return gate.Override{}, gerrors.NewIntegrity(gerrors.TextCodeAdapterFailed, "optionsadapter: unsupported override value", map[string]any{
			gerrors.MetaFlagKeyNormalized: key,
		})
	}
}

func overrideEntity(override gate.Override) string {
	if override.Level == gate.OverrideLevelUser {
		return override.UserID
	}
	return override.OrgID
}

func storeRequiredError(key, operation string) error {
	return gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "optionsadapter: state store is required", map[string]any{
		gerrors.MetaAdapter:   "options",
		gerrors.MetaStore:     "state",
		gerrors.MetaOperation: operation,
		gerrors.MetaFlagKey:   strings.TrimSpace(key),
	})
}

func invalidKeyError(key, operation string) error {
	return gerrors.WrapSentinel(gerrors.ErrInvalidKey, "optionsadapter: flag key required", map[string]any{
		gerrors.MetaAdapter:   "options",
		gerrors.MetaStore:     "state",
		gerrors.MetaOperation: operation,
		gerrors.MetaFlagKey:   strings.TrimSpace(key),
	})
}

var _ store.OverrideStore = (*Store)(nil)
