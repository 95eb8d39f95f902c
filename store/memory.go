package store

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
)

// ErrMemoryStoreRequired signals a missing memory store.
var ErrMemoryStoreRequired = errors.New("store: memory store is required")

// ErrInvalidKey signals a missing or invalid flag key.
var ErrInvalidKey = errors.New("store: flag key required")

type overrideKey struct {
	level gate.OverrideLevel
	id    string
}

// MemoryStore keeps flags, overrides, and roles in memory for tests and
// examples. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	flags     map[string]gate.FeatureFlag
	overrides map[string]map[overrideKey]gate.Override
	roles     map[string]gate.Role
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:     map[string]gate.FeatureFlag{},
		overrides: map[string]map[overrideKey]gate.Override{},
		roles:     map[string]gate.Role{},
	}
}

// GetFlag implements FlagReader.
func (m *MemoryStore) GetFlag(_ context.Context, key string) (gate.FeatureFlag, bool, error) {
	if m == nil {
		return gate.FeatureFlag{}, false, ErrMemoryStoreRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return gate.FeatureFlag{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	flag, ok := m.flags[normalized]
	return flag, ok, nil
}

// UpsertFlag implements FlagWriter.
func (m *MemoryStore) UpsertFlag(_ context.Context, flag gate.FeatureFlag, _ gate.ActorRef) error {
	if m == nil {
		return ErrMemoryStoreRequired
	}
	normalized, err := normalizeKey(flag.Key)
	if err != nil {
		return err
	}
	flag.Key = normalized
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flags == nil {
		m.flags = map[string]gate.FeatureFlag{}
	}
	m.flags[normalized] = flag
	return nil
}

// DeleteFlag implements FlagWriter. Deleting a flag that overrides still
// reference is refused to preserve referential integrity.
func (m *MemoryStore) DeleteFlag(_ context.Context, key string, _ gate.ActorRef) error {
	if m == nil {
		return ErrMemoryStoreRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.overrides[normalized]) > 0 {
		return gerrors.WrapSentinel(gerrors.ErrFlagReferenced, "", map[string]any{
			gerrors.MetaFlagKey: normalized,
		})
	}
	delete(m.flags, normalized)
	return nil
}

// GetOverride implements OverrideReader. User-level overrides take precedence
// over org-level ones.
func (m *MemoryStore) GetOverride(_ context.Context, key, orgID, userID string) (gate.Override, bool, error) {
	if m == nil {
		return gate.Override{}, false, ErrMemoryStoreRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return gate.Override{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.overrides[normalized]
	if len(entries) == 0 {
		return gate.Override{}, false, nil
	}
	if userID != "" {
		if override, ok := entries[overrideKey{level: gate.OverrideLevelUser, id: userID}]; ok {
			return override, true, nil
		}
	}
	if orgID != "" {
		if override, ok := entries[overrideKey{level: gate.OverrideLevelOrganization, id: orgID}]; ok {
			return override, true, nil
		}
	}
	return gate.Override{}, false, nil
}

// UpsertOverride implements OverrideWriter.
func (m *MemoryStore) UpsertOverride(_ context.Context, override gate.Override, _ gate.ActorRef) error {
	if m == nil {
		return ErrMemoryStoreRequired
	}
	normalized, err := normalizeKey(override.FlagKey)
	if err != nil {
		return err
	}
	override.FlagKey = normalized
	entry, err := overrideEntryKey(override)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides == nil {
		m.overrides = map[string]map[overrideKey]gate.Override{}
	}
	if m.overrides[normalized] == nil {
		m.overrides[normalized] = map[overrideKey]gate.Override{}
	}
	m.overrides[normalized][entry] = override
	return nil
}

// DeleteOverride implements OverrideWriter.
func (m *MemoryStore) DeleteOverride(_ context.Context, key string, level gate.OverrideLevel, entityID string, _ gate.ActorRef) error {
	if m == nil {
		return ErrMemoryStoreRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.overrides[normalized]
	if len(entries) == 0 {
		return nil
	}
	delete(entries, overrideKey{level: level, id: entityID})
	if len(entries) == 0 {
		delete(m.overrides, normalized)
	}
	return nil
}

// GetRole implements RoleReader.
func (m *MemoryStore) GetRole(_ context.Context, userID string) (gate.Role, bool, error) {
	if m == nil {
		return gate.RoleUnknown, false, ErrMemoryStoreRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[userID]
	if !ok {
		return gate.RoleUnknown, false, nil
	}
	return role, true, nil
}

// SetRole implements RoleWriter.
func (m *MemoryStore) SetRole(_ context.Context, userID string, role gate.Role, _ gate.ActorRef) error {
	if m == nil {
		return ErrMemoryStoreRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles == nil {
		m.roles = map[string]gate.Role{}
	}
	m.roles[userID] = role
	return nil
}

// Clear removes all stored state.
func (m *MemoryStore) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = map[string]gate.FeatureFlag{}
	m.overrides = map[string]map[overrideKey]gate.Override{}
	m.roles = map[string]gate.Role{}
}

func normalizeKey(key string) (string, error) {
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return "", ErrInvalidKey
	}
	return normalized, nil
}

func overrideEntryKey(override gate.Override) (overrideKey, error) {
	switch override.Level {
	case gate.OverrideLevelUser:
		if override.UserID == "" {
			return overrideKey{}, errors.New("store: user override requires user id")
		}
		return overrideKey{level: gate.OverrideLevelUser, id: override.UserID}, nil
	case gate.OverrideLevelOrganization:
		if override.OrgID == "" {
			return overrideKey{}, errors.New("store: org override requires org id")
		}
		return overrideKey{level: gate.OverrideLevelOrganization, id: override.OrgID}, nil
	default:
		return overrideKey{}, errors.New("store: override level required")
	}
}

var _ FlagStore = (*MemoryStore)(nil)
var _ OverrideStore = (*MemoryStore)(nil)
var _ RoleStore = (*MemoryStore)(nil)
