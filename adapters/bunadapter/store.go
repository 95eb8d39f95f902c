// Package bunadapter persists flags, overrides, and roles in a SQL database
// through Bun.
package bunadapter

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/store"
)

// Default table names.
const (
	DefaultFlagTable     = "feature_flags"
	DefaultOverrideTable = "feature_flag_overrides"
	DefaultRoleTable     = "user_roles"
)

// ErrDBRequired indicates the underlying Bun DB is missing.
var ErrDBRequired = errors.New("bunadapter: db is required")

// ErrInvalidKey indicates a missing or invalid flag key.
var ErrInvalidKey = errors.New("bunadapter: flag key required")

// Store adapts Bun DB operations to the flag, override, and role store
// contracts.
type Store struct {
	db            bun.IDB
	flagTable     string
	overrideTable string
	roleTable     string
	now           func() time.Time
	updatedBy     func(gate.ActorRef) string
}

// Option customizes the Bun store adapter.
type Option func(*Store)

// NewStore constructs a new Bun-backed store.
func NewStore(db bun.IDB, opts ...Option) *Store {
	adapter := &Store{
		db:            db,
		flagTable:     DefaultFlagTable,
		overrideTable: DefaultOverrideTable,
		roleTable:     DefaultRoleTable,
		now:           time.Now,
		updatedBy:     defaultUpdatedBy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.flagTable == "" {
		adapter.flagTable = DefaultFlagTable
	}
	if adapter.overrideTable == "" {
		adapter.overrideTable = DefaultOverrideTable
	}
	if adapter.roleTable == "" {
		adapter.roleTable = DefaultRoleTable
	}
	if adapter.now == nil {
		adapter.now = time.Now
	}
	if adapter.updatedBy == nil {
		adapter.updatedBy = defaultUpdatedBy
	}
	return adapter
}

// WithFlagTable sets the table name used for flag definitions.
func WithFlagTable(table string) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.flagTable = strings.TrimSpace(table)
	}
}

// WithOverrideTable sets the table name used for overrides.
func WithOverrideTable(table string) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.overrideTable = strings.TrimSpace(table)
	}
}

// WithRoleTable sets the table name used for user roles.
func WithRoleTable(table string) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.roleTable = strings.TrimSpace(table)
	}
}

// WithNowFunc overrides the timestamp function used for updates.
func WithNowFunc(now func() time.Time) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.now = now
	}
}

// WithUpdatedByBuilder overrides the updated_by value builder.
func WithUpdatedByBuilder(builder func(gate.ActorRef) string) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.updatedBy = builder
	}
}

// FlagRecord maps to the feature_flags table.
type FlagRecord struct {
	bun.BaseModel `bun:"table:feature_flags"`

	Key               string         `bun:"key,pk"`
	Status            string         `bun:"status,nullzero"`
	Scope             string         `bun:"scope,nullzero"`
	RolloutPercentage int            `bun:"rollout_percentage"`
	EnabledDefault    bool           `bun:"enabled_default"`
	Config            map[string]any `bun:"config,type:jsonb,nullzero"`
	AllowedSectors    []string       `bun:"allowed_sectors,type:jsonb,nullzero"`
	BlockedSectors    []string       `bun:"blocked_sectors,type:jsonb,nullzero"`
	UpdatedBy         string         `bun:"updated_by,nullzero"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero"`
}

// OverrideRecord maps to the feature_flag_overrides table.
type OverrideRecord struct {
	bun.BaseModel `bun:"table:feature_flag_overrides"`

	FlagKey   string    `bun:"flag_key,pk"`
	Level     string    `bun:"level,pk"`
	EntityID  string    `bun:"entity_id,pk"`
	Enabled   bool      `bun:"enabled"`
	Reason    string    `bun:"reason,nullzero"`
	ExpiresAt time.Time `bun:"expires_at,nullzero"`
	UpdatedBy string    `bun:"updated_by,nullzero"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// RoleRecord maps to the user_roles table.
type RoleRecord struct {
	bun.BaseModel `bun:"table:user_roles"`

	UserID    string    `bun:"user_id,pk"`
	Role      string    `bun:"role"`
	UpdatedBy string    `bun:"updated_by,nullzero"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// GetFlag implements store.FlagReader.
func (s *Store) GetFlag(ctx context.Context, key string) (gate.FeatureFlag, bool, error) {
	if s == nil || s.db == nil {
		return gate.FeatureFlag{}, false, ErrDBRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return gate.FeatureFlag{}, false, err
	}
	record := FlagRecord{}
	query := s.db.NewSelect().Model(&record).
		Where("key = ?", normalized).
		Limit(1)
	if s.flagTable != "" {
		query = query.TableExpr(s.flagTable)
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gate.FeatureFlag{}, false, nil
		}
		return gate.FeatureFlag{}, false, err
	}
	return flagFromRecord(record), true, nil
}

// UpsertFlag implements store.FlagWriter.
func (s *Store) UpsertFlag(ctx context.Context, flag gate.FeatureFlag, actor gate.ActorRef) error {
	if s == nil || s.db == nil {
		return ErrDBRequired
	}
	normalized, err := normalizeKey(flag.Key)
	if err != nil {
		return err
	}
	record := FlagRecord{
		Key:               normalized,
		Status:            string(flag.Status),
		Scope:             string(flag.Scope),
		RolloutPercentage: flag.RolloutPercentage,
		EnabledDefault:    flag.EnabledDefault,
		Config:            flag.Config,
		AllowedSectors:    flag.AllowedSectors,
		BlockedSectors:    flag.BlockedSectors,
		UpdatedBy:         s.updatedBy(actor),
		UpdatedAt:         s.now(),
	}
	query := s.db.NewInsert().Model(&record).
		On("CONFLICT (key) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("scope = EXCLUDED.scope").
		Set("rollout_percentage = EXCLUDED.rollout_percentage").
		Set("enabled_default = EXCLUDED.enabled_default").
		Set("config = EXCLUDED.config").
		Set("allowed_sectors = EXCLUDED.allowed_sectors").
		Set("blocked_sectors = EXCLUDED.blocked_sectors").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at")
	if s.flagTable != "" {
		query = query.TableExpr(s.flagTable)
	}
	_, err = query.Exec(ctx)
	return err
}

// DeleteFlag implements store.FlagWriter. The delete is refused while
// overrides still reference the flag.
func (s *Store) DeleteFlag(ctx context.Context, key string, actor gate.ActorRef) error {
	if s == nil || s.db == nil {
		return ErrDBRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	countQuery := s.db.NewSelect().Model((*OverrideRecord)(nil)).
		Where("flag_key = ?", normalized)
	if s.overrideTable != "" {
		countQuery = countQuery.TableExpr(s.overrideTable)
	}
	referencing, err := countQuery.Count(ctx)
	if err != nil {
		return err
	}
	if referencing > 0 {
		return gerrors.WrapSentinel(gerrors.ErrFlagReferenced, "", map[string]any{
			gerrors.MetaFlagKeyNormalized: normalized,
		})
	}
	query := s.db.NewDelete().Model((*FlagRecord)(nil)).
		Where("key = ?", normalized)
	if s.flagTable != "" {
		query = query.TableExpr(s.flagTable)
	}
	_, err = query.Exec(ctx)
	return err
}

// GetOverride implements store.OverrideReader. User-level overrides are
// preferred over organization-level ones.
func (s *Store) GetOverride(ctx context.Context, key, orgID, userID string) (gate.Override, bool, error) {
	if s == nil || s.db == nil {
		return gate.Override{}, false, ErrDBRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return gate.Override{}, false, err
	}
	for _, probe := range overrideProbes(orgID, userID) {
		record := OverrideRecord{}
		query := s.db.NewSelect().Model(&record).
			Where("flag_key = ?", normalized).
			Where("level = ?", string(probe.level)).
			Where("entity_id = ?", probe.entityID).
			Limit(1)
		if s.overrideTable != "" {
			query = query.TableExpr(s.overrideTable)
		}
		if err := query.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return gate.Override{}, false, err
		}
		return overrideFromRecord(record), true, nil
	}
	return gate.Override{}, false, nil
}

// UpsertOverride implements store.OverrideWriter.
func (s *Store) UpsertOverride(ctx context.Context, override gate.Override, actor gate.ActorRef) error {
	if s == nil || s.db == nil {
		return ErrDBRequired
	}
	normalized, err := normalizeKey(override.FlagKey)
	if err != nil {
		return err
	}
	record := OverrideRecord{
		FlagKey:   normalized,
		Level:     string(override.Level),
		EntityID:  overrideEntity(override),
		Enabled:   override.Enabled,
		Reason:    override.Reason,
		ExpiresAt: override.ExpiresAt,
		UpdatedBy: s.updatedBy(actor),
		UpdatedAt: s.now(),
	}
	query := s.db.NewInsert().Model(&record).
		On("CONFLICT (flag_key, level, entity_id) DO UPDATE").
		Set("enabled = EXCLUDED.enabled").
		Set("reason = EXCLUDED.reason").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at")
	if s.overrideTable != "" {
		query = query.TableExpr(s.overrideTable)
	}
	_, err = query.Exec(ctx)
	return err
}

// DeleteOverride implements store.OverrideWriter.
func (s *Store) DeleteOverride(ctx context.Context, key string, level gate.OverrideLevel, entityID string, actor gate.ActorRef) error {
	if s == nil || s.db == nil {
		return ErrDBRequired
	}
	normalized, err := normalizeKey(key)
	if err != nil {
		return err
	}
	query := s.db.NewDelete().Model((*OverrideRecord)(nil)).
		Where("flag_key = ?", normalized).
		Where("level = ?", string(level)).
		Where("entity_id = ?", entityID)
	if s.overrideTable != "" {
		query = query.TableExpr(s.overrideTable)
	}
	_, err = query.Exec(ctx)
	return err
}

// GetRole implements store.RoleReader. Stored values are normalized through
// the role parser so a corrupted row resolves to the unknown role instead of
// leaking garbage into decisions.
func (s *Store) GetRole(ctx context.Context, userID string) (gate.Role, bool, error) {
	if s == nil || s.db == nil {
		return gate.RoleUnknown, false, ErrDBRequired
	}
	record := RoleRecord{}
	query := s.db.NewSelect().Model(&record).
		Where("user_id = ?", userID).
		Limit(1)
	if s.roleTable != "" {
		query = query.TableExpr(s.roleTable)
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gate.RoleUnknown, false, nil
		}
		return gate.RoleUnknown, false, err
	}
	role, _ := gate.ParseRole(record.Role)
	return role, true, nil
}

// SetRole implements store.RoleWriter.
func (s *Store) SetRole(ctx context.Context, userID string, role gate.Role, actor gate.ActorRef) error {
	if s == nil || s.db == nil {
		return ErrDBRequired
	}
	record := RoleRecord{
		UserID:    userID,
		Role:      string(role),
		UpdatedBy: s.updatedBy(actor),
		UpdatedAt: s.now(),
	}
	query := s.db.NewInsert().Model(&record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at")
	if s.roleTable != "" {
		query = query.TableExpr(s.roleTable)
	}
	_, err := query.Exec(ctx)
	return err
}

func defaultUpdatedBy(actor gate.ActorRef) string {
	if actor.ID != "" {
		return actor.ID
	}
	if actor.Name != "" {
		return actor.Name
	}
	if actor.Type != "" {
		return actor.Type
	}
	return ""
}

func normalizeKey(key string) (string, error) {
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return "", ErrInvalidKey
	}
	return normalized, nil
}

func flagFromRecord(record FlagRecord) gate.FeatureFlag {
	return gate.FeatureFlag{
		Key:               record.Key,
		Status:            gate.FlagStatus(record.Status),
		Scope:             gate.FlagScope(record.Scope),
		RolloutPercentage: record.RolloutPercentage,
		EnabledDefault:    record.EnabledDefault,
		Config:            record.Config,
		AllowedSectors:    record.AllowedSectors,
		BlockedSectors:    record.BlockedSectors,
	}
}

func overrideFromRecord(record OverrideRecord) gate.Override {
	override := gate.Override{
		FlagKey:   record.FlagKey,
		Level:     gate.OverrideLevel(record.Level),
		Enabled:   record.Enabled,
		Reason:    record.Reason,
		ExpiresAt: record.ExpiresAt,
	}
	if override.Level == gate.OverrideLevelUser {
		override.UserID = record.EntityID
	} else {
		override.OrgID = record.EntityID
	}
	return override
}

func overrideEntity(override gate.Override) string {
	if override.Level == gate.OverrideLevelUser {
		return override.UserID
	}
	return override.OrgID
}

type overrideProbe struct {
	level    gate.OverrideLevel
	entityID string
}

func overrideProbes(orgID, userID string) []overrideProbe {
	probes := make([]overrideProbe, 0, 2)
	if userID != "" {
		probes = append(probes, overrideProbe{level: gate.OverrideLevelUser, entityID: userID})
	}
	if orgID != "" {
		probes = append(probes, overrideProbe{level: gate.OverrideLevelOrganization, entityID: orgID})
	}
	return probes
}

var _ store.FlagStore = (*Store)(nil)
var _ store.OverrideStore = (*Store)(nil)
var _ store.RoleStore = (*Store)(nil)
