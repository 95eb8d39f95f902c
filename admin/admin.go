// Package admin is the single write path for flags, overrides, and roles.
// Every mutation must pass the role hierarchy resolver, is serialized per
// entity key, invalidates the flag cache entry it touches, and is audited.
package admin

import (
	"context"
	"sync"

	"github.com/goliatone/go-accessgate/activity"
	"github.com/goliatone/go-accessgate/audit"
	"github.com/goliatone/go-accessgate/cache"
	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/store"
)

// ErrAuthorizerRequired signals a missing authorizer.
var ErrAuthorizerRequired = gerrors.ErrAuthorizerRequired

// Service performs guarded administrative mutations.
type Service struct {
	authorizer gate.Authorizer
	flags      store.FlagWriter
	overrides  store.OverrideWriter
	roles      store.RoleWriter
	cache      cache.Cache
	recorder   audit.Recorder
	hooks      []activity.Hook

	locks sync.Map // entity key -> *sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithFlagStore sets the flag writer.
func WithFlagStore(flags store.FlagWriter) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.flags = flags
	}
}

// WithOverrideStore sets the override writer.
func WithOverrideStore(overrides store.OverrideWriter) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.overrides = overrides
	}
}

// WithRoleStore sets the role writer.
func WithRoleStore(roles store.RoleWriter) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.roles = roles
	}
}

// WithCache sets the cache invalidated on flag mutations.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.cache = c
	}
}

// WithAudit sets the audit recorder.
func WithAudit(recorder audit.Recorder) Option {
	return func(s *Service) {
		if s == nil || recorder == nil {
			return
		}
		s.recorder = recorder
	}
}

// WithActivityHook registers a mutation hook.
func WithActivityHook(hook activity.Hook) Option {
	return func(s *Service) {
		if s == nil || hook == nil {
			return
		}
		s.hooks = append(s.hooks, hook)
	}
}

// New constructs a Service. The authorizer is mandatory: there is no
// unguarded write path.
func New(authorizer gate.Authorizer, opts ...Option) *Service {
	s := &Service{
		authorizer: authorizer,
		cache:      cache.NoopCache{},
		recorder:   audit.NoopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.cache == nil {
		s.cache = cache.NoopCache{}
	}
	return s
}

// UpsertFlag creates or updates a flag definition.
func (s *Service) UpsertFlag(ctx context.Context, actor gate.ActorRef, actorRole gate.Role, flag gate.FeatureFlag) error {
	normalized := gate.NormalizeKey(flag.Key)
	if normalized == "" {
		return gerrors.WrapSentinel(gerrors.ErrInvalidKey, "", map[string]any{
			gerrors.MetaFlagKey:   flag.Key,
			gerrors.MetaOperation: "upsert_flag",
		})
	}
	flag.Key = normalized
	if flag.RolloutPercentage < 0 || flag.RolloutPercentage > 100 {
		return gerrors.NewBadInput(gerrors.TextCodeRolloutOutOfRange, "rollout percentage outside [0,100]", map[string]any{
			gerrors.MetaFlagKeyNormalized: normalized,
		})
	}
	if err := s.authorize(ctx, actor, actorRole, audit.ActionUpsertFlag, normalized); err != nil {
		return err
	}
	if s.flags == nil {
		return gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "", nil)
	}
	return s.locked("flag:"+normalized, func() error {
		if err := s.flags.UpsertFlag(ctx, flag, actor); err != nil {
			return gerrors.WrapExternal(err, gerrors.TextCodeStoreWriteFailed, "flag upsert failed", map[string]any{
				gerrors.MetaFlagKeyNormalized: normalized,
			})
		}
		s.cache.Delete(ctx, normalized)
		s.emit(ctx, activity.UpdateEvent{
			Action:  activity.ActionUpsertFlag,
			FlagKey: normalized,
			Actor:   actor,
			Enabled: boolPtr(flag.EnabledDefault),
		})
		s.record(ctx, actor, audit.ActionUpsertFlag, normalized)
		return nil
	})
}

// DeleteFlag removes a flag definition. Stores refuse the delete while
// overrides still reference the flag.
func (s *Service) DeleteFlag(ctx context.Context, actor gate.ActorRef, actorRole gate.Role, key string) error {
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return gerrors.WrapSentinel(gerrors.ErrInvalidKey, "", nil)
	}
	if err := s.authorize(ctx, actor, actorRole, audit.ActionDeleteFlag, normalized); err != nil {
		return err
	}
	if s.flags == nil {
		return gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "", nil)
	}
	return s.locked("flag:"+normalized, func() error {
		if err := s.flags.DeleteFlag(ctx, normalized, actor); err != nil {
			return err
		}
		s.cache.Delete(ctx, normalized)
		s.emit(ctx, activity.UpdateEvent{
			Action:  activity.ActionDeleteFlag,
			FlagKey: normalized,
			Actor:   actor,
		})
		s.record(ctx, actor, audit.ActionDeleteFlag, normalized)
		return nil
	})
}

// UpsertOverride creates or replaces the override for an entity.
func (s *Service) UpsertOverride(ctx context.Context, actor gate.ActorRef, actorRole gate.Role, override gate.Override) error {
	normalized := gate.NormalizeKey(override.FlagKey)
	if normalized == "" {
		return gerrors.WrapSentinel(gerrors.ErrInvalidKey, "", map[string]any{
			gerrors.MetaOperation: "upsert_override",
		})
	}
	override.FlagKey = normalized
	if err := s.authorize(ctx, actor, actorRole, audit.ActionUpsertOverride, normalized); err != nil {
		return err
	}
	if s.overrides == nil {
		return gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "", nil)
	}
	return s.locked("override:"+normalized, func() error {
		if err := s.overrides.UpsertOverride(ctx, override, actor); err != nil {
			return gerrors.WrapExternal(err, gerrors.TextCodeStoreWriteFailed, "override upsert failed", map[string]any{
				gerrors.MetaFlagKeyNormalized: normalized,
			})
		}
		s.cache.Delete(ctx, normalized)
		s.emit(ctx, activity.UpdateEvent{
			Action:  activity.ActionUpsertOverride,
			FlagKey: normalized,
			Subject: overrideSubject(override),
			Level:   override.Level,
			Actor:   actor,
			Enabled: boolPtr(override.Enabled),
		})
		s.record(ctx, actor, audit.ActionUpsertOverride, normalized)
		return nil
	})
}

// DeleteOverride removes the override for an entity.
func (s *Service) DeleteOverride(ctx context.Context, actor gate.ActorRef, actorRole gate.Role, key string, level gate.OverrideLevel, entityID string) error {
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return gerrors.WrapSentinel(gerrors.ErrInvalidKey, "", nil)
	}
	if err := s.authorize(ctx, actor, actorRole, audit.ActionDeleteOverride, normalized); err != nil {
		return err
	}
	if s.overrides == nil {
		return gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "", nil)
	}
	return s.locked("override:"+normalized, func() error {
		if err := s.overrides.DeleteOverride(ctx, normalized, level, entityID, actor); err != nil {
			return gerrors.WrapExternal(err, gerrors.TextCodeStoreWriteFailed, "override delete failed", map[string]any{
				gerrors.MetaFlagKeyNormalized: normalized,
			})
		}
		s.cache.Delete(ctx, normalized)
		s.emit(ctx, activity.UpdateEvent{
			Action:  activity.ActionDeleteOverride,
			FlagKey: normalized,
			Subject: entityID,
			Level:   level,
			Actor:   actor,
		})
		s.record(ctx, actor, audit.ActionDeleteOverride, normalized)
		return nil
	})
}

// SetRole assigns a role to a user. The role is validated before the write so
// unrelated code paths can never store a downgrade-by-garbage.
func (s *Service) SetRole(ctx context.Context, actor gate.ActorRef, actorRole gate.Role, userID string, role gate.Role) error {
	if !role.Valid() {
		return gerrors.NewBadInput(gerrors.TextCodeRoleMalformed, "role is not a member of the enumeration", map[string]any{
			gerrors.MetaUserID: userID,
		})
	}
	if err := s.authorize(ctx, actor, actorRole, audit.ActionSetRole, userID); err != nil {
		return err
	}
	if s.roles == nil {
		return gerrors.WrapSentinel(gerrors.ErrRoleStoreRequired, "", nil)
	}
	return s.locked("role:"+userID, func() error {
		if err := s.roles.SetRole(ctx, userID, role, actor); err != nil {
			return gerrors.WrapExternal(err, gerrors.TextCodeStoreWriteFailed, "role write failed", map[string]any{
				gerrors.MetaUserID: userID,
			})
		}
		s.emit(ctx, activity.UpdateEvent{
			Action:  activity.ActionSetRole,
			Subject: userID,
			Actor:   actor,
			Role:    role,
		})
		s.record(ctx, actor, audit.ActionSetRole, userID)
		return nil
	})
}

func (s *Service) authorize(ctx context.Context, actor gate.ActorRef, actorRole gate.Role, action audit.Action, target string) error {
	if s.authorizer == nil {
		return gerrors.WrapSentinel(gerrors.ErrAuthorizerRequired, "", nil)
	}
	decision := s.authorizer.Authorize(ctx, actorRole, gate.RoleAdmin)
	if decision.Allowed {
		return nil
	}
	s.recorder.Record(ctx, audit.Stamp(audit.Event{
		Actor:    actor,
		Action:   action,
		Target:   target,
		Decision: decision,
	}))
	return gerrors.NewOperation(gerrors.TextCodeMutationDenied, "administrative mutation denied", map[string]any{
		gerrors.MetaActor:        actor.ID,
		gerrors.MetaCallerRole:   string(actorRole),
		gerrors.MetaRequiredRole: string(gate.RoleAdmin),
		gerrors.MetaOperation:    string(action),
	})
}

// locked serializes mutations per entity key so concurrent admin edits cannot
// interleave into a half-applied state.
func (s *Service) locked(key string, fn func() error) error {
	value, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (s *Service) emit(ctx context.Context, event activity.UpdateEvent) {
	for _, hook := range s.hooks {
		if hook == nil {
			continue
		}
		hook.OnUpdate(ctx, event)
	}
}

func (s *Service) record(ctx context.Context, actor gate.ActorRef, action audit.Action, target string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, audit.Stamp(audit.Event{
		Actor:    actor,
		Action:   action,
		Target:   target,
		Decision: gate.Allow(gate.ReasonRoleSatisfied),
	}))
}

func overrideSubject(override gate.Override) string {
	if override.Level == gate.OverrideLevelUser {
		return override.UserID
	}
	return override.OrgID
}

func boolPtr(value bool) *bool {
	return &value
}
