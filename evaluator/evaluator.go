// Package evaluator resolves feature flag enablement for an evaluation
// context. Evaluation order is fixed: status gating, sector gating,
// overrides, global default, deterministic rollout. The returned boolean is
// always concrete; on any internal failure it is the fail-closed value.
package evaluator

import (
	"context"
	"time"

	"github.com/goliatone/go-accessgate/audit"
	"github.com/goliatone/go-accessgate/cache"
	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/rollout"
	"github.com/goliatone/go-accessgate/scope"
	"github.com/goliatone/go-accessgate/store"
)

// ErrInvalidKey signals an empty or invalid flag key.
var ErrInvalidKey = gerrors.ErrInvalidKey

// ErrFlagStoreRequired signals a missing flag store.
var ErrFlagStoreRequired = gerrors.ErrFlagStoreRequired

// DefaultStoreTimeout bounds each flag or override load so a degraded store
// cannot hang the request path.
const DefaultStoreTimeout = 500 * time.Millisecond

// Gate evaluates flags using a flag store, an optional override store, and a
// read-through definition cache.
type Gate struct {
	flags           store.FlagReader
	overrides       store.OverrideReader
	cache           cache.Cache
	contextResolver gate.ContextResolver
	environment     gate.Environment
	recorder        audit.Recorder
	hooks           []gate.EvalHook
	storeTimeout    time.Duration
	now             func() time.Time
}

// Option customizes a Gate.
type Option func(*Gate)

// WithFlagStore sets the flag definition reader.
func WithFlagStore(flags store.FlagReader) Option {
	return func(g *Gate) {
		if g == nil {
			return
		}
		g.flags = flags
	}
}

// WithOverrideStore sets the override reader.
func WithOverrideStore(overrides store.OverrideReader) Option {
	return func(g *Gate) {
		if g == nil {
			return
		}
		g.overrides = overrides
	}
}

// WithCache sets the flag definition cache.
func WithCache(c cache.Cache) Option {
	return func(g *Gate) {
		if g == nil {
			return
		}
		g.cache = c
	}
}

// WithContextResolver overrides evaluation context derivation.
func WithContextResolver(resolver gate.ContextResolver) Option {
	return func(g *Gate) {
		if g == nil {
			return
		}
		g.contextResolver = resolver
	}
}

// WithEnvironment stamps the deployment environment onto every evaluation
// context that does not carry one. Source this from configuration, never from
// request input.
func WithEnvironment(env gate.Environment) Option {
	return func(g *Gate) {
		if g == nil {
			return
		}
		g.environment = env
	}
}

// WithAudit sets the audit recorder.
func WithAudit(recorder audit.Recorder) Option {
	return func(g *Gate) {
		if g == nil || recorder == nil {
			return
		}
		g.recorder = recorder
	}
}

// WithHook registers an evaluation hook.
func WithHook(hook gate.EvalHook) Option {
	return func(g *Gate) {
		if g == nil || hook == nil {
			return
		}
		g.hooks = append(g.hooks, hook)
	}
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		if g == nil || timeout <= 0 {
			return
		}
		g.storeTimeout = timeout
	}
}

// WithNowFunc overrides the clock used for override expiry, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(g *Gate) {
		if g == nil || now == nil {
			return
		}
		g.now = now
	}
}

// New constructs a Gate with the provided options.
func New(opts ...Option) *Gate {
	g := &Gate{
		cache:        cache.NoopCache{},
		recorder:     audit.NoopRecorder{},
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.cache == nil {
		g.cache = cache.NoopCache{}
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Enabled implements gate.FlagGate.
func (g *Gate) Enabled(ctx context.Context, key string, opts ...gate.EvalOption) (bool, error) {
	value, _, err := g.resolve(ctx, key, opts...)
	return value, err
}

// EvaluateWithTrace implements gate.TraceableFlagGate.
func (g *Gate) EvaluateWithTrace(ctx context.Context, key string, opts ...gate.EvalOption) (bool, gate.EvalTrace, error) {
	return g.resolve(ctx, key, opts...)
}

func (g *Gate) resolve(ctx context.Context, key string, opts ...gate.EvalOption) (bool, gate.EvalTrace, error) {
	normalized := gate.NormalizeKey(key)
	trace := gate.EvalTrace{
		Key:           key,
		NormalizedKey: normalized,
	}
	if normalized == "" {
		trace.Reason = gate.ReasonInvalidKey
		err := gerrors.WrapSentinel(gerrors.ErrInvalidKey, "", map[string]any{
			gerrors.MetaFlagKey:   key,
			gerrors.MetaOperation: "evaluate",
		})
		g.finish(ctx, &trace, err)
		return false, trace, err
	}

	evalCtx := g.resolveContext(ctx, opts...)
	trace.Context = evalCtx

	flag, found, err := g.lookupFlag(ctx, normalized)
	if err != nil {
		trace.Reason = gate.ReasonStoreError
		classified := gerrors.WrapExternal(err, gerrors.TextCodeStoreReadFailed, "flag store read failed", map[string]any{
			gerrors.MetaFlagKey:           key,
			gerrors.MetaFlagKeyNormalized: normalized,
			gerrors.MetaStore:             "flag",
		})
		g.finish(ctx, &trace, classified)
		return false, trace, classified
	}
	if !found {
		trace.Reason = gate.ReasonFlagNotFound
		g.finish(ctx, &trace, nil)
		return false, trace, nil
	}
	trace.FlagStatus = flag.Status
	if !flag.Active() {
		trace.Reason = gate.ReasonFlagInactive
		g.finish(ctx, &trace, nil)
		return false, trace, nil
	}

	if flag.SectorBlocked(evalCtx.Sector) {
		trace.Reason = gate.ReasonSectorBlocked
		g.finish(ctx, &trace, nil)
		return false, trace, nil
	}
	if !flag.SectorAllowed(evalCtx.Sector) {
		trace.Reason = gate.ReasonSectorNotAllowed
		g.finish(ctx, &trace, nil)
		return false, trace, nil
	}

	if g.overrides != nil && !evalCtx.Empty() {
		override, ok, err := g.lookupOverride(ctx, normalized, evalCtx)
		if err != nil {
			trace.Override.Error = err
			trace.Reason = gate.ReasonStoreError
			classified := gerrors.WrapExternal(err, gerrors.TextCodeStoreReadFailed, "override store read failed", map[string]any{
				gerrors.MetaFlagKey:           key,
				gerrors.MetaFlagKeyNormalized: normalized,
				gerrors.MetaStore:             "override",
			})
			g.finish(ctx, &trace, classified)
			return false, trace, classified
		}
		if ok {
			if override.Expired(g.now()) {
				trace.Override.Found = true
				trace.Override.Level = override.Level
				trace.Override.Expired = true
			} else {
				value := override.Enabled
				trace.Override = gate.OverrideTrace{
					Found: true,
					Level: override.Level,
					Value: &value,
				}
				trace.Value = value
				trace.Reason = gate.ReasonOverride
				g.finish(ctx, &trace, nil)
				return value, trace, nil
			}
		}
	}

	if flag.Scope == gate.FlagScopeGlobal || flag.Scope == "" {
		trace.Value = flag.EnabledDefault
		trace.Reason = gate.ReasonGlobalDefault
		g.finish(ctx, &trace, nil)
		return flag.EnabledDefault, trace, nil
	}

	entity := rollout.Entity(flag.Scope, evalCtx)
	value := rollout.Enabled(normalized, entity, flag.RolloutPercentage)
	trace.Rollout = gate.RolloutTrace{
		Computed:   entity != "",
		EntityID:   entity,
		Bucket:     rollout.Bucket(normalized, entity),
		Percentage: flag.RolloutPercentage,
	}
	trace.Value = value
	trace.Reason = gate.ReasonRollout
	g.finish(ctx, &trace, nil)
	return value, trace, nil
}

func (g *Gate) resolveContext(ctx context.Context, opts ...gate.EvalOption) gate.EvalContext {
	req := gate.EvalRequest{}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	var evalCtx gate.EvalContext
	switch {
	case req.Context != nil:
		evalCtx = *req.Context
	case g.contextResolver != nil:
		resolved, err := g.contextResolver.Resolve(ctx)
		if err != nil {
			// A failed context resolution degrades to an anonymous context;
			// the evaluation itself still completes fail-closed.
			resolved = gate.EvalContext{}
		}
		evalCtx = resolved
	default:
		evalCtx = scope.FromContext(ctx)
	}
	if evalCtx.Environment == "" {
		evalCtx.Environment = g.environment
	}
	return evalCtx
}

// lookupFlag reads through the definition cache. Cache entries include
// negative lookups so a hammered missing key does not hammer the store.
func (g *Gate) lookupFlag(ctx context.Context, key string) (gate.FeatureFlag, bool, error) {
	if entry, ok := g.cache.Get(ctx, key); ok {
		return entry.Flag, entry.Found, nil
	}
	if g.flags == nil {
		return gate.FeatureFlag{}, false, gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "", map[string]any{
			gerrors.MetaFlagKeyNormalized: key,
		})
	}
	loadCtx, cancel := g.boundStoreCall(ctx)
	defer cancel()
	flag, found, err := g.flags.GetFlag(loadCtx, key)
	if err != nil {
		return gate.FeatureFlag{}, false, err
	}
	g.cache.Set(ctx, key, cache.Entry{Flag: flag, Found: found})
	return flag, found, nil
}

func (g *Gate) lookupOverride(ctx context.Context, key string, evalCtx gate.EvalContext) (gate.Override, bool, error) {
	loadCtx, cancel := g.boundStoreCall(ctx)
	defer cancel()
	return g.overrides.GetOverride(loadCtx, key, evalCtx.OrgID, evalCtx.UserID)
}

func (g *Gate) boundStoreCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.storeTimeout)
}

func (g *Gate) finish(ctx context.Context, trace *gate.EvalTrace, err error) {
	g.emit(ctx, *trace, err)
	g.record(ctx, *trace)
}

func (g *Gate) emit(ctx context.Context, trace gate.EvalTrace, err error) {
	if len(g.hooks) == 0 {
		return
	}
	event := gate.EvalEvent{
		Key:           trace.Key,
		NormalizedKey: trace.NormalizedKey,
		Context:       trace.Context,
		Value:         trace.Value,
		Reason:        trace.Reason,
		Error:         err,
		Trace:         trace,
	}
	for _, hook := range g.hooks {
		if hook == nil {
			continue
		}
		hook.OnEvaluate(ctx, event)
	}
}

func (g *Gate) record(ctx context.Context, trace gate.EvalTrace) {
	if g.recorder == nil {
		return
	}
	decision := gate.Deny(trace.Reason)
	if trace.Value {
		decision = gate.Allow(trace.Reason)
	}
	g.recorder.Record(ctx, audit.Stamp(audit.Event{
		Actor:    gate.ActorRef{ID: trace.Context.UserID, Name: string(trace.Context.Role)},
		Action:   audit.ActionEvaluateFlag,
		Target:   trace.NormalizedKey,
		Decision: decision,
		Context: map[string]any{
			"org_id":      trace.Context.OrgID,
			"sector":      trace.Context.Sector,
			"environment": string(trace.Context.Environment),
		},
	}))
}

var _ gate.FlagGate = (*Gate)(nil)
var _ gate.TraceableFlagGate = (*Gate)(nil)
