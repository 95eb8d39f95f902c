// Package templates exposes pongo2 helpers so server-rendered views can gate
// markup on flags, roles, and operations without reaching into the decision
// packages directly.
package templates

import (
	"context"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-accessgate/gate"
	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/logger"
)

const (
	TemplateContextKey  = "access_ctx"
	TemplateEvalKey     = "access_eval"
	TemplateSnapshotKey = "access_snapshot"
)

// HelperConfig configures template helpers.
type HelperConfig struct {
	ContextKey         string
	EvalKey            string
	SnapshotKey        string
	Environment        gate.Environment
	EnableErrorLogging bool
	Logger             logger.Logger
}

// HelperOption configures template helpers.
type HelperOption func(*HelperConfig)

// DefaultHelperConfig returns the default helper configuration.
func DefaultHelperConfig() HelperConfig {
	return HelperConfig{
		ContextKey:  TemplateContextKey,
		EvalKey:     TemplateEvalKey,
		SnapshotKey: TemplateSnapshotKey,
	}
}

// WithContextKey overrides the template context key name.
func WithContextKey(key string) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.ContextKey = strings.TrimSpace(key)
	}
}

// WithEvalKey overrides the template evaluation context key name.
func WithEvalKey(key string) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.EvalKey = strings.TrimSpace(key)
	}
}

// WithSnapshotKey overrides the template snapshot key name.
func WithSnapshotKey(key string) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.SnapshotKey = strings.TrimSpace(key)
	}
}

// WithEnvironment sets the deployment environment used by can_operate.
func WithEnvironment(env gate.Environment) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.Environment = env
	}
}

// WithErrorLogging toggles error logging for helper failures.
func WithErrorLogging(enabled bool) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.EnableErrorLogging = enabled
	}
}

// WithLogger injects a logger for helper error logging.
func WithLogger(lgr logger.Logger) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.Logger = lgr
	}
}

// Helpers returns a pongo2-compatible helper set. All helpers fail closed: a
// missing gate, a malformed key, or an evaluation failure renders as
// disabled, never as an exception inside a template.
func Helpers(flagGate gate.FlagGate, az gate.Authorizer, og gate.OperationGate, opts ...HelperOption) map[string]any {
	cfg := DefaultHelperConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.EnableErrorLogging && cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	helpers := &helperSet{
		flags:      flagGate,
		authorizer: az,
		operations: og,
		cfg:        cfg,
	}

	return map[string]any{
		"feature_enabled": helpers.featureEnabled,
		"feature_any":     helpers.featureAny,
		"feature_all":     helpers.featureAll,
		"feature_if":      helpers.featureIf,
		"has_role":        helpers.hasRole,
		"can_operate":     helpers.canOperate,
	}
}

type helperSet struct {
	flags      gate.FlagGate
	authorizer gate.Authorizer
	operations gate.OperationGate
	cfg        HelperConfig
}

func (h *helperSet) featureEnabled(execCtx *pongo2.ExecutionContext, key any) bool {
	normalized, ok := parseKey(key)
	if !ok {
		return false
	}
	value, err := h.resolveValue(execCtx, normalized)
	if err != nil {
		h.logHelperError("feature_enabled", err)
	}
	return value
}

func (h *helperSet) featureAny(execCtx *pongo2.ExecutionContext, keys ...any) bool {
	parsed := parseKeys(keys...)
	if len(parsed) == 0 {
		return false
	}
	for _, key := range parsed {
		value, _ := h.resolveValue(execCtx, key)
		if value {
			return true
		}
	}
	return false
}

func (h *helperSet) featureAll(execCtx *pongo2.ExecutionContext, keys ...any) bool {
	parsed := parseKeys(keys...)
	if len(parsed) == 0 {
		return false
	}
	for _, key := range parsed {
		value, _ := h.resolveValue(execCtx, key)
		if !value {
			return false
		}
	}
	return true
}

func (h *helperSet) featureIf(execCtx *pongo2.ExecutionContext, key any, whenTrue any, whenFalse ...any) any {
	var fallback any = ""
	if len(whenFalse) > 0 {
		fallback = whenFalse[0]
	}
	normalized, ok := parseKey(key)
	if !ok {
		return fallback
	}
	value, err := h.resolveValue(execCtx, normalized)
	if err != nil {
		h.logHelperError("feature_if", err)
	}
	if value {
		return whenTrue
	}
	return fallback
}

// hasRole compares the caller role from the template evaluation context
// against a required minimum role. An unparseable required role denies.
func (h *helperSet) hasRole(execCtx *pongo2.ExecutionContext, required any) bool {
	if h.authorizer == nil {
		return false
	}
	requiredRole, ok := parseRole(required)
	if !ok {
		return false
	}
	evalCtx := h.evalContext(execCtx)
	decision := h.authorizer.Authorize(h.context(execCtx), evalCtx.Role, requiredRole)
	return decision.Allowed
}

// canOperate checks an operation against the environment gate using the
// caller identity from the template evaluation context.
func (h *helperSet) canOperate(execCtx *pongo2.ExecutionContext, class any, key ...any) bool {
	if h.operations == nil {
		return false
	}
	rawClass := stringFromValue(class)
	if rawClass == "" {
		return false
	}
	operation := gate.Operation{Class: gate.OperationClass(strings.ToLower(strings.TrimSpace(rawClass)))}
	if len(key) > 0 {
		operation.Key = stringFromValue(key[0])
	}
	evalCtx := h.evalContext(execCtx)
	decision := h.operations.Permit(h.context(execCtx), gate.OperationRequest{
		Operation:   operation,
		Environment: h.cfg.Environment,
		CallerRole:  evalCtx.Role,
		Actor:       gate.ActorRef{ID: evalCtx.UserID},
	})
	return decision.Allowed
}

func (h *helperSet) resolveValue(execCtx *pongo2.ExecutionContext, key string) (bool, error) {
	if key == "" {
		return false, gerrors.WrapSentinel(gerrors.ErrInvalidKey, "flag key is required", map[string]any{
			gerrors.MetaFlagKey: key,
		})
	}
	if snapshot := h.snapshot(execCtx); snapshot != nil {
		if value, ok := snapshotValue(snapshot, key); ok {
			return value, nil
		}
	}
	if h.flags == nil {
		return false, gerrors.WrapSentinel(gerrors.ErrFlagStoreRequired, "flag gate is required", nil)
	}
	return h.flags.Enabled(h.context(execCtx), key, h.evalOptions(execCtx)...)
}

func (h *helperSet) evalOptions(execCtx *pongo2.ExecutionContext) []gate.EvalOption {
	evalCtx := h.evalContext(execCtx)
	if evalCtx.Empty() && evalCtx.Role == "" {
		return nil
	}
	return []gate.EvalOption{gate.WithEvalContext(evalCtx)}
}

func (h *helperSet) context(execCtx *pongo2.ExecutionContext) context.Context {
	data := templateData(execCtx)
	if data == nil {
		return context.Background()
	}
	key := h.cfg.ContextKey
	if key == "" {
		key = TemplateContextKey
	}
	raw, ok := data[key]
	if !ok || raw == nil {
		return context.Background()
	}
	return contextFromValue(raw)
}

func (h *helperSet) evalContext(execCtx *pongo2.ExecutionContext) gate.EvalContext {
	data := templateData(execCtx)
	if data == nil {
		return gate.EvalContext{}
	}
	key := h.cfg.EvalKey
	if key == "" {
		key = TemplateEvalKey
	}
	raw, ok := data[key]
	if !ok || raw == nil {
		return gate.EvalContext{}
	}
	evalCtx, _ := evalContextFromValue(raw)
	return evalCtx
}

func (h *helperSet) snapshot(execCtx *pongo2.ExecutionContext) any {
	data := templateData(execCtx)
	if data == nil {
		return nil
	}
	key := h.cfg.SnapshotKey
	if key == "" {
		key = TemplateSnapshotKey
	}
	raw, ok := data[key]
	if !ok {
		return nil
	}
	return raw
}

// SnapshotReader reports precomputed flag values by key.
type SnapshotReader interface {
	Enabled(key string) (bool, bool)
}

// Snapshot holds optional precomputed flag values, so a handler can evaluate
// once and render many helpers without touching the store per call.
type Snapshot struct {
	Values map[string]bool
}

// Enabled implements SnapshotReader.
func (s Snapshot) Enabled(key string) (bool, bool) {
	key = gate.NormalizeKey(key)
	if key == "" {
		return false, false
	}
	value, ok := s.Values[key]
	return value, ok
}

func snapshotValue(snapshot any, key string) (bool, bool) {
	if reader, ok := snapshot.(SnapshotReader); ok {
		return reader.Enabled(key)
	}
	switch typed := snapshot.(type) {
	case map[string]bool:
		value, ok := typed[key]
		return value, ok
	case map[string]any:
		if value, ok := typed[key]; ok {
			return boolFromValue(value)
		}
	}
	return false, false
}

func boolFromValue(value any) (bool, bool) {
	switch typed := value.(type) {
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

func parseKey(value any) (string, bool) {
	raw := unwrapValue(value)
	switch typed := raw.(type) {
	case string:
		normalized := gate.NormalizeKey(typed)
		return normalized, normalized != ""
	case fmt.Stringer:
		normalized := gate.NormalizeKey(typed.String())
		return normalized, normalized != ""
	default:
		return "", false
	}
}

func parseKeys(values ...any) []string {
	keys := make([]string, 0, len(values))
	for _, value := range values {
		for _, key := range flattenKeys(value) {
			if normalized, ok := parseKey(key); ok {
				keys = append(keys, normalized)
			}
		}
	}
	return keys
}

func flattenKeys(value any) []any {
	value = unwrapValue(value)
	switch typed := value.(type) {
	case []string:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return out
	case []any:
		return typed
	default:
		return []any{value}
	}
}

func parseRole(value any) (gate.Role, bool) {
	raw := unwrapValue(value)
	switch typed := raw.(type) {
	case gate.Role:
		return typed, typed.Valid()
	case string:
		role, ok := gate.ParseRole(typed)
		return role, ok
	case fmt.Stringer:
		role, ok := gate.ParseRole(typed.String())
		return role, ok
	default:
		return gate.RoleUnknown, false
	}
}

func stringFromValue(value any) string {
	raw := unwrapValue(value)
	switch typed := raw.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

func unwrapValue(value any) any {
	if value == nil {
		return nil
	}
	if pv, ok := value.(*pongo2.Value); ok && pv != nil {
		return pv.Interface()
	}
	return value
}

func contextFromValue(value any) context.Context {
	switch typed := value.(type) {
	case context.Context:
		return typed
	case interface{ Context() context.Context }:
		return typed.Context()
	default:
		return context.Background()
	}
}

func evalContextFromValue(value any) (gate.EvalContext, bool) {
	switch typed := value.(type) {
	case gate.EvalContext:
		return typed, true
	case *gate.EvalContext:
		if typed == nil {
			return gate.EvalContext{}, false
		}
		return *typed, true
	case map[string]any:
		return evalContextFromMap(typed)
	case map[string]string:
		raw := map[string]any{}
		for key, val := range typed {
			raw[key] = val
		}
		return evalContextFromMap(raw)
	default:
		return gate.EvalContext{}, false
	}
}

func evalContextFromMap(data map[string]any) (gate.EvalContext, bool) {
	if len(data) == 0 {
		return gate.EvalContext{}, false
	}
	evalCtx := gate.EvalContext{}
	if val, ok := data["user_id"].(string); ok {
		evalCtx.UserID = val
	}
	if val, ok := data["org_id"].(string); ok {
		evalCtx.OrgID = val
	}
	if val, ok := data["role"].(string); ok {
		evalCtx.Role, _ = gate.ParseRole(val)
	}
	if val, ok := data["sector"].(string); ok {
		evalCtx.Sector = val
	}
	if evalCtx == (gate.EvalContext{}) {
		return gate.EvalContext{}, false
	}
	return evalCtx, true
}

func templateData(execCtx *pongo2.ExecutionContext) map[string]any {
	if execCtx == nil || execCtx.Public == nil {
		return nil
	}
	data := make(map[string]any, len(execCtx.Public))
	for key, value := range execCtx.Public {
		data[key] = value
	}
	return data
}

func (h *helperSet) logHelperError(helper string, err error) {
	if h == nil || err == nil || !h.cfg.EnableErrorLogging || h.cfg.Logger == nil {
		return
	}
	args := []any{
		"helper", helper,
		"error", err,
	}
	if rich, ok := gerrors.As(err); ok {
		args = append(args,
			"category", rich.Category,
			"text_code", rich.TextCode,
		)
	}
	h.cfg.Logger.Error("accessgate.helper_error", args...)
}
