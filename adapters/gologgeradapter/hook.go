// Package gologgeradapter logs evaluation, mutation, and audit events using
// go-logger.
package gologgeradapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-accessgate/activity"
	"github.com/goliatone/go-accessgate/audit"
	"github.com/goliatone/go-accessgate/gate"
)

// Hook logs evaluation, update, and audit events using go-logger.
type Hook struct {
	logger          glog.Logger
	evaluateLevel   string
	updateLevel     string
	auditLevel      string
	denyLevel       string
	evaluateMessage string
	updateMessage   string
	auditMessage    string
}

// Option customizes the logger hook.
type Option func(*Hook)

// New builds a logging hook for evaluation, update, and audit events.
func New(logger glog.Logger, opts ...Option) *Hook {
	hook := &Hook{
		logger:          logger,
		evaluateLevel:   "debug",
		updateLevel:     "info",
		auditLevel:      "info",
		denyLevel:       "warn",
		evaluateMessage: "accessgate.evaluate",
		updateMessage:   "accessgate.update",
		auditMessage:    "accessgate.audit",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hook)
		}
	}
	return hook
}

// WithEvaluateLevel sets the log level for evaluation events.
func WithEvaluateLevel(level string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.evaluateLevel = strings.ToLower(strings.TrimSpace(level))
	}
}

// WithUpdateLevel sets the log level for mutation events.
func WithUpdateLevel(level string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.updateLevel = strings.ToLower(strings.TrimSpace(level))
	}
}

// WithAuditLevel sets the log level for allowed audit events. Denials log at
// the deny level regardless.
func WithAuditLevel(level string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.auditLevel = strings.ToLower(strings.TrimSpace(level))
	}
}

// WithDenyLevel sets the log level for denied audit events.
func WithDenyLevel(level string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.denyLevel = strings.ToLower(strings.TrimSpace(level))
	}
}

// WithEvaluateMessage overrides the evaluation log message.
func WithEvaluateMessage(message string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.evaluateMessage = message
	}
}

// WithUpdateMessage overrides the mutation log message.
func WithUpdateMessage(message string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.updateMessage = message
	}
}

// WithAuditMessage overrides the audit log message.
func WithAuditMessage(message string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.auditMessage = message
	}
}

// OnEvaluate implements gate.EvalHook.
func (h *Hook) OnEvaluate(ctx context.Context, event gate.EvalEvent) {
	if h == nil || h.logger == nil {
		return
	}
	fields := map[string]any{
		"flag_key":       event.Key,
		"flag_key_norm":  event.NormalizedKey,
		"flag_value":     event.Value,
		"flag_reason":    string(event.Reason),
		"flag_cache_hit": event.Trace.CacheHit,
	}
	if event.Error != nil {
		fields["flag_error"] = event.Error.Error()
	}
	for key, value := range contextFields(event.Context) {
		fields[key] = value
	}
	h.log(ctx, h.evaluateLevel, h.evaluateMessage, fields)
}

// OnUpdate implements activity.Hook.
func (h *Hook) OnUpdate(ctx context.Context, event activity.UpdateEvent) {
	if h == nil || h.logger == nil {
		return
	}
	fields := map[string]any{
		"flag_key":   event.FlagKey,
		"action":     string(event.Action),
		"subject":    event.Subject,
		"actor_id":   event.Actor.ID,
		"actor_type": event.Actor.Type,
		"actor_name": event.Actor.Name,
	}
	if event.Level != "" {
		fields["override_level"] = string(event.Level)
	}
	if event.Enabled != nil {
		fields["enabled"] = *event.Enabled
	}
	if event.Role != "" {
		fields["role"] = string(event.Role)
	}
	h.log(ctx, h.updateLevel, h.updateMessage, fields)
}

// Record implements audit.Recorder. Denied decisions log at the deny level so
// refusals stand out in aggregate logs.
func (h *Hook) Record(ctx context.Context, event audit.Event) {
	if h == nil || h.logger == nil {
		return
	}
	fields := map[string]any{
		"action":   string(event.Action),
		"target":   event.Target,
		"allowed":  event.Decision.Allowed,
		"reason":   string(event.Decision.Reason),
		"actor_id": event.Actor.ID,
	}
	if !event.Timestamp.IsZero() {
		fields["at"] = event.Timestamp
	}
	for key, value := range event.Context {
		fields[key] = value
	}
	level := h.auditLevel
	if !event.Decision.Allowed {
		level = h.denyLevel
	}
	h.log(ctx, level, h.auditMessage, fields)
}

func (h *Hook) log(ctx context.Context, level string, message string, fields map[string]any) {
	logger := h.logger
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(glog.FieldsLogger); ok && len(fields) > 0 {
		logger = fieldsLogger.WithFields(fields)
	}
	switch level {
	case "trace":
		logger.Trace(message)
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	case "fatal":
		// Decision logging must never terminate the process.
		logger.Error(message)
	default:
		logger.Info(message)
	}
}

func contextFields(evalCtx gate.EvalContext) map[string]any {
	fields := map[string]any{
		"user_id": evalCtx.UserID,
		"org_id":  evalCtx.OrgID,
	}
	if evalCtx.Role != "" {
		fields["role"] = string(evalCtx.Role)
	}
	if evalCtx.Sector != "" {
		fields["sector"] = evalCtx.Sector
	}
	if evalCtx.Environment != "" {
		fields["environment"] = string(evalCtx.Environment)
	}
	return fields
}

var _ gate.EvalHook = (*Hook)(nil)
var _ activity.Hook = (*Hook)(nil)
var _ audit.Recorder = (*Hook)(nil)
