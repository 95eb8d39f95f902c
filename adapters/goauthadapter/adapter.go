// Package goauthadapter derives evaluation contexts and actor references from
// go-auth actor contexts. Roles cross this boundary through the role parser so
// a foreign or malformed role string becomes the unknown role, never a panic.
package goauthadapter

import (
	"context"

	"github.com/goliatone/go-auth"

	"github.com/goliatone/go-accessgate/gate"
)

// ActorExtractor extracts an auth.ActorContext from context.
type ActorExtractor func(context.Context) (*auth.ActorContext, bool)

// SectorExtractor derives the market sector for an actor, when one applies.
type SectorExtractor func(context.Context, *auth.ActorContext) string

// Option customizes the context resolver behavior.
type Option func(*ContextResolver)

// ContextResolver derives evaluation contexts from go-auth actor context.
type ContextResolver struct {
	extractor ActorExtractor
	sector    SectorExtractor
}

// NewContextResolver builds a resolver using go-auth's actor context
// extractor.
func NewContextResolver(opts ...Option) *ContextResolver {
	resolver := &ContextResolver{
		extractor: auth.ActorFromContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	if resolver.extractor == nil {
		resolver.extractor = auth.ActorFromContext
	}
	return resolver
}

// WithActorExtractor overrides the actor context extractor.
func WithActorExtractor(extractor ActorExtractor) Option {
	return func(resolver *ContextResolver) {
		if resolver == nil {
			return
		}
		resolver.extractor = extractor
	}
}

// WithSectorExtractor sets a sector source for sector-gated flags.
func WithSectorExtractor(extractor SectorExtractor) Option {
	return func(resolver *ContextResolver) {
		if resolver == nil {
			return
		}
		resolver.sector = extractor
	}
}

// Resolve implements gate.ContextResolver.
func (r *ContextResolver) Resolve(ctx context.Context) (gate.EvalContext, error) {
	if r == nil || r.extractor == nil {
		return gate.EvalContext{}, nil
	}
	actor, ok := r.extractor(ctx)
	if !ok || actor == nil {
		return gate.EvalContext{}, nil
	}
	evalCtx := EvalContextFromActor(actor)
	if r.sector != nil {
		evalCtx.Sector = r.sector(ctx, actor)
	}
	return evalCtx, nil
}

// EvalContextFromActor builds an EvalContext from an auth.ActorContext. The
// environment stays unset; it comes from deployment configuration, never from
// a caller-supplied token.
func EvalContextFromActor(actor *auth.ActorContext) gate.EvalContext {
	if actor == nil {
		return gate.EvalContext{}
	}
	userID := actor.ActorID
	if userID == "" {
		userID = actor.Subject
	}
	role, _ := gate.ParseRole(actor.Role)
	return gate.EvalContext{
		UserID: userID,
		OrgID:  actor.OrganizationID,
		Role:   role,
	}
}

// ActorRefFromActor builds an ActorRef from an auth.ActorContext.
func ActorRefFromActor(actor *auth.ActorContext) gate.ActorRef {
	if actor == nil {
		return gate.ActorRef{}
	}
	id := actor.ActorID
	if id == "" {
		id = actor.Subject
	}
	return gate.ActorRef{
		ID:   id,
		Type: actor.Subject,
		Name: actor.Role,
	}
}

// ActorRefFromContext extracts an ActorRef from context.
func ActorRefFromContext(ctx context.Context) (gate.ActorRef, bool) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor == nil {
		return gate.ActorRef{}, false
	}
	return ActorRefFromActor(actor), true
}

// RoleFromContext extracts and normalizes the caller role from context. The
// second return reports whether an actor was present at all; an unparseable
// role still reports true with the unknown role.
func RoleFromContext(ctx context.Context) (gate.Role, bool) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor == nil {
		return gate.RoleUnknown, false
	}
	role, _ := gate.ParseRole(actor.Role)
	return role, true
}

var _ gate.ContextResolver = (*ContextResolver)(nil)
