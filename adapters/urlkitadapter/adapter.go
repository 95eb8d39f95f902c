package urlkitadapter

import (
	"github.com/goliatone/go-urlkit"

	"github.com/goliatone/go-accessgate/gerrors"
	"github.com/goliatone/go-accessgate/urlbuilder"
)

// ErrResolverRequired indicates the urlkit resolver is missing.
var ErrResolverRequired = gerrors.ErrResolverRequired

// Adapter wraps a urlkit.Resolver to satisfy urlbuilder.Builder.
type Adapter struct {
	Resolver urlkit.Resolver
}

// New builds a new Adapter for the provided resolver.
func New(resolver urlkit.Resolver) Adapter {
	return Adapter{Resolver: resolver}
}

// Resolve implements urlbuilder.Builder.
func (a Adapter) Resolve(groupPath, route string, params map[string]any, query map[string]string) (string, error) {
	if a.Resolver == nil {
		return "", gerrors.WrapSentinel(gerrors.ErrResolverRequired, "urlkitadapter: resolver is required", map[string]any{
			gerrors.MetaAdapter:   "urlkit",
			gerrors.MetaOperation: "resolve",
		})
	}
	url, err := a.Resolver.Resolve(groupPath, route, params, query)
	if err != nil {
		return "", gerrors.WrapExternal(err, gerrors.TextCodeAdapterFailed, "urlkitadapter: resolve failed", map[string]any{
			gerrors.MetaAdapter:   "urlkit",
			gerrors.MetaOperation: "resolve",
		})
	}
	return url, nil
}

var _ urlbuilder.Builder = Adapter{}
