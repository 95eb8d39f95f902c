// Package catalog exposes flag definitions for admin UIs and documentation.
package catalog

import (
	"sort"
	"strings"

	"github.com/goliatone/go-accessgate/gate"
)

// FlagDefinition describes a feature flag for listing and admin screens.
type FlagDefinition struct {
	Key         string
	Description string
	// RequiredRole is the minimum role allowed to toggle the flag from an
	// admin surface. Zero value means admin.
	RequiredRole gate.Role
	// Tags group related flags in admin listings.
	Tags []string
}

// Catalog exposes flag definitions by key.
type Catalog interface {
	Get(key string) (FlagDefinition, bool)
	List() []FlagDefinition
}

// StaticCatalog provides an in-memory catalog.
type StaticCatalog struct {
	defs map[string]FlagDefinition
}

// NewStatic builds an in-memory catalog from provided definitions.
func NewStatic(defs map[string]FlagDefinition) *StaticCatalog {
	out := make(map[string]FlagDefinition, len(defs))
	for key, def := range defs {
		normalized := gate.NormalizeKey(key)
		if normalized == "" {
			continue
		}
		def.Key = normalized
		def.Description = strings.TrimSpace(def.Description)
		if !def.RequiredRole.Valid() {
			def.RequiredRole = gate.RoleAdmin
		}
		out[normalized] = def
	}
	return &StaticCatalog{defs: out}
}

// Get implements Catalog.
func (c *StaticCatalog) Get(key string) (FlagDefinition, bool) {
	if c == nil || len(c.defs) == 0 {
		return FlagDefinition{}, false
	}
	normalized := gate.NormalizeKey(key)
	if normalized == "" {
		return FlagDefinition{}, false
	}
	def, ok := c.defs[normalized]
	return def, ok
}

// List implements Catalog. Definitions are ordered by key.
func (c *StaticCatalog) List() []FlagDefinition {
	if c == nil || len(c.defs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defs))
	for key := range c.defs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]FlagDefinition, 0, len(keys))
	for _, key := range keys {
		out = append(out, c.defs[key])
	}
	return out
}

var _ Catalog = (*StaticCatalog)(nil)
