// Package urlbuilder abstracts URL resolution for admin screens and audit
// links.
package urlbuilder

// Builder resolves group/route pairs into URLs.
type Builder interface {
	Resolve(groupPath, route string, params map[string]any, query map[string]string) (string, error)
}
