package gate

import "strings"

// Environment is the deployment tier an operation executes in. It is sourced
// from deployment configuration, never from request input.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentPreview     Environment = "preview"
	EnvironmentDevelopment Environment = "development"
)

var environments = map[Environment]struct{}{
	EnvironmentProduction:  {},
	EnvironmentStaging:     {},
	EnvironmentPreview:     {},
	EnvironmentDevelopment: {},
}

// ParseEnvironment normalizes an environment name. Unrecognized values
// resolve to production so that gating fails closed on misconfiguration.
func ParseEnvironment(value string) (Environment, bool) {
	normalized := Environment(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := environments[normalized]; !ok {
		return EnvironmentProduction, false
	}
	return normalized, true
}

// Valid reports whether the environment is a known classification.
func (e Environment) Valid() bool {
	_, ok := environments[e]
	return ok
}

// OperationClass classifies an operation for environment gating.
type OperationClass string

const (
	// OperationAdministrativeDestructive covers schema changes, bulk data
	// fixes, and emergency endpoints. Requires admin rank everywhere and an
	// allow-list entry in production.
	OperationAdministrativeDestructive OperationClass = "administrative_destructive"
	// OperationAdministrative covers non-destructive admin actions.
	OperationAdministrative OperationClass = "administrative"
	// OperationReadOnly covers diagnostics with no side effects.
	OperationReadOnly OperationClass = "read_only"
)

// Operation identifies a gated operation for the environment gate.
type Operation struct {
	Class OperationClass
	// Key names the specific operation for allow-listing and rate limiting.
	// When empty the class name is used.
	Key string
}

// RateKey returns the identity used for allow-list and rate-window lookups.
func (o Operation) RateKey() string {
	if o.Key != "" {
		return o.Key
	}
	return string(o.Class)
}
