package gerrors

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	MetaFlagKey           = "flag_key"
	MetaFlagKeyNormalized = "flag_key_norm"
	MetaCallerRole        = "caller_role"
	MetaRequiredRole      = "required_role"
	MetaOrgID             = "org_id"
	MetaUserID            = "user_id"
	MetaEnvironment       = "environment"
	MetaOperation         = "operation"
	MetaOperationClass    = "operation_class"
	MetaStore             = "store"
	MetaAdapter           = "adapter"
	MetaActor             = "actor"
)

const (
	TextCodeInvalidKey              = "FLAG_KEY_REQUIRED"
	TextCodeRoleMalformed           = "ROLE_MALFORMED"
	TextCodeFlagStoreRequired       = "FLAG_STORE_REQUIRED"
	TextCodeRoleStoreRequired       = "ROLE_STORE_REQUIRED"
	TextCodeAuthorizerRequired      = "AUTHORIZER_REQUIRED"
	TextCodeStoreReadFailed         = "STORE_READ_FAILED"
	TextCodeStoreWriteFailed        = "STORE_WRITE_FAILED"
	TextCodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	TextCodeOverrideOrphaned        = "OVERRIDE_ORPHANED"
	TextCodeFlagReferenced          = "FLAG_REFERENCED"
	TextCodeRolloutOutOfRange       = "ROLLOUT_OUT_OF_RANGE"
	TextCodeAdapterFailed           = "ADAPTER_FAILED"
	TextCodeContextResolveFailed    = "CONTEXT_RESOLVE_FAILED"
	TextCodeMutationDenied          = "MUTATION_DENIED"
	TextCodeEnvironmentNotTrusted   = "ENVIRONMENT_NOT_TRUSTED"
	TextCodePreferencesStoreFailure = "PREFERENCES_STORE_FAILED"
	TextCodeResolverRequired        = "RESOLVER_REQUIRED"
)

var (
	// ErrInvalidKey signals an empty or invalid flag key.
	ErrInvalidKey = newSentinel(goerrors.CategoryBadInput, goerrors.CodeBadRequest, TextCodeInvalidKey, "flag key required")
	// ErrFlagStoreRequired signals a missing flag store.
	ErrFlagStoreRequired = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeFlagStoreRequired, "flag store is required")
	// ErrRoleStoreRequired signals a missing role store.
	ErrRoleStoreRequired = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeRoleStoreRequired, "role store is required")
	// ErrAuthorizerRequired signals a missing authorizer.
	ErrAuthorizerRequired = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeAuthorizerRequired, "authorizer is required")
	// ErrFlagReferenced signals an attempt to delete a flag that overrides
	// still reference.
	ErrFlagReferenced = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeFlagReferenced, "flag is referenced by overrides")
	// ErrResolverRequired signals a missing URL resolver.
	ErrResolverRequired = newSentinel(goerrors.CategoryOperation, goerrors.CodeInternal, TextCodeResolverRequired, "resolver is required")
)

func newSentinel(category goerrors.Category, code int, textCode, message string) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if code != 0 {
		err.WithCode(code)
	}
	return err
}

// IsSentinel reports whether err is one of the package sentinels.
func IsSentinel(err error) bool {
	return err == ErrInvalidKey ||
		err == ErrFlagStoreRequired ||
		err == ErrRoleStoreRequired ||
		err == ErrAuthorizerRequired ||
		err == ErrFlagReferenced ||
		err == ErrResolverRequired
}

// WrapSentinel attaches metadata to a sentinel without mutating it.
func WrapSentinel(sentinel *goerrors.Error, message string, meta map[string]any) *goerrors.Error {
	if sentinel == nil {
		return nil
	}
	if message == "" {
		message = sentinel.Message
	}
	err := goerrors.New(message, sentinel.Category).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code).
		WithSeverity(sentinel.Severity)
	err.Source = sentinel
	if meta != nil {
		err.WithMetadata(meta)
	}
	return err
}

// Wrap converts any error into a rich error with the given classification.
func Wrap(err error, category goerrors.Category, textCode, message string, meta map[string]any) *goerrors.Error {
	if err == nil {
		return nil
	}
	if IsSentinel(err) {
		if sentinel, ok := err.(*goerrors.Error); ok {
			return WrapSentinel(sentinel, "", meta)
		}
	}
	if rich, ok := err.(*goerrors.Error); ok {
		clone := rich.Clone()
		if clone.TextCode == "" && textCode != "" {
			clone.TextCode = textCode
		}
		if clone.Message == "" && message != "" {
			clone.Message = message
		}
		if meta != nil {
			clone.WithMetadata(meta)
		}
		return clone
	}
	if message == "" {
		message = err.Error()
	}
	wrapped := goerrors.New(message, category).WithTextCode(textCode)
	wrapped.Source = err
	if meta != nil {
		wrapped.WithMetadata(meta)
	}
	return wrapped
}

// New builds a rich error with the given classification.
func New(category goerrors.Category, textCode, message string, meta map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if meta != nil {
		err.WithMetadata(meta)
	}
	return err
}

// NewBadInput builds a MalformedInput classification: the input was resolved
// to a fail-closed decision, the error exists for diagnostics only.
func NewBadInput(textCode, message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryBadInput, textCode, message, meta)
}

// NewIntegrity builds a data-integrity classification
// (ConfigurationInconsistency in the error taxonomy).
func NewIntegrity(textCode, message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryOperation, textCode, message, meta)
}

// WrapExternal classifies a collaborator failure (StoreUnavailable). These
// should page operators, not just audit-log silently.
func WrapExternal(err error, textCode, message string, meta map[string]any) *goerrors.Error {
	return Wrap(err, goerrors.CategoryExternal, textCode, message, meta)
}

// NewRateLimited builds a RateLimitExceeded classification.
func NewRateLimited(message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryOperation, TextCodeRateLimitExceeded, message, meta)
}

// NewOperation builds an internal operation classification.
func NewOperation(textCode, message string, meta map[string]any) *goerrors.Error {
	return New(goerrors.CategoryOperation, textCode, message, meta)
}

// WrapOperation classifies an internal operation failure.
func WrapOperation(err error, textCode, message string, meta map[string]any) *goerrors.Error {
	return Wrap(err, goerrors.CategoryOperation, textCode, message, meta)
}

// As extracts a rich error from err when possible.
func As(err error) (*goerrors.Error, bool) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich, true
	}
	return nil, false
}

// IsRetryable reports whether the error is an external collaborator failure
// worth retrying (a degraded store, not a security denial).
func IsRetryable(err error) bool {
	rich, ok := As(err)
	if !ok {
		return false
	}
	return rich.Category == goerrors.CategoryExternal
}
