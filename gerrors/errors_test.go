package gerrors

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestWrapSentinelPreservesIsAndMetadata(t *testing.T) {
	err := WrapSentinel(ErrInvalidKey, "", map[string]any{
		MetaFlagKey: "admin.feature_flags",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	rich, ok := As(err)
	if !ok {
		t.Fatalf("expected rich error")
	}
	if rich.Category != goerrors.CategoryBadInput {
		t.Fatalf("unexpected category: %s", rich.Category)
	}
	if rich.TextCode != TextCodeInvalidKey {
		t.Fatalf("unexpected text code: %s", rich.TextCode)
	}
	if rich.Metadata == nil || rich.Metadata[MetaFlagKey] != "admin.feature_flags" {
		t.Fatalf("expected metadata to include flag key")
	}
}

func TestIsRetryableOnlyForExternal(t *testing.T) {
	external := WrapExternal(errors.New("connection refused"), TextCodeStoreReadFailed, "flag store read failed", nil)
	if !IsRetryable(external) {
		t.Fatalf("external errors should be retryable")
	}
	denial := NewRateLimited("budget exhausted", nil)
	if IsRetryable(denial) {
		t.Fatalf("rate limit denials are not retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not classified")
	}
}
