package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypesAreDistinguishable(t *testing.T) {
	var validation *ValidationError
	var conflict *ConflictError

	err := NewValidationError("qty %d is negative", -1)
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if errors.As(err, &conflict) {
		t.Fatalf("ValidationError must not match ConflictError")
	}
	if validation.Msg != "qty -1 is negative" {
		t.Fatalf("unexpected message: %s", validation.Msg)
	}
}

func TestVerificationErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &VerificationError{Provider: "kkiapay", TransactionId: "t-1", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected VerificationError to unwrap to its cause")
	}

	var unavailable *ProviderUnavailableError
	wrapped := NewProviderUnavailableError("fedapay", "http %d", 503)
	if !errors.As(wrapped, &unavailable) {
		t.Fatalf("expected ProviderUnavailableError, got %T", wrapped)
	}
	if unavailable.Provider != "fedapay" {
		t.Fatalf("unexpected provider: %s", unavailable.Provider)
	}
}
