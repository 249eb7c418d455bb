package payment

import (
	"testing"

	"github.com/blomoto/garage_backend/models"
)

// The canonical mapping is the main cross-provider bug surface: a missing
// case must land on unknown, never on succeeded. These tables cover every
// status value each provider is known to emit, plus garbage.

func TestMapPaygateStatus(t *testing.T) {
	cases := map[string]CanonicalStatus{
		"succeeded":               StatusSucceeded,
		"processing":              StatusPending,
		"requires_payment_method": StatusPending,
		"requires_confirmation":   StatusPending,
		"requires_action":         StatusPending,
		"requires_capture":        StatusPending,
		"canceled":                StatusFailed,
		"payment_failed":          StatusFailed,
		"":                        StatusUnknown,
		"SUCCEEDED":               StatusUnknown, // this provider is strictly lowercase
		"paid":                    StatusUnknown,
		"whatever":                StatusUnknown,
	}
	for status, want := range cases {
		if got := mapPaygateStatus(status); got != want {
			t.Fatalf("mapPaygateStatus(%q) = %s, want %s", status, got, want)
		}
	}
}

func TestMapKkiapayStatus(t *testing.T) {
	cases := map[string]CanonicalStatus{
		"SUCCESS":    StatusSucceeded,
		"success":    StatusSucceeded,
		"SUCCEEDED":  StatusSucceeded,
		"succeeded":  StatusSucceeded,
		"PENDING":    StatusPending,
		"pending":    StatusPending,
		"PROCESSING": StatusPending,
		"INITIATED":  StatusPending,
		"FAILED":     StatusFailed,
		"failed":     StatusFailed,
		"DECLINED":   StatusFailed,
		"declined":   StatusFailed,
		"CANCELED":   StatusFailed,
		"cancelled":  StatusFailed,
		"REFUSED":    StatusFailed,
		"":           StatusUnknown,
		"approved":   StatusUnknown, // another provider's vocabulary
	}
	for status, want := range cases {
		if got := mapKkiapayStatus(status); got != want {
			t.Fatalf("mapKkiapayStatus(%q) = %s, want %s", status, got, want)
		}
	}
}

func TestMapFedapayStatus(t *testing.T) {
	cases := map[string]CanonicalStatus{
		"approved":    StatusSucceeded,
		"APPROVED":    StatusSucceeded,
		"completed":   StatusSucceeded,
		"COMPLETED":   StatusSucceeded,
		"paid":        StatusSucceeded,
		"PAID":        StatusSucceeded,
		"transferred": StatusSucceeded,
		"pending":     StatusPending,
		"created":     StatusPending,
		"processing":  StatusPending,
		"declined":    StatusFailed,
		"canceled":    StatusFailed,
		"cancelled":   StatusFailed,
		"refused":     StatusFailed,
		"failed":      StatusFailed,
		"expired":     StatusFailed,
		"":            StatusUnknown,
		"SUCCESS":     StatusUnknown,
	}
	for status, want := range cases {
		if got := mapFedapayStatus(status); got != want {
			t.Fatalf("mapFedapayStatus(%q) = %s, want %s", status, got, want)
		}
	}
}

func TestParseCorrelationKey(t *testing.T) {
	key, ok := ParseCorrelationKey(map[string]string{
		"userId":        "7",
		"referenceId":   "42",
		"referenceType": "invoice",
	})
	if !ok {
		t.Fatalf("expected key to parse")
	}
	if key.UserId != 7 || key.ReferenceId != 42 || key.ReferenceType != models.ReferenceTypeInvoice {
		t.Fatalf("unexpected key: %+v", key)
	}

	// userId is optional.
	key, ok = ParseCorrelationKey(map[string]string{
		"referenceId":   "3",
		"referenceType": "appointment",
	})
	if !ok || key.UserId != 0 || key.ReferenceType != models.ReferenceTypeAppointment {
		t.Fatalf("expected key without userId to parse, got ok=%v key=%+v", ok, key)
	}

	bad := []map[string]string{
		nil,
		{},
		{"referenceId": "42"},
		{"referenceType": "invoice"},
		{"referenceId": "abc", "referenceType": "invoice"},
		{"referenceId": "0", "referenceType": "invoice"},
		{"referenceId": "-5", "referenceType": "invoice"},
		{"referenceId": "42", "referenceType": "subscription"},
	}
	for i, meta := range bad {
		if _, ok := ParseCorrelationKey(meta); ok {
			t.Fatalf("case %d: expected parse to fail for %v", i, meta)
		}
	}
}

func TestCorrelationKeyRoundTrip(t *testing.T) {
	original := CorrelationKey{UserId: 12, ReferenceId: 34, ReferenceType: models.ReferenceTypeInvoice}
	parsed, ok := ParseCorrelationKey(original.toMetadata())
	if !ok {
		t.Fatalf("round trip failed to parse")
	}
	if parsed != original {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, original)
	}
}

func TestNormalizeMetadata(t *testing.T) {
	meta := NormalizeMetadata(map[string]interface{}{
		"referenceId":   float64(42),
		"referenceType": "invoice",
		"userId":        "7",
	})
	key, ok := ParseCorrelationKey(meta)
	if !ok {
		t.Fatalf("expected numeric JSON values to normalize into a parsable key")
	}
	if key.ReferenceId != 42 || key.UserId != 7 {
		t.Fatalf("unexpected key: %+v", key)
	}
	if NormalizeMetadata(nil) != nil {
		t.Fatalf("nil metadata must stay nil")
	}
}
