package workflow

import (
	"errors"
	"testing"

	"github.com/blomoto/garage_backend/payment"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the decision
// semantics between verification and application; the conditional-update
// idempotency itself lives in the models layer and needs MySQL to exercise.

func succeededTxn(meta map[string]string) *payment.Transaction {
	return &payment.Transaction{
		ExternalTransactionId: "txn-1",
		Status:                payment.StatusSucceeded,
		Amount:                decimal.NewFromInt(236),
		Currency:              "XOF",
		Metadata:              meta,
	}
}

func TestEvaluateVerification_VerificationFailure(t *testing.T) {
	outcome, _ := EvaluateVerification(nil, errors.New("provider timeout"), nil)
	if outcome != OutcomeVerificationFailed {
		t.Fatalf("expected verification_failed, got %s", outcome)
	}
	// A nil transaction without an error is equally unverifiable.
	outcome, _ = EvaluateVerification(nil, nil, nil)
	if outcome != OutcomeVerificationFailed {
		t.Fatalf("expected verification_failed for nil transaction, got %s", outcome)
	}
}

func TestEvaluateVerification_NonSuccessNeverApplies(t *testing.T) {
	meta := map[string]string{"referenceId": "1", "referenceType": "invoice"}
	for _, status := range []payment.CanonicalStatus{payment.StatusPending, payment.StatusFailed, payment.StatusUnknown} {
		txn := succeededTxn(meta)
		txn.Status = status
		outcome, _ := EvaluateVerification(txn, nil, meta)
		if outcome != OutcomeNotSuccessful {
			t.Fatalf("status %s: expected not_success, got %s", status, outcome)
		}
	}
}

func TestEvaluateVerification_CallbackMetadataFirst(t *testing.T) {
	verified := succeededTxn(map[string]string{"referenceId": "9", "referenceType": "appointment"})
	callback := map[string]string{"referenceId": "5", "referenceType": "invoice", "userId": "2"}

	outcome, key := EvaluateVerification(verified, nil, callback)
	if outcome != OutcomeApplied {
		t.Fatalf("expected eligible outcome, got %s", outcome)
	}
	if key.ReferenceId != 5 || string(key.ReferenceType) != "invoice" {
		t.Fatalf("callback metadata should win, got %+v", key)
	}
}

func TestEvaluateVerification_FallsBackToVerifiedMetadata(t *testing.T) {
	verified := succeededTxn(map[string]string{"referenceId": "9", "referenceType": "appointment"})

	outcome, key := EvaluateVerification(verified, nil, nil)
	if outcome != OutcomeApplied {
		t.Fatalf("expected eligible outcome, got %s", outcome)
	}
	if key.ReferenceId != 9 || string(key.ReferenceType) != "appointment" {
		t.Fatalf("expected verified metadata to be used, got %+v", key)
	}
}

func TestEvaluateVerification_MetadataMissing(t *testing.T) {
	cases := []map[string]string{
		nil,
		{},
		{"referenceId": "12"},
		{"referenceType": "invoice"},
		{"referenceId": "x", "referenceType": "invoice"},
	}
	for i, meta := range cases {
		verified := succeededTxn(meta)
		outcome, _ := EvaluateVerification(verified, nil, meta)
		if outcome != OutcomeMetadataMissing {
			t.Fatalf("case %d: expected metadata_missing, got %s", i, outcome)
		}
	}
}

func TestAmountMismatch(t *testing.T) {
	cases := []struct {
		asserted string
		verified string
		want     bool
	}{
		{"236", "236", false},
		{"235", "236", false}, // within tolerance
		{"237", "236", false},
		{"200", "236", true},
		{"236", "200", true},
		{"234.5", "236", true},
		{"0", "236", false}, // callback carried no amount
		{"236", "0", false}, // provider reported none
	}
	for _, tc := range cases {
		got := AmountMismatch(mustDecimal(t, tc.asserted), mustDecimal(t, tc.verified))
		if got != tc.want {
			t.Fatalf("AmountMismatch(%s, %s) = %v, want %v", tc.asserted, tc.verified, got, tc.want)
		}
	}
}

func TestOutcomeAckStatus(t *testing.T) {
	// Applied and already-applied are indistinguishable to the provider:
	// both deliveries landed, neither should be retried.
	if OutcomeApplied.AckStatus() != "ok" || OutcomeAlreadyApplied.AckStatus() != "ok" {
		t.Fatalf("applied outcomes must ack with ok")
	}
	for _, o := range []Outcome{OutcomeVerificationFailed, OutcomeNotSuccessful, OutcomeMetadataMissing} {
		if o.AckStatus() != string(o) {
			t.Fatalf("outcome %s must ack with its own name", o)
		}
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}
