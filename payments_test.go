package main

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return payload
}

func TestExtractTransactionId(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"snake_case", `{"transaction_id": "abc-1"}`, "abc-1"},
		{"camelCase", `{"transactionId": "abc-2"}`, "abc-2"},
		{"bare id", `{"id": "abc-3"}`, "abc-3"},
		{"numeric id", `{"id": 12345}`, "12345"},
		{"snake wins over id", `{"transaction_id": "t", "id": "other"}`, "t"},
		{"event envelope", `{"id": "evt_1", "type": "payment_intent.succeeded", "data": {"object": {"id": "pi_9"}}}`, "pi_9"},
		{"missing", `{"status": "SUCCESS"}`, ""},
		{"empty body", `{}`, ""},
	}
	for _, tc := range cases {
		if got := extractTransactionId(decode(t, tc.payload)); got != tc.want {
			t.Fatalf("%s: extractTransactionId = %q, want %q", tc.name, got, tc.want)
		}
	}
	if extractTransactionId(nil) != "" {
		t.Fatalf("nil payload must yield empty id")
	}
}

func TestExtractAmount(t *testing.T) {
	if got := extractAmount(decode(t, `{"amount": 236}`)); !got.Equal(decimal.NewFromInt(236)) {
		t.Fatalf("numeric amount: got %s", got)
	}
	if got := extractAmount(decode(t, `{"amount": "199.5"}`)); !got.Equal(decimal.NewFromFloat(199.5)) {
		t.Fatalf("string amount: got %s", got)
	}
	if got := extractAmount(decode(t, `{"data": {"object": {"amount": 100}}}`)); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("envelope amount: got %s", got)
	}
	if got := extractAmount(decode(t, `{}`)); !got.IsZero() {
		t.Fatalf("missing amount must be zero, got %s", got)
	}
}

func TestExtractMetadata(t *testing.T) {
	meta := extractMetadata(decode(t, `{"metadata": {"referenceId": 42, "referenceType": "invoice", "userId": "7"}}`))
	if meta["referenceId"] != "42" || meta["referenceType"] != "invoice" || meta["userId"] != "7" {
		t.Fatalf("unexpected metadata: %v", meta)
	}

	meta = extractMetadata(decode(t, `{"data": {"object": {"metadata": {"referenceId": "3", "referenceType": "appointment"}}}}`))
	if meta["referenceId"] != "3" || meta["referenceType"] != "appointment" {
		t.Fatalf("envelope metadata: %v", meta)
	}

	if extractMetadata(decode(t, `{}`)) != nil {
		t.Fatalf("missing metadata must be nil")
	}
}
