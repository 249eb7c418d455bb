package models

import "testing"

func TestFormatDocumentNumber(t *testing.T) {
	cases := []struct {
		prefix   string
		year     int
		sequence int64
		want     string
	}{
		{"DEV", 2026, 1, "DEV-2026-0001"},
		{"DEV", 2026, 42, "DEV-2026-0042"},
		{"FAC", 2026, 999, "FAC-2026-0999"},
		{"FAC", 2027, 1000, "FAC-2027-1000"},
		// Padding widens past four digits instead of truncating.
		{"FAC", 2027, 12345, "FAC-2027-12345"},
	}
	for _, tc := range cases {
		got := FormatDocumentNumber(tc.prefix, tc.year, tc.sequence)
		if got != tc.want {
			t.Fatalf("FormatDocumentNumber(%s, %d, %d) = %s, want %s", tc.prefix, tc.year, tc.sequence, got, tc.want)
		}
	}
}

func TestInvoiceStatusPayable(t *testing.T) {
	payable := []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue}
	for _, s := range payable {
		if !s.Payable() {
			t.Fatalf("expected %s to be payable", s)
		}
	}
	notPayable := []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusCancelled}
	for _, s := range notPayable {
		if s.Payable() {
			t.Fatalf("expected %s not to be payable", s)
		}
	}
}

func TestQuoteStatusTerminal(t *testing.T) {
	if QuoteStatusDraft.IsTerminal() || QuoteStatusSent.IsTerminal() {
		t.Fatalf("draft and sent must not be terminal")
	}
	for _, s := range []QuoteStatus{QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}
