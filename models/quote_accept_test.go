package models

import (
	"errors"
	"testing"
	"time"

	"github.com/blomoto/garage_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They validate the acceptance
// decision that AcceptQuote persists inside its row-locked transaction.

func sentQuote(validUntil time.Time) *Quote {
	return &Quote{
		ID:          7,
		QuoteNumber: "DEV-2026-0007",
		ClientId:    42,
		Status:      QuoteStatusSent,
		ValidUntil:  validUntil,
	}
}

func TestAcceptOutcome_ValidQuoteAccepts(t *testing.T) {
	now := time.Now().UTC()
	next, err := acceptOutcome(sentQuote(now.Add(24*time.Hour)), 42, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != QuoteStatusAccepted {
		t.Fatalf("expected accepted, got %s", next)
	}
}

// An acceptance attempt past validUntil must land the quote in expired, not
// leave it sent: the transition is returned alongside the error so the
// caller commits it before surfacing ExpiredError.
func TestAcceptOutcome_ExpiredFlipsAndFails(t *testing.T) {
	now := time.Now().UTC()
	next, err := acceptOutcome(sentQuote(now.Add(-time.Hour)), 42, now)

	var expired *utils.ExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected ExpiredError, got %v", err)
	}
	if next != QuoteStatusExpired {
		t.Fatalf("expected the expired transition to accompany the error, got %q", next)
	}
}

func TestAcceptOutcome_WrongClient(t *testing.T) {
	now := time.Now().UTC()
	next, err := acceptOutcome(sentQuote(now.Add(24*time.Hour)), 99, now)

	var authz *utils.AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if next != "" {
		t.Fatalf("no transition expected, got %q", next)
	}
}

func TestAcceptOutcome_NonSentStatuses(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []QuoteStatus{QuoteStatusDraft, QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired} {
		quote := sentQuote(now.Add(24 * time.Hour))
		quote.Status = status
		next, err := acceptOutcome(quote, 42, now)

		var invalid *utils.InvalidStateError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidStateError, got %v", status, err)
		}
		if next != "" {
			t.Fatalf("%s: no transition expected, got %q", status, next)
		}
	}
}
