package main

import "testing"

// Provider callbacks must always be answered, so the rate limiter skips
// them; everything else stays covered.
func TestRateLimitExempt(t *testing.T) {
	if !rateLimitExempt("/api/payments/:provider/callback") {
		t.Fatalf("provider callback route must be exempt from rate limiting")
	}
	for _, path := range []string{
		"/api/payments/:provider/create",
		"/api/payments/:provider/status/:transactionId",
		"/api/quotes",
		"/api/invoices/:id/mark-paid",
		"",
	} {
		if rateLimitExempt(path) {
			t.Fatalf("%q must not be exempt from rate limiting", path)
		}
	}
}
