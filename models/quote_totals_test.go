package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the totals
// invariants that every quote and invoice write path goes through.

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeLineTotals_Basic(t *testing.T) {
	lines, subtotal, tax, total, err := ComputeLineTotals([]NewLineItem{
		{Description: "Vidange", Quantity: d("2"), UnitPrice: d("100")},
	}, d("18"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !lines[0].Total.Equal(d("200")) {
		t.Fatalf("line total: expected 200, got %s", lines[0].Total)
	}
	if !subtotal.Equal(d("200")) {
		t.Fatalf("subtotal: expected 200, got %s", subtotal)
	}
	if !tax.Equal(d("36")) {
		t.Fatalf("tax: expected 36, got %s", tax)
	}
	if !total.Equal(d("236")) {
		t.Fatalf("total: expected 236, got %s", total)
	}
}

func TestComputeLineTotals_MultipleLinesAndRounding(t *testing.T) {
	_, subtotal, tax, total, err := ComputeLineTotals([]NewLineItem{
		{Description: "Plaquettes", Quantity: d("1"), UnitPrice: d("33.33")},
		{Description: "Main d'oeuvre", Quantity: d("1.5"), UnitPrice: d("20")},
	}, d("7.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !subtotal.Equal(d("63.33")) {
		t.Fatalf("subtotal: expected 63.33, got %s", subtotal)
	}
	// 63.33 * 7.5% = 4.74975, rounded to 2 decimals.
	if !tax.Equal(d("4.75")) {
		t.Fatalf("tax: expected 4.75, got %s", tax)
	}
	if !total.Equal(subtotal.Add(tax)) {
		t.Fatalf("total must equal subtotal+tax, got %s", total)
	}
}

func TestComputeLineTotals_ZeroTaxRate(t *testing.T) {
	_, subtotal, tax, total, err := ComputeLineTotals([]NewLineItem{
		{Description: "Diagnostic", Quantity: d("1"), UnitPrice: d("50")},
	}, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tax.IsZero() {
		t.Fatalf("tax: expected 0, got %s", tax)
	}
	if !total.Equal(subtotal) {
		t.Fatalf("total must equal subtotal with zero tax, got %s", total)
	}
}

func TestComputeLineTotals_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		items   []NewLineItem
		taxRate decimal.Decimal
	}{
		{"no items", nil, d("18")},
		{"negative quantity", []NewLineItem{{Description: "x", Quantity: d("-1"), UnitPrice: d("10")}}, d("18")},
		{"negative price", []NewLineItem{{Description: "x", Quantity: d("1"), UnitPrice: d("-10")}}, d("18")},
		{"empty description", []NewLineItem{{Description: "", Quantity: d("1"), UnitPrice: d("10")}}, d("18")},
		{"negative tax rate", []NewLineItem{{Description: "x", Quantity: d("1"), UnitPrice: d("10")}}, d("-1")},
		{"tax rate above 100", []NewLineItem{{Description: "x", Quantity: d("1"), UnitPrice: d("10")}}, d("101")},
	}
	for _, tc := range cases {
		if _, _, _, _, err := ComputeLineTotals(tc.items, tc.taxRate); err == nil {
			t.Fatalf("%s: expected validation error, got nil", tc.name)
		}
	}
}

func TestInvoiceItemsCopyQuoteItemsVerbatim(t *testing.T) {
	lines, _, _, _, err := ComputeLineTotals([]NewLineItem{
		{Description: "Vidange", Quantity: d("2"), UnitPrice: d("100")},
		{Description: "Filtre", Quantity: d("1"), UnitPrice: d("15.5")},
	}, d("18"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items := toInvoiceItems(lines)
	if len(items) != len(lines) {
		t.Fatalf("expected %d items, got %d", len(lines), len(items))
	}
	for i := range items {
		if items[i].Description != lines[i].Description ||
			!items[i].Quantity.Equal(lines[i].Quantity) ||
			!items[i].UnitPrice.Equal(lines[i].UnitPrice) ||
			!items[i].Total.Equal(lines[i].Total) {
			t.Fatalf("item %d differs from source line", i)
		}
	}
}
