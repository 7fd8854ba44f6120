package arca

import "testing"

func TestSplitInvoiceNumber(t *testing.T) {
	tests := []struct {
		raw       string
		pos       string
		seq       string
		formatted string
	}{
		{"1234567", "1", "01234567", "0001-01234567"},
		{"500012345678", "5000", "12345678", "5000-12345678"},
		{"00010000123", "1", "10000123", "0001-10000123"},
		{"0001-00001234", "1", "00001234", "0001-00001234"},
		{"A-42", "1", "00000042", "0001-00000042"},
		{"", "", "", ""},
		{"   ", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := SplitInvoiceNumber(tt.raw)
			if got.PointOfSale != tt.pos || got.Sequence != tt.seq || got.Formatted != tt.formatted {
				t.Fatalf("SplitInvoiceNumber(%q) = %+v, want (%q, %q, %q)", tt.raw, got, tt.pos, tt.seq, tt.formatted)
			}
		})
	}
}

func TestSplitInvoiceNumberRoundTrip(t *testing.T) {
	for _, raw := range []string{"500012345678", "1234567", "7-00000042"} {
		first := SplitInvoiceNumber(raw)
		again := SplitInvoiceNumber(first.Formatted)
		if again != first {
			t.Fatalf("split of %q not stable: %+v then %+v", raw, first, again)
		}
	}
}
