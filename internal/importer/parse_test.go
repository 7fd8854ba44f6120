package importer

import (
	"testing"
	"time"
)

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2025-07-03", "03/07/2025", "03-07-2025", "2025/07/03"} {
		got, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q) error = %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseDate("julio 3"); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"0.5", 0.5, true},
		{"0,5", 0.5, true},
		{"50%", 0.5, true},
		{"75", 0.75, true}, // whole-number percentage
		{"1", 1, true},
		{"150", 1, true}, // clamped after /100 -> 1.5 -> 1
		{"-3", 0, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePercent(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParsePercent(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseYesNo(t *testing.T) {
	for _, yes := range []string{"si", "Sí", "S", "YES", "y", "true", "1"} {
		if !ParseYesNo(yes) {
			t.Fatalf("ParseYesNo(%q) = false, want true", yes)
		}
	}
	for _, no := range []string{"no", "", "0", "false", "nope"} {
		if ParseYesNo(no) {
			t.Fatalf("ParseYesNo(%q) = true, want false", no)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if got := ParseAmount("1234,56"); got != 1234.56 {
		t.Fatalf("ParseAmount = %v, want 1234.56", got)
	}
	if got := ParseAmount(""); got != 0 {
		t.Fatalf("ParseAmount(empty) = %v, want 0", got)
	}
	if got := ParseAmount("abc"); got != 0 {
		t.Fatalf("ParseAmount(garbage) = %v, want 0", got)
	}
}
