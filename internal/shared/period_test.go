package shared

import (
	"testing"
	"time"
)

func TestPeriodFromYearMonthSentinels(t *testing.T) {
	cases := []struct {
		year, month int
		want        string
	}{
		{1313, 13, "all"},
		{2025, 13, "2025-*"},
		{1313, 7, "none"},
		{2025, 7, "2025-07"},
		{2025, 0, "none"},
		{2025, 14, "none"},
	}
	for _, tc := range cases {
		if got := PeriodFromYearMonth(tc.year, tc.month).String(); got != tc.want {
			t.Errorf("PeriodFromYearMonth(%d, %d) = %q, want %q", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestPeriodMatches(t *testing.T) {
	all := Period{Kind: PeriodAll}
	if !all.Matches("1999-12") {
		t.Error("all selector should match every key")
	}
	year := Period{Kind: PeriodYear, Year: 2025}
	if !year.Matches("2025-01") || year.Matches("2024-12") {
		t.Error("year selector should match only its own year")
	}
	exact := Period{Kind: PeriodExact, Year: 2025, Month: time.July}
	if !exact.Matches("2025-07") || exact.Matches("2025-08") {
		t.Error("exact selector should match a single month")
	}
	none := Period{Kind: PeriodNone}
	if none.Matches("2025-07") {
		t.Error("none selector should match nothing")
	}
}

func TestParsePeriodRoundTrip(t *testing.T) {
	for _, s := range []string{"all", "none", "2025-*", "2025-07"} {
		p, err := ParsePeriod(s)
		if err != nil {
			t.Fatalf("ParsePeriod(%q) error = %v", s, err)
		}
		if p.String() != s {
			t.Errorf("round trip %q -> %q", s, p.String())
		}
	}
	if _, err := ParsePeriod("2025/07"); err == nil {
		t.Error("expected error for malformed selector")
	}
	if _, err := ParsePeriod("25-*"); err == nil {
		t.Error("expected error for short wildcard year")
	}
}

func TestPeriodKey(t *testing.T) {
	d := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
	if got := PeriodKey(d); got != "2025-03" {
		t.Errorf("PeriodKey = %q", got)
	}
}

func TestValidPeriodKey(t *testing.T) {
	if !ValidPeriodKey("2025-07") {
		t.Error("2025-07 should be valid")
	}
	for _, s := range []string{"1970-01", "2025-13", "2025-7", "garbage", ""} {
		if ValidPeriodKey(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
