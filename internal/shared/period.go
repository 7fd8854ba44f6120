package shared

import (
	"fmt"
	"strings"
	"time"
)

// PeriodKind discriminates the supported period selectors.
type PeriodKind int

const (
	// PeriodNone selects nothing; reports render empty rather than fail.
	PeriodNone PeriodKind = iota
	// PeriodExact selects a single year-month.
	PeriodExact
	// PeriodYear selects every month of one year.
	PeriodYear
	// PeriodAll selects every record regardless of period.
	PeriodAll
)

// Sentinel values the legacy UI sends through its year/month dropdowns.
// They are translated here, at the boundary, and nowhere else.
const (
	SentinelYearAll  = 1313
	SentinelMonthAll = 13
)

// Period is a parsed period selector. The zero value selects nothing.
type Period struct {
	Kind  PeriodKind
	Year  int
	Month time.Month
}

// PeriodFromYearMonth maps the legacy year/month dropdown convention:
// year 1313 + month 13 means every period, month 13 alone means the whole
// year, year 1313 alone means no period at all.
func PeriodFromYearMonth(year, month int) Period {
	switch {
	case year == SentinelYearAll && month == SentinelMonthAll:
		return Period{Kind: PeriodAll}
	case month == SentinelMonthAll:
		return Period{Kind: PeriodYear, Year: year}
	case year == SentinelYearAll:
		return Period{Kind: PeriodNone}
	case year < 1 || month < 1 || month > 12:
		return Period{Kind: PeriodNone}
	default:
		return Period{Kind: PeriodExact, Year: year, Month: time.Month(month)}
	}
}

// ParsePeriod reads the string form used in query params and exports:
// "all", "none", "YYYY-*" and "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "none":
		return Period{Kind: PeriodNone}, nil
	case s == "all":
		return Period{Kind: PeriodAll}, nil
	case strings.HasSuffix(s, "-*"):
		var year int
		if _, err := fmt.Sscanf(s, "%4d-*", &year); err != nil || len(s) != 6 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		return Period{Kind: PeriodYear, Year: year}, nil
	default:
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		return Period{Kind: PeriodExact, Year: t.Year(), Month: t.Month()}, nil
	}
}

// String renders the selector in its legacy string form.
func (p Period) String() string {
	switch p.Kind {
	case PeriodAll:
		return "all"
	case PeriodYear:
		return fmt.Sprintf("%04d-*", p.Year)
	case PeriodExact:
		return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
	default:
		return "none"
	}
}

// Matches reports whether a record period key falls inside the selector.
func (p Period) Matches(ym string) bool {
	switch p.Kind {
	case PeriodAll:
		return true
	case PeriodYear:
		return strings.HasPrefix(ym, fmt.Sprintf("%04d-", p.Year))
	case PeriodExact:
		return ym == p.String()
	default:
		return false
	}
}

// PeriodKey derives the canonical "YYYY-MM" key from a date.
func PeriodKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// ValidPeriodKey reports whether s is a well-formed, non-placeholder
// "YYYY-MM" key. The epoch placeholder 1970-01 marks rows whose date never
// parsed upstream and is excluded from period roll-ups.
func ValidPeriodKey(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	if _, err := time.Parse("2006-01", s); err != nil {
		return false
	}
	return s != "1970-01"
}
