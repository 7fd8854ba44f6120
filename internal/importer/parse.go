package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateFormats are the layouts sheets arrive in, most common first.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate interprets a sheet date in any of the accepted layouts.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("importer: invalid date %q", raw)
}

// ParsePercent reads a sheet percentage. Accepts decimal comma, a trailing
// percent sign, and whole-number percentages (anything above 1 is divided
// by 100). The result is clamped to [0, 1]. ok is false for blank or
// unparseable cells.
func ParsePercent(raw string) (value float64, ok bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0, false
	}
	var p float64
	var err error
	if strings.HasSuffix(s, "%") {
		p, err = strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		p /= 100
	} else {
		p, err = strconv.ParseFloat(s, 64)
		if p > 1 {
			p /= 100
		}
	}
	if err != nil {
		return 0, false
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, true
}

// yesValues are the spellings accepted as affirmative in boolean columns.
var yesValues = map[string]bool{
	"si": true, "sí": true, "s": true,
	"yes": true, "y": true,
	"true": true, "1": true,
}

// ParseYesNo reads a sheet boolean. Anything not recognised is false.
func ParseYesNo(raw string) bool {
	return yesValues[strings.ToLower(strings.TrimSpace(raw))]
}

// ParseAmount reads a monetary cell, tolerating a decimal comma. Blank or
// unparseable cells read as zero, matching how sheets treat empty amounts.
func ParseAmount(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
