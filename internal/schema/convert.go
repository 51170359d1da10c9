package schema

// convert.go interprets raw cell values as dates and numbers. CSV exports
// from spreadsheets arrive in many shapes: US and EU date orders, currency
// symbols, thousands separators, accounting-style negatives. Parsers here are
// lenient on input; the sanitizer re-emits the canonical form.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format used on export and in sanitized
// entities.
const DateLayout = "2006-01-02"

var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006",
	"Jan 2, 2006", "2 Jan 2006",
	"20060102",
}

// ParseDate parses a raw cell as a calendar date. It tries unambiguous
// four-digit-year layouts in order and reports ok=false when none match.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a raw cell as a number, tolerating currency symbols,
// thousands separators, and accounting-format negatives like "(123.45)".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"$", "€", "£", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}

	if !numericPattern.MatchString(s) {
		return 0, false
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
