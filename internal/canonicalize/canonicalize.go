package canonicalize

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
)

// currencyEntries folds symbols, codes, and names to ISO 4217. Kept as
// an ordered slice so partial matching is deterministic.
var currencyEntries = []struct{ key, code string }{
	{"USD", "USD"}, {"US$", "USD"}, {"$", "USD"}, {"DOLLAR", "USD"},
	{"EUR", "EUR"}, {"€", "EUR"}, {"EURO", "EUR"},
	{"GBP", "GBP"}, {"£", "GBP"}, {"POUND", "GBP"},
	{"INR", "INR"}, {"₹", "INR"}, {"RUPEE", "INR"},
	{"JPY", "JPY"}, {"¥", "JPY"}, {"YEN", "JPY"},
	{"CAD", "CAD"}, {"C$", "CAD"},
	{"AUD", "AUD"}, {"A$", "AUD"},
}

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date normalizes any supported date string to YYYY-MM-DD. Dates
// outside [2000-01-01, currentYear+5] return empty: an OCR artifact,
// not a value.
func Date(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	minDate := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate := time.Date(now.Year()+5, 12, 31, 0, 0, 0, 0, time.UTC)

	if reISODate.MatchString(s) {
		t, err := time.Parse("2006-01-02", s)
		if err == nil && !t.Before(minDate) && !t.After(maxDate) {
			return s
		}
		return ""
	}

	if t, ok := heuristics.ParseDate(s); ok {
		if !t.Before(minDate) && !t.After(maxDate) {
			return t.Format("2006-01-02")
		}
		return ""
	}
	if t, ok := heuristics.ParseDateLoose(s); ok {
		if !t.Before(minDate) && !t.After(maxDate) {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// Currency normalizes a currency symbol, code, or name to ISO 4217.
// Unrecognized inputs default to USD.
func Currency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	for _, e := range currencyEntries {
		if e.key == s {
			return e.code
		}
	}
	for _, e := range currencyEntries {
		if strings.Contains(s, e.key) || strings.Contains(e.key, s) {
			return e.code
		}
	}
	return "USD"
}

// Amount normalizes an amount string to a float, tolerating currency
// symbols and both separator conventions.
func Amount(s string) (float64, bool) {
	return heuristics.ParseAmount(s)
}

// ArithmeticConsistent reports whether subtotal + tax equals total.
// A difference at or beyond tolerance is a mismatch; the epsilon keeps
// binary float noise from letting a full-cent difference slip under a
// 0.01 tolerance. Missing components are consistent by definition:
// absence is not a contradiction.
func ArithmeticConsistent(total, subtotal, tax *float64, tolerance float64) bool {
	if total == nil || subtotal == nil || tax == nil {
		return true
	}
	return math.Abs((*subtotal+*tax)-*total) < tolerance-1e-9
}
