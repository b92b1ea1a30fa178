package heuristics

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency-aware amount patterns. The strict form requires a symbol or
// ISO code adjacent to the number; the relaxed form accepts any numeric
// token that looks like a money amount.
var (
	reAmountStrict  = regexp.MustCompile(`(?i)(?:[$€£₹]|USD|EUR|GBP|INR|CAD|AUD)\s*([0-9][0-9.,]*)|([0-9][0-9.,]*)\s*(?:[$€£₹]|USD|EUR|GBP|INR|CAD|AUD)`)
	reAmountRelaxed = regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?\b|\b\d+[.,]\d{1,2}\b`)

	reCurrencySymbol = regexp.MustCompile(`(?i)[$€£₹]|\b(?:USD|EUR|GBP|INR|CAD|AUD)\b`)
	reCommaThousands = regexp.MustCompile(`,\d{3}\b`)
	reCommaDecimal   = regexp.MustCompile(`,\d{1,2}\b`)
	reDotThousands   = regexp.MustCompile(`\.\d{3}\b`)
	reNonAmountChars = regexp.MustCompile(`[^\d.,\-]`)
)

// HasCurrencySymbol reports whether the raw text carries a currency
// symbol or ISO code.
func HasCurrencySymbol(raw string) bool {
	return reCurrencySymbol.MatchString(raw)
}

// ExtractAmountStrict pulls the first currency-adjacent numeric token
// from the text.
func ExtractAmountStrict(text string) (string, bool) {
	m := reAmountStrict.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// ExtractAmountsRelaxed pulls every numeric token that could be an
// amount, currency symbol or not.
func ExtractAmountsRelaxed(text string) []string {
	return reAmountRelaxed.FindAllString(text, -1)
}

// ParseAmount converts an OCR amount string to a float, handling both
// US ("1,234.56") and European ("1.234,56" or "544,46") separators.
// The rule when both separators appear: whichever occurs last is the
// decimal separator. With commas only, a single comma followed by one
// or two digits is a decimal comma; otherwise commas are thousands
// separators.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(reNonAmountChars.ReplaceAllString(raw, ""))
	if s == "" || s == "-" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European: dot groups thousands, comma is decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || reCommaThousands.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else if reCommaDecimal.MatchString(s) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			// "1.234.567" style grouping, keep the last dot as decimal
			// only if it has 1-2 trailing digits.
			parts := strings.Split(s, ".")
			tail := parts[len(parts)-1]
			if len(tail) <= 2 {
				s = strings.Join(parts[:len(parts)-1], "") + "." + tail
			} else {
				s = strings.Join(parts, "")
			}
		} else if reDotThousands.MatchString(s) && len(s) > 4 {
			// "5.000" with nothing else is ambiguous; a single dot with
			// exactly three trailing digits reads as thousands grouping.
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// HasDecimalShape reports whether raw looks like it carries explicit
// cents, either "12.34" or the comma-decimal "12,34" form.
func HasDecimalShape(raw string) bool {
	return strings.Contains(raw, ".") || reCommaDecimal.MatchString(raw)
}
