package safety

import "regexp"

// PII patterns. The SSN and phone patterns overlap with invoice
// numbers on rare documents; scrubbing errs on the side of removal
// since the text is leaving the process.
var (
	reSSNDashed = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	reSSNPlain  = regexp.MustCompile(`\b\d{9}\b`)
	reCard      = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	reEmail     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	rePhone     = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

// DetectPII reports detected PII values keyed by kind. Empty kinds are
// omitted.
func DetectPII(text string) map[string][]string {
	found := make(map[string][]string)
	add := func(kind string, matches []string) {
		if len(matches) > 0 {
			found[kind] = append(found[kind], matches...)
		}
	}
	add("ssn", reSSNDashed.FindAllString(text, -1))
	add("ssn", reSSNPlain.FindAllString(text, -1))
	add("credit_card", reCard.FindAllString(text, -1))
	add("email", reEmail.FindAllString(text, -1))
	add("phone", rePhone.FindAllString(text, -1))
	return found
}

// StripPII replaces PII with typed placeholders before text is sent to
// an external model.
func StripPII(text string) string {
	text = reSSNDashed.ReplaceAllString(text, "[SSN]")
	text = reSSNPlain.ReplaceAllString(text, "[SSN]")
	text = reCard.ReplaceAllString(text, "[CARD]")
	text = reEmail.ReplaceAllString(text, "[EMAIL]")
	text = rePhone.ReplaceAllString(text, "[PHONE]")
	return text
}
