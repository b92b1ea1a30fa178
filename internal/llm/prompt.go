package llm

import (
	"encoding/json"
	"strings"
)

const maxPromptText = 4000

// BuildSystemPrompt frames the batched extraction call. The invoice-ID
// hint is included so the model does not echo the identifier back as a
// monetary amount, the failure mode the reconciler also guards against.
func BuildSystemPrompt(req ExtractRequest) string {
	names := make([]string, 0, len(req.Fields))
	for _, f := range req.Fields {
		names = append(names, string(f))
	}

	currency := req.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}

	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the JSON Schema provided.",
		"Extract exactly these fields and no others: " + strings.Join(names, ", ") + ".",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Amounts are plain numbers without currency symbols or thousands separators.",
		"Currency must be a 3-letter ISO 4217 code; default to " + currency + " if uncertain.",
		"For each field you answer, add a one-line justification under 'reasons' keyed by the field name.",
		"Never output null. If a field is not present in the document, omit it.",
	}
	if req.InvoiceIDHint != "" {
		parts = append(parts,
			"The invoice identifier is "+req.InvoiceIDHint+". It is NOT an amount; never return it or its digits as total_amount.")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt assembles the document context. The OCR text is
// truncated; totals and identifiers live near the top and bottom, and
// a full dump of a long invoice only burns tokens.
func BuildUserPrompt(req ExtractRequest, schema map[string]any) string {
	var b strings.Builder
	if req.FilenameHint != "" {
		b.WriteString("Filename: ")
		b.WriteString(req.FilenameHint)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument text:\n")
	text := req.OCRText
	if len(text) > maxPromptText {
		half := maxPromptText / 2
		text = text[:half] + "\n...\n" + text[len(text)-half:]
	}
	b.WriteString(text)
	b.WriteString("\n\nJSON Schema:\n")
	b.WriteString(mustJSON(schema))
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
