package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
)

// RecoverJSON digs a JSON object out of a sloppy model reply: markdown
// fences, leading chatter, trailing commentary. Returns the original
// bytes unchanged when the content already starts with '{'.
func RecoverJSON(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return []byte(s)
}

// SanitizeFields normalizes near-miss answers so one sloppy field does
// not sink the whole batched response: amounts sent as strings are
// parsed, nulls and empty strings are dropped, unparseable amounts are
// dropped and reported. Returns the cleaned document and the names of
// dropped fields.
func SanitizeFields(raw []byte) ([]byte, []string, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse response object: %w", err)
	}

	var dropped []string
	for key, val := range doc {
		if key == "reasons" {
			continue
		}
		switch v := val.(type) {
		case nil:
			delete(doc, key)
			dropped = append(dropped, key)
		case string:
			if strings.TrimSpace(v) == "" {
				delete(doc, key)
				dropped = append(dropped, key)
				continue
			}
			if isAmountField(key) {
				if amt, ok := coerceAmount(v); ok && amt > 0 {
					doc[key] = amt
				} else {
					delete(doc, key)
					dropped = append(dropped, key)
				}
			}
		case float64:
			if isAmountField(key) && v <= 0 {
				delete(doc, key)
				dropped = append(dropped, key)
			}
		}
	}

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return nil, dropped, fmt.Errorf("re-marshal sanitized response: %w", err)
	}
	return cleaned, dropped, nil
}

func isAmountField(key string) bool {
	switch key {
	case "total_amount", "amount_subtotal", "amount_tax":
		return true
	}
	return false
}

// coerceAmount parses a string amount, tolerating currency symbols and
// locale separators the same way the heuristic layer does.
func coerceAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	trimmed := strings.TrimLeft(s, "$€£₹ ")
	if v, ok := heuristics.ParseAmount(trimmed); ok {
		return v, true
	}
	return 0, false
}
