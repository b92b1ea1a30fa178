package llm

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Sundramrai3691/ReXcan/internal/common"
)

const isoDatePattern = `^\d{4}-\d{2}-\d{2}$`

// BuildInvoiceJSONSchema builds the response schema for one batched
// extraction call. Only the requested fields are allowed, so a model
// that answers questions it was not asked fails validation instead of
// silently overwriting confident heuristic results.
func BuildInvoiceJSONSchema(fields []string) map[string]any {
	all := map[string]any{
		"invoice_id":      map[string]any{"type": "string", "minLength": 1, "maxLength": 100},
		"vendor_name":     map[string]any{"type": "string", "minLength": 1, "maxLength": 200},
		"invoice_date":    map[string]any{"type": "string", "pattern": isoDatePattern},
		"due_date":        map[string]any{"type": "string", "pattern": isoDatePattern},
		"total_amount":    amountProp(),
		"amount_subtotal": amountProp(),
		"amount_tax":      amountProp(),
		"currency":        map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
	}

	props := map[string]any{
		"reasons": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
	}
	for _, f := range fields {
		if p, ok := all[f]; ok {
			props[f] = p
		}
	}

	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

func amountProp() map[string]any {
	return map[string]any{
		"type":             "number",
		"exclusiveMinimum": 0,
	}
}

// ValidateJSONAgainstSchema validates raw response bytes against the
// in-memory schema document.
func ValidateJSONAgainstSchema(schema map[string]any, raw []byte) error {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return common.WrapError(err, "marshaling schema")
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("response.json", bytes.NewReader(schemaBytes)); err != nil {
		return common.WrapError(err, "adding schema resource")
	}
	compiled, err := c.Compile("response.json")
	if err != nil {
		return common.WrapError(err, "compiling schema")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return common.WrapError(err, "parsing response JSON")
	}
	return compiled.Validate(doc)
}
