package llm

import (
	"context"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
)

// ExtractRequest is one batched fallback call for a single document.
// Fields lists only the fields that triggered fallback; the model is
// never asked for fields the heuristics already resolved confidently.
type ExtractRequest struct {
	JobID  uuid.UUID
	Fields []constants.FieldName

	// OCRText is the reconstructed document text. The caller strips PII
	// before building the request when stripping is enabled.
	OCRText      string
	FilenameHint string

	// InvoiceIDHint carries the already-extracted invoice identifier so
	// the model can be warned away from echoing it as an amount.
	InvoiceIDHint   string
	DefaultCurrency string
}

// FieldAnswer is the model's proposal for one field. Amount is set for
// the monetary fields, Value for everything else.
type FieldAnswer struct {
	Value  *string
	Amount *float64
	Reason string
}

// InvoiceFields is the structured response document. Every field is
// optional; the model omits what it cannot find. Reasons holds a short
// free-text justification per answered field, keyed by field name.
type InvoiceFields struct {
	InvoiceID   *string  `json:"invoice_id,omitempty"`
	VendorName  *string  `json:"vendor_name,omitempty"`
	InvoiceDate *string  `json:"invoice_date,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
	Subtotal    *float64 `json:"amount_subtotal,omitempty"`
	Tax         *float64 `json:"amount_tax,omitempty"`
	Currency    *string  `json:"currency,omitempty"`

	Reasons map[string]string `json:"reasons,omitempty"`
}

// Answers flattens the response into per-field proposals, keyed the
// same way the pipeline keys its heuristic results.
func (f InvoiceFields) Answers() map[constants.FieldName]FieldAnswer {
	out := make(map[constants.FieldName]FieldAnswer)
	put := func(field constants.FieldName, value *string, amount *float64) {
		if value == nil && amount == nil {
			return
		}
		out[field] = FieldAnswer{Value: value, Amount: amount, Reason: f.Reasons[string(field)]}
	}
	put(constants.FieldInvoiceID, f.InvoiceID, nil)
	put(constants.FieldVendorName, f.VendorName, nil)
	put(constants.FieldInvoiceDate, f.InvoiceDate, nil)
	put(constants.FieldDueDate, f.DueDate, nil)
	put(constants.FieldTotalAmount, nil, f.TotalAmount)
	put(constants.FieldAmountSubtotal, nil, f.Subtotal)
	put(constants.FieldAmountTax, nil, f.Tax)
	put(constants.FieldCurrency, f.Currency, nil)
	return out
}

// FieldExtractor is the external-model collaborator. Implementations
// return the parsed response plus the raw content bytes for logging.
// Errors are soft at the pipeline boundary: the caller keeps its
// heuristic values and moves on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte, error)
}
