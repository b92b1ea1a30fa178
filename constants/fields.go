package constants

// FieldName identifies one extractable invoice field.
type FieldName string

// Stable values (store these exact strings in DB and API payloads).
const (
	FieldInvoiceID      FieldName = "invoice_id"
	FieldVendorName     FieldName = "vendor_name"
	FieldInvoiceDate    FieldName = "invoice_date"
	FieldDueDate        FieldName = "due_date"
	FieldTotalAmount    FieldName = "total_amount"
	FieldAmountSubtotal FieldName = "amount_subtotal"
	FieldAmountTax      FieldName = "amount_tax"
	FieldCurrency       FieldName = "currency"
)

// RequiredFields are the fields that must be present for a record to be valid.
var RequiredFields = []FieldName{
	FieldInvoiceID,
	FieldTotalAmount,
	FieldVendorName,
	FieldInvoiceDate,
}

// IsRequired reports whether f participates in the is_invalid derivation
// and in LLM fallback triggering.
func IsRequired(f FieldName) bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}
