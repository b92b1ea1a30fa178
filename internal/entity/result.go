package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
)

// ExtractionResult is the outcome for one field of one document.
// "Not found" is Value == nil with Confidence 0, never an error.
type ExtractionResult struct {
	Field      constants.FieldName   `json:"field"`
	Value      *string               `json:"value,omitempty"`
	Amount     *float64              `json:"amount,omitempty"` // set for amount fields
	Confidence float64               `json:"confidence"`
	Reason     string                `json:"reason"`
	Source     constants.FieldSource `json:"source"`
	Tier       StrategyTier          `json:"-"`
	AutoAccept bool                  `json:"auto_accept,omitempty"`
}

// Found reports whether the field resolved to a value.
func (r ExtractionResult) Found() bool {
	if r.Amount != nil {
		return true
	}
	return r.Value != nil && *r.Value != ""
}

// NotFound builds the canonical empty result for a field.
func NotFound(field constants.FieldName, reason string) ExtractionResult {
	return ExtractionResult{
		Field:  field,
		Reason: reason,
		Source: constants.SourceNone,
	}
}

// LineItem is one row of the invoice's item table.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Total       *float64 `json:"total,omitempty"`
}

// NearDuplicate references an existing record that is fuzzily similar.
type NearDuplicate struct {
	JobID      uuid.UUID `json:"job_id"`
	Similarity float64   `json:"similarity"`
}

// Timings is the per-run stage breakdown.
type Timings struct {
	OCR          time.Duration `json:"ocr"`
	Heuristics   time.Duration `json:"heuristics"`
	Confidence   time.Duration `json:"confidence"`
	LLM          time.Duration `json:"llm"`
	Canonicalize time.Duration `json:"canonicalize"`
	Total        time.Duration `json:"total"`
}

// InvoiceExtract aggregates all per-field results and the derived flags
// for one document. It is created at job start, finalized at pipeline
// end, and mutated afterward only through explicit corrections.
type InvoiceExtract struct {
	JobID uuid.UUID `json:"job_id"`

	InvoiceID   *string  `json:"invoice_id,omitempty"`
	VendorName  *string  `json:"vendor_name,omitempty"`
	VendorID    *string  `json:"vendor_id,omitempty"`
	InvoiceDate *string  `json:"invoice_date,omitempty"` // YYYY-MM-DD
	DueDate     *string  `json:"due_date,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
	Subtotal    *float64 `json:"amount_subtotal,omitempty"`
	Tax         *float64 `json:"amount_tax,omitempty"`
	Currency    *string  `json:"currency,omitempty"` // ISO 4217

	LineItems []LineItem `json:"line_items,omitempty"`

	Fields map[constants.FieldName]ExtractionResult `json:"fields"`

	Timings   Timings               `json:"timings"`
	LLMUsed   bool                  `json:"llm_used"`
	LLMFields []constants.FieldName `json:"llm_fields,omitempty"`

	DedupeHash         *string         `json:"dedupe_hash,omitempty"`
	IsDuplicate        bool            `json:"is_duplicate"`
	IsNearDuplicate    bool            `json:"is_near_duplicate"`
	NearDuplicates     []NearDuplicate `json:"near_duplicates,omitempty"`
	ArithmeticMismatch bool            `json:"arithmetic_mismatch"`
	NeedsHumanReview   bool            `json:"needs_human_review"`

	MissingInvoiceID  bool `json:"missing_invoice_id"`
	MissingTotal      bool `json:"missing_total"`
	MissingVendorName bool `json:"missing_vendor_name"`
	MissingDate       bool `json:"missing_date"`
	IsInvalid         bool `json:"is_invalid"`

	CreatedAt time.Time `json:"created_at"`
}

// DeriveMissingFlags recomputes the missing_* flags and is_invalid from
// the current field values. Called at pipeline end and after corrections.
func (x *InvoiceExtract) DeriveMissingFlags() {
	x.MissingInvoiceID = x.InvoiceID == nil || *x.InvoiceID == ""
	x.MissingTotal = x.TotalAmount == nil
	x.MissingVendorName = x.VendorName == nil || *x.VendorName == ""
	x.MissingDate = x.InvoiceDate == nil || *x.InvoiceDate == ""
	x.IsInvalid = x.MissingInvoiceID || x.MissingTotal || x.MissingVendorName || x.MissingDate
}

// AuditEntry records one explicit correction. Storage is owned by the
// repository; the pipeline only emits the event.
type AuditEntry struct {
	Timestamp time.Time           `json:"timestamp"`
	JobID     uuid.UUID           `json:"job_id"`
	Field     constants.FieldName `json:"field"`
	OldValue  string              `json:"old_value"`
	NewValue  string              `json:"new_value"`
	UserID    string              `json:"user_id"`
	Reason    string              `json:"reason"`
}
