package safety

import (
	"fmt"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// ExportGate decides whether a record may leave for an ERP system.
// Every refusal carries the full list of human-readable reasons, and
// an operator can override the gate explicitly.
type ExportGate struct {
	// MinFieldConfidence blocks export when a required field scores
	// below it.
	MinFieldConfidence float64
}

// Check returns whether the record is safe to export and why not.
func (gate ExportGate) Check(x *entity.InvoiceExtract) (bool, []string) {
	var reasons []string

	if x.NeedsHumanReview {
		reasons = append(reasons, "flagged for human review")
	}
	if x.IsDuplicate {
		reasons = append(reasons, "duplicate invoice detected")
	}
	if x.ArithmeticMismatch {
		reasons = append(reasons, "arithmetic mismatch between subtotal, tax, and total")
	}

	for _, field := range constants.RequiredFields {
		res, ok := x.Fields[field]
		if !ok || !res.Found() {
			reasons = append(reasons, "missing required field: "+string(field))
			continue
		}
		if res.Confidence < gate.MinFieldConfidence {
			reasons = append(reasons, fmt.Sprintf("low confidence for %s: %.2f", field, res.Confidence))
		}
	}

	return len(reasons) == 0, reasons
}

// CheckWithOverride applies the gate unless the operator forces the
// export. The reasons are still returned so the override is auditable.
func (gate ExportGate) CheckWithOverride(x *entity.InvoiceExtract, override bool) (bool, []string) {
	ok, reasons := gate.Check(x)
	if override {
		return true, reasons
	}
	return ok, reasons
}
