package heuristics

import (
	"log/slog"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// DocumentContext carries already-resolved fields that later extractors
// depend on. The invoice ID must be known before the total is scored,
// and the total must be known before tax and subtotal are ratio-checked.
type DocumentContext struct {
	InvoiceID   string
	TotalAmount *float64
	Now         time.Time
}

// Generator produces ordered field candidates from OCR blocks. It is
// stateless apart from configuration; the same blocks and context
// always yield the same candidates.
type Generator struct {
	total  TotalConfig
	logger *slog.Logger
}

// NewGenerator builds a generator with the given total-extraction
// bounds.
func NewGenerator(total TotalConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{total: total, logger: logger}
}

// Generate returns candidates for one field, best first. An empty
// slice means the field was not found; that is a result, not an error.
func (g *Generator) Generate(field constants.FieldName, blocks []entity.OCRBlock, docCtx DocumentContext) []entity.FieldCandidate {
	now := docCtx.Now
	if now.IsZero() {
		now = time.Now()
	}

	var candidates []entity.FieldCandidate
	switch field {
	case constants.FieldInvoiceID:
		candidates = ExtractInvoiceID(blocks)
	case constants.FieldInvoiceDate, constants.FieldDueDate:
		candidates = ExtractDate(blocks, field, now)
	case constants.FieldTotalAmount:
		candidates = ExtractTotalAmount(blocks, docCtx.InvoiceID, g.total)
	case constants.FieldAmountTax:
		candidates = ExtractTaxAmount(blocks, docCtx.TotalAmount)
	case constants.FieldAmountSubtotal:
		candidates = ExtractSubtotal(blocks, docCtx.TotalAmount)
	case constants.FieldVendorName:
		candidates = ExtractVendorName(blocks)
	case constants.FieldCurrency:
		candidates = ExtractCurrency(blocks, docCtx.TotalAmount)
	}

	if len(candidates) > 0 {
		g.logger.Debug("heuristics.candidates",
			"field", string(field),
			"count", len(candidates),
			"tier", candidates[0].Tier.String(),
		)
	}
	return candidates
}
