package heuristics

import (
	"testing"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

func TestExtractInvoiceID_InlineLabel(t *testing.T) {
	blocks := []entity.OCRBlock{
		block("Invoice Number: INV-2024-001", 50, 40, 350, 60, 0.95),
	}
	cands := ExtractInvoiceID(blocks)
	if len(cands) == 0 {
		t.Fatal("expected an invoice ID candidate")
	}
	if cands[0].Value != "INV-2024-001" {
		t.Fatalf("value = %q, want INV-2024-001", cands[0].Value)
	}
	if cands[0].Tier != entity.TierLabelStrict {
		t.Fatalf("tier = %s, want label-strict", cands[0].Tier)
	}
}

func TestExtractInvoiceID_NearbyBlock(t *testing.T) {
	blocks := []entity.OCRBlock{
		block("Invoice No:", 50, 40, 180, 60, 0.95),
		block("27301261", 220, 40, 320, 60, 0.95),
	}
	cands := ExtractInvoiceID(blocks)
	if len(cands) == 0 {
		t.Fatal("expected an invoice ID candidate")
	}
	if cands[0].Value != "27301261" {
		t.Fatalf("value = %q, want 27301261", cands[0].Value)
	}
}

func TestExtractInvoiceID_TierOrder(t *testing.T) {
	// No labels anywhere: the global strict pattern should fire before
	// the positional fallback.
	blocks := []entity.OCRBlock{
		block("ACME Corp", 50, 40, 150, 60, 0.9),
		block("INV-20240117", 600, 40, 720, 60, 0.9),
	}
	cands := ExtractInvoiceID(blocks)
	if len(cands) == 0 {
		t.Fatal("expected a candidate")
	}
	if cands[0].Tier != entity.TierGlobalStrict {
		t.Fatalf("tier = %s, want global-strict", cands[0].Tier)
	}
}

func TestExtractInvoiceID_Empty(t *testing.T) {
	if cands := ExtractInvoiceID(nil); cands != nil {
		t.Fatal("nil blocks must yield no candidates")
	}
}

func TestInvoiceIDDigitSet(t *testing.T) {
	blocks := []entity.OCRBlock{
		block("Invoice No: 27301261", 50, 40, 300, 60, 0.95),
		block("98765432", 500, 100, 600, 120, 0.9),
	}
	set := InvoiceIDDigitSet(blocks, "INV-27301261")
	if !set["27301261"] {
		t.Fatal("digits of the extracted ID must be present")
	}
	if !set["98765432"] {
		t.Fatal("bare long digit runs in the top band must be present")
	}
}
