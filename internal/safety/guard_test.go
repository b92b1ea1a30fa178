package safety

import (
	"strings"
	"testing"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

func TestValidateFile(t *testing.T) {
	g := NewGuard(10, true, nil)

	if err := g.ValidateFile("invoice.pdf", 1024, "application/pdf"); err != nil {
		t.Fatalf("valid pdf rejected: %v", err)
	}
	if err := g.ValidateFile("invoice.pdf", MaxFileSize+1, "application/pdf"); err == nil {
		t.Fatal("oversized file must be rejected")
	}
	if err := g.ValidateFile("invoice.exe", 1024, ""); err == nil {
		t.Fatal("disallowed extension must be rejected")
	}
	if err := g.ValidateFile("invoice.pdf", 1024, "text/html"); err == nil {
		t.Fatal("disallowed MIME type must be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	g := NewGuard(10, true, nil)

	if got := g.SanitizeFilename("../../etc/passwd"); strings.Contains(got, "/") {
		t.Fatalf("path traversal survived: %q", got)
	}
	if got := g.SanitizeFilename("my invoice (1).pdf"); got != "my_invoice__1_.pdf" {
		t.Fatalf("unsafe characters: got %q", got)
	}
}

func TestLLMBudget(t *testing.T) {
	g := NewGuard(2, true, nil)
	if !g.AllowLLMCall() || !g.AllowLLMCall() {
		t.Fatal("calls within budget must be allowed")
	}
	if g.AllowLLMCall() {
		t.Fatal("call beyond budget must be denied")
	}
	if g.LLMCallsUsed() != 2 {
		t.Fatalf("used = %d, want 2", g.LLMCallsUsed())
	}
}

func TestValidateExtracted(t *testing.T) {
	g := NewGuard(10, true, nil)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	amount := -5.0
	date := "1999-01-01"
	x := &entity.InvoiceExtract{TotalAmount: &amount, InvoiceDate: &date}

	warnings := g.ValidateExtracted(x, now)
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want negative-amount and pre-2000 date", warnings)
	}

	good := 544.46
	gdate := "2024-11-01"
	x = &entity.InvoiceExtract{TotalAmount: &good, InvoiceDate: &gdate}
	if warnings := g.ValidateExtracted(x, now); len(warnings) != 0 {
		t.Fatalf("clean record produced warnings: %v", warnings)
	}
}

func TestStripPII(t *testing.T) {
	in := "Contact john.doe@example.com or 555-123-4567, SSN 123-45-6789, card 4111 1111 1111 1111"
	out := StripPII(in)
	for _, leaked := range []string{"john.doe@example.com", "555-123-4567", "123-45-6789", "4111"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("PII leaked: %q in %q", leaked, out)
		}
	}
	for _, marker := range []string{"[EMAIL]", "[PHONE]", "[SSN]", "[CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("placeholder %s missing in %q", marker, out)
		}
	}
}

func TestDetectPII(t *testing.T) {
	found := DetectPII("mail me at a@b.co and call 555-123-4567")
	if len(found["email"]) != 1 {
		t.Fatalf("email detection: %v", found)
	}
	if len(found["phone"]) != 1 {
		t.Fatalf("phone detection: %v", found)
	}
	if len(DetectPII("no pii here")) != 0 {
		t.Fatal("clean text must detect nothing")
	}
}

func TestExportGate(t *testing.T) {
	gate := ExportGate{MinFieldConfidence: 0.5}

	val := "x"
	amount := 544.46
	x := &entity.InvoiceExtract{
		InvoiceID:   &val,
		VendorName:  &val,
		InvoiceDate: &val,
		TotalAmount: &amount,
		Fields:      map[constants.FieldName]entity.ExtractionResult{},
	}
	for _, f := range constants.RequiredFields {
		x.Fields[f] = entity.ExtractionResult{Field: f, Value: &val, Confidence: 0.9}
	}

	ok, reasons := gate.Check(x)
	if !ok || len(reasons) != 0 {
		t.Fatalf("clean record blocked: %v", reasons)
	}

	x.IsDuplicate = true
	x.Fields[constants.FieldTotalAmount] = entity.ExtractionResult{
		Field: constants.FieldTotalAmount, Value: &val, Confidence: 0.3,
	}
	ok, reasons = gate.Check(x)
	if ok {
		t.Fatal("dirty record must be blocked")
	}
	if len(reasons) != 2 {
		t.Fatalf("reasons = %v, want duplicate + low confidence", reasons)
	}

	ok, reasons = gate.CheckWithOverride(x, true)
	if !ok {
		t.Fatal("override must allow export")
	}
	if len(reasons) == 0 {
		t.Fatal("override must still surface the reasons")
	}
}
