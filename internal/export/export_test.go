package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
	"github.com/Sundramrai3691/ReXcan/internal/safety"
)

func completeRecord(invoiceID string, total float64) *entity.InvoiceExtract {
	vendor := "Acme Corp"
	date := "2024-11-01"
	currency := "USD"
	x := &entity.InvoiceExtract{
		JobID:       uuid.New(),
		InvoiceID:   &invoiceID,
		VendorName:  &vendor,
		InvoiceDate: &date,
		TotalAmount: &total,
		Currency:    &currency,
		Fields:      map[constants.FieldName]entity.ExtractionResult{},
	}
	for _, f := range constants.RequiredFields {
		v := "x"
		x.Fields[f] = entity.ExtractionResult{Field: f, Value: &v, Confidence: 0.9}
	}
	x.DeriveMissingFlags()
	return x
}

func TestRecordCSVQuickBooks(t *testing.T) {
	x := completeRecord("INV-001", 544.46)
	qty := 2.0
	price := 272.23
	lineTotal := 544.46
	x.LineItems = []entity.LineItem{
		{Description: "Widgets", Quantity: &qty, UnitPrice: &price, Total: &lineTotal},
	}

	data, err := RecordCSV(x, ERPQuickBooks)
	if err != nil {
		t.Fatalf("RecordCSV: %v", err)
	}
	out := string(data)

	if !strings.HasPrefix(out, "Invoice Number,Vendor,Date,Amount,Subtotal,Tax,Currency") {
		t.Fatalf("header mismatch:\n%s", out)
	}
	if !strings.Contains(out, "INV-001,Acme Corp,2024-11-01,544.46,,,USD") {
		t.Fatalf("record row mismatch:\n%s", out)
	}
	if !strings.Contains(out, "Line Items") || !strings.Contains(out, "Widgets,2,272.23,544.46") {
		t.Fatalf("line items missing:\n%s", out)
	}
}

func TestRecordCSVXeroSkipsLineItems(t *testing.T) {
	x := completeRecord("INV-001", 544.46)
	total := 544.46
	x.LineItems = []entity.LineItem{{Description: "Widgets", Total: &total}}

	data, err := RecordCSV(x, ERPXero)
	if err != nil {
		t.Fatalf("RecordCSV: %v", err)
	}
	if strings.Contains(string(data), "Line Items") {
		t.Fatal("xero format must not carry a line-item section")
	}
	if !strings.Contains(string(data), "Contact Name") {
		t.Fatalf("xero headers missing:\n%s", data)
	}
}

func TestUnknownERPDefaultsToQuickBooks(t *testing.T) {
	erp, cols := Schema(ERPType("netsuite"))
	if erp != ERPQuickBooks || cols[1].header != "Vendor" {
		t.Fatalf("unknown ERP must fall back to quickbooks, got %s", erp)
	}
}

type stubRecords struct {
	repository.RecordRepository
	records []*entity.InvoiceExtract
}

func (s *stubRecords) ListExportable(_ context.Context) ([]*entity.InvoiceExtract, error) {
	return s.records, nil
}

func TestServiceGatesExport(t *testing.T) {
	clean := completeRecord("INV-001", 544.46)
	flagged := completeRecord("INV-002", 99.00)
	flagged.NeedsHumanReview = true

	svc := NewService(
		&stubRecords{records: []*entity.InvoiceExtract{clean, flagged}},
		safety.ExportGate{MinFieldConfidence: 0.5},
		nil,
	)

	data, rows, err := svc.ExportCSV(context.Background(), ERPSAP)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want flagged record blocked", rows)
	}
	out := string(data)
	if !strings.Contains(out, "INV-001") || strings.Contains(out, "INV-002") {
		t.Fatalf("gate leak:\n%s", out)
	}
	if !strings.Contains(out, "Document Date") {
		t.Fatalf("sap headers missing:\n%s", out)
	}
}

func TestServiceXLSXProducesWorkbook(t *testing.T) {
	clean := completeRecord("INV-001", 544.46)
	svc := NewService(
		&stubRecords{records: []*entity.InvoiceExtract{clean}},
		safety.ExportGate{MinFieldConfidence: 0.5},
		nil,
	)

	data, rows, err := svc.ExportXLSX(context.Background(), ERPQuickBooks)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
	// XLSX is a zip container.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("output is not a valid workbook")
	}
}
