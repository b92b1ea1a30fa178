package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/canonicalize"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "file::memory:", time.Second, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleExtract(invoiceID string, amount float64) *entity.InvoiceExtract {
	vendor := "Acme Corp"
	date := "2024-11-01"
	hash := "hash-" + invoiceID
	x := &entity.InvoiceExtract{
		JobID:       uuid.New(),
		InvoiceID:   &invoiceID,
		VendorName:  &vendor,
		InvoiceDate: &date,
		TotalAmount: &amount,
		DedupeHash:  &hash,
		Fields: map[constants.FieldName]entity.ExtractionResult{
			constants.FieldInvoiceID: {
				Field: constants.FieldInvoiceID, Value: &invoiceID,
				Confidence: 0.9, Source: constants.SourceHeuristic,
			},
			constants.FieldTotalAmount: {
				Field: constants.FieldTotalAmount, Amount: &amount,
				Confidence: 0.6, Source: constants.SourceLLM,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
	x.DeriveMissingFlags()
	return x
}

func TestRecordSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	repo := NewRecordRepository(store, nil)
	ctx := context.Background()

	x := sampleExtract("INV-001", 544.46)
	if err := repo.Save(ctx, x); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, x.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got.InvoiceID != "INV-001" || *got.TotalAmount != 544.46 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Fields[constants.FieldInvoiceID].Confidence != 0.9 {
		t.Fatalf("field results not preserved: %+v", got.Fields)
	}

	// Save again with a corrected value; must upsert, not duplicate.
	corrected := "INV-001-FIXED"
	x.InvoiceID = &corrected
	if err := repo.Save(ctx, x); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = repo.Get(ctx, x.JobID)
	if err != nil {
		t.Fatalf("Get after upsert: %v", err)
	}
	if *got.InvoiceID != "INV-001-FIXED" {
		t.Fatalf("upsert did not replace: %v", *got.InvoiceID)
	}
}

func TestRecordGetMissing(t *testing.T) {
	store := newTestStore(t)
	repo := NewRecordRepository(store, nil)

	_, err := repo.Get(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDedupView(t *testing.T) {
	store := newTestStore(t)
	repo := NewRecordRepository(store, nil)
	ctx := context.Background()

	a := sampleExtract("INV-001", 544.46)
	b := sampleExtract("INV-002", 99.00)
	for _, x := range []*entity.InvoiceExtract{a, b} {
		if err := repo.Save(ctx, x); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	hashes, err := repo.ExistingHashes(ctx)
	if err != nil {
		t.Fatalf("ExistingHashes: %v", err)
	}
	if len(hashes) != 2 || !hashes["hash-INV-001"] {
		t.Fatalf("hashes = %v", hashes)
	}

	ids, err := repo.ExistingIdentities(ctx)
	if err != nil {
		t.Fatalf("ExistingIdentities: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("identities = %d, want 2", len(ids))
	}
	for _, id := range ids {
		if id.TotalAmount == nil || id.InvoiceID == "" || id.JobID == uuid.Nil {
			t.Fatalf("identity incomplete: %+v", id)
		}
	}
}

func TestListExportableFilters(t *testing.T) {
	store := newTestStore(t)
	repo := NewRecordRepository(store, nil)
	ctx := context.Background()

	clean := sampleExtract("INV-001", 544.46)
	dup := sampleExtract("INV-002", 10.00)
	dup.IsDuplicate = true
	invalid := sampleExtract("INV-003", 20.00)
	invalid.InvoiceID = nil
	invalid.DeriveMissingFlags()

	for _, x := range []*entity.InvoiceExtract{clean, dup, invalid} {
		if err := repo.Save(ctx, x); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	out, err := repo.ListExportable(ctx)
	if err != nil {
		t.Fatalf("ListExportable: %v", err)
	}
	if len(out) != 1 || *out[0].InvoiceID != "INV-001" {
		t.Fatalf("exportable = %d records, want only the clean one", len(out))
	}
}

func TestMetrics(t *testing.T) {
	store := newTestStore(t)
	repo := NewRecordRepository(store, nil)
	ctx := context.Background()

	a := sampleExtract("INV-001", 544.46)
	a.LLMUsed = true
	b := sampleExtract("INV-002", 99.00)
	b.NeedsHumanReview = true
	for _, x := range []*entity.InvoiceExtract{a, b} {
		if err := repo.Save(ctx, x); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	m, err := repo.Metrics(ctx, 0.85, 0.5)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.TotalDocuments != 2 || m.LLMUsed != 1 || m.NeedsReview != 1 {
		t.Fatalf("summary = %+v", m)
	}
	// Each sample has one 0.9 field (auto-accept) and one 0.6 (flagged).
	if m.AutoAcceptFields != 2 || m.FlaggedFields != 2 {
		t.Fatalf("field buckets = %+v", m)
	}
	if m.AvgConfidence < 0.74 || m.AvgConfidence > 0.76 {
		t.Fatalf("avg confidence = %v, want 0.75", m.AvgConfidence)
	}
	if m.HeuristicCoverage != 0.5 {
		t.Fatalf("heuristic coverage = %v, want 0.5", m.HeuristicCoverage)
	}
}

func TestAuditAppendAndList(t *testing.T) {
	store := newTestStore(t)
	repo := NewAuditRepository(store, nil)
	ctx := context.Background()

	jobID := uuid.New()
	entries := []entity.AuditEntry{
		{JobID: jobID, Field: constants.FieldTotalAmount, OldValue: "544.46", NewValue: "545.00", UserID: "reviewer", Reason: "typo"},
		{JobID: jobID, Field: constants.FieldVendorName, OldValue: "Acme", NewValue: "Acme Corp", UserID: "reviewer", Reason: "full name"},
	}
	for _, e := range entries {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := repo.ListForJob(ctx, jobID)
	if err != nil {
		t.Fatalf("ListForJob: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].Field != constants.FieldTotalAmount || got[0].NewValue != "545.00" {
		t.Fatalf("first entry = %+v", got[0])
	}
	if got[0].Timestamp.IsZero() {
		t.Fatal("timestamp must be set on append")
	}

	other, err := repo.ListForJob(ctx, uuid.New())
	if err != nil {
		t.Fatalf("ListForJob(other): %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("foreign job returned %d entries", len(other))
	}
}

func TestVendorUpsertAndList(t *testing.T) {
	store := newTestStore(t)
	repo := NewVendorRepository(store, nil)
	ctx := context.Background()

	v := canonicalize.Vendor{
		CanonicalID: "acme_corp",
		Name:        "Acme Corp",
		Aliases:     []string{"ACME", "Acme Inc"},
		TaxID:       "12-3456789",
	}
	if err := repo.Upsert(ctx, v); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	v.Name = "Acme Corporation"
	if err := repo.Upsert(ctx, v); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Acme Corporation" || len(got[0].Aliases) != 2 {
		t.Fatalf("vendors = %+v", got)
	}
}
