package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/dedup"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// RecordRepository persists finished extraction records and serves the
// dedup engine its view of prior documents.
type RecordRepository interface {
	Save(ctx context.Context, x *entity.InvoiceExtract) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.InvoiceExtract, error)
	ExistingHashes(ctx context.Context) (map[string]bool, error)
	ExistingIdentities(ctx context.Context) ([]dedup.Identity, error)
	ListExportable(ctx context.Context) ([]*entity.InvoiceExtract, error)
	Metrics(ctx context.Context, autoAccept, flagFloor float64) (MetricsSummary, error)
}

// MetricsSummary aggregates the review-queue numbers served by the
// metrics endpoint.
type MetricsSummary struct {
	TotalDocuments    int     `json:"total_documents"`
	InvalidDocuments  int     `json:"invalid_documents"`
	Duplicates        int     `json:"duplicates"`
	NearDuplicates    int     `json:"near_duplicates"`
	NeedsReview       int     `json:"needs_review"`
	LLMUsed           int     `json:"llm_used"`
	AutoAcceptFields  int     `json:"auto_accept_fields"`
	FlaggedFields     int     `json:"flagged_fields"`
	LowConfFields     int     `json:"low_conf_fields"`
	AvgConfidence     float64 `json:"avg_confidence"`
	HeuristicCoverage float64 `json:"heuristic_coverage"`
}

type recordRepo struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRecordRepository builds the record repository over a store.
func NewRecordRepository(store *Store, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepo{db: store.db, log: logger}
}

func (r *recordRepo) Save(ctx context.Context, x *entity.InvoiceExtract) error {
	payload, err := json.Marshal(x)
	if err != nil {
		return common.WrapError(err, "marshaling extract")
	}
	createdAt := x.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO extracts (
			job_id, invoice_id, vendor_name, vendor_id, invoice_date, due_date,
			total_amount, amount_subtotal, amount_tax, currency, dedupe_hash,
			is_duplicate, is_near_duplicate, arithmetic_mismatch,
			needs_human_review, is_invalid, llm_used, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			invoice_id=excluded.invoice_id, vendor_name=excluded.vendor_name,
			vendor_id=excluded.vendor_id, invoice_date=excluded.invoice_date,
			due_date=excluded.due_date, total_amount=excluded.total_amount,
			amount_subtotal=excluded.amount_subtotal, amount_tax=excluded.amount_tax,
			currency=excluded.currency, dedupe_hash=excluded.dedupe_hash,
			is_duplicate=excluded.is_duplicate,
			is_near_duplicate=excluded.is_near_duplicate,
			arithmetic_mismatch=excluded.arithmetic_mismatch,
			needs_human_review=excluded.needs_human_review,
			is_invalid=excluded.is_invalid, llm_used=excluded.llm_used,
			payload=excluded.payload`,
		x.JobID.String(), x.InvoiceID, x.VendorName, x.VendorID, x.InvoiceDate, x.DueDate,
		x.TotalAmount, x.Subtotal, x.Tax, x.Currency, x.DedupeHash,
		x.IsDuplicate, x.IsNearDuplicate, x.ArithmeticMismatch,
		x.NeedsHumanReview, x.IsInvalid, x.LLMUsed,
		string(payload), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		r.log.Error("db.save_extract_failed", "job_id", x.JobID, "error", err)
		return common.WrapError(err, "saving extract")
	}
	return nil
}

func (r *recordRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.InvoiceExtract, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM extracts WHERE job_id = ?`, jobID.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "loading extract")
	}

	var x entity.InvoiceExtract
	if err := json.Unmarshal([]byte(payload), &x); err != nil {
		return nil, common.WrapError(err, "decoding extract payload")
	}
	return &x, nil
}

func (r *recordRepo) ExistingHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dedupe_hash FROM extracts WHERE dedupe_hash IS NOT NULL AND dedupe_hash != ''`)
	if err != nil {
		return nil, common.WrapError(err, "listing hashes")
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, common.WrapError(err, "scanning hash")
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}

func (r *recordRepo) ExistingIdentities(ctx context.Context) ([]dedup.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, COALESCE(vendor_id, COALESCE(vendor_name, '')),
		       COALESCE(invoice_id, ''), total_amount, COALESCE(invoice_date, '')
		FROM extracts`)
	if err != nil {
		return nil, common.WrapError(err, "listing identities")
	}
	defer rows.Close()

	var ids []dedup.Identity
	for rows.Next() {
		var (
			jobID  string
			id     dedup.Identity
			amount sql.NullFloat64
		)
		if err := rows.Scan(&jobID, &id.VendorID, &id.InvoiceID, &amount, &id.InvoiceDate); err != nil {
			return nil, common.WrapError(err, "scanning identity")
		}
		if parsed, err := uuid.Parse(jobID); err == nil {
			id.JobID = parsed
		}
		if amount.Valid {
			id.TotalAmount = &amount.Float64
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *recordRepo) ListExportable(ctx context.Context) ([]*entity.InvoiceExtract, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM extracts
		WHERE is_invalid = 0 AND is_duplicate = 0
		ORDER BY created_at`)
	if err != nil {
		return nil, common.WrapError(err, "listing exportable extracts")
	}
	defer rows.Close()

	var out []*entity.InvoiceExtract
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, common.WrapError(err, "scanning extract")
		}
		var x entity.InvoiceExtract
		if err := json.Unmarshal([]byte(payload), &x); err != nil {
			return nil, common.WrapError(err, "decoding extract payload")
		}
		out = append(out, &x)
	}
	return out, rows.Err()
}

// Metrics walks all stored payloads and aggregates field-level stats.
// Row counts come from the indexed columns; per-field confidence lives
// only in the payload JSON.
func (r *recordRepo) Metrics(ctx context.Context, autoAccept, flagFloor float64) (MetricsSummary, error) {
	var m MetricsSummary

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(is_invalid), 0),
		       COALESCE(SUM(is_duplicate), 0),
		       COALESCE(SUM(is_near_duplicate), 0),
		       COALESCE(SUM(needs_human_review), 0),
		       COALESCE(SUM(llm_used), 0)
		FROM extracts`).Scan(
		&m.TotalDocuments, &m.InvalidDocuments, &m.Duplicates,
		&m.NearDuplicates, &m.NeedsReview, &m.LLMUsed)
	if err != nil {
		return m, common.WrapError(err, "aggregating extract counts")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM extracts`)
	if err != nil {
		return m, common.WrapError(err, "listing payloads")
	}
	defer rows.Close()

	var (
		confSum     float64
		fieldCount  int
		heurFields  int
		foundFields int
	)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return m, common.WrapError(err, "scanning payload")
		}
		var x entity.InvoiceExtract
		if err := json.Unmarshal([]byte(payload), &x); err != nil {
			continue
		}
		for _, res := range x.Fields {
			fieldCount++
			confSum += res.Confidence
			switch {
			case res.Confidence >= autoAccept:
				m.AutoAcceptFields++
			case res.Confidence >= flagFloor:
				m.FlaggedFields++
			default:
				m.LowConfFields++
			}
			if res.Found() {
				foundFields++
				if res.Source == constants.SourceHeuristic {
					heurFields++
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return m, common.WrapError(err, "iterating payloads")
	}

	if fieldCount > 0 {
		m.AvgConfidence = confSum / float64(fieldCount)
	}
	if foundFields > 0 {
		m.HeuristicCoverage = float64(heurFields) / float64(foundFields)
	}
	return m, nil
}
