package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// AuditRepository persists correction events. Entries are append-only.
type AuditRepository interface {
	Append(ctx context.Context, e entity.AuditEntry) error
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]entity.AuditEntry, error)
}

type auditRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewAuditRepository(store *Store, logger *slog.Logger) AuditRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &auditRepo{db: store.db, log: logger}
}

func (r *auditRepo) Append(ctx context.Context, e entity.AuditEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_entries (job_id, field, old_value, new_value, user_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.JobID.String(), string(e.Field), e.OldValue, e.NewValue, e.UserID, e.Reason,
		ts.Format(time.RFC3339Nano))
	if err != nil {
		r.log.Error("db.audit_append_failed", "job_id", e.JobID, "field", e.Field, "error", err)
		return common.WrapError(err, "appending audit entry")
	}
	r.log.Info("audit.recorded", "job_id", e.JobID, "field", e.Field, "user_id", e.UserID)
	return nil
}

func (r *auditRepo) ListForJob(ctx context.Context, jobID uuid.UUID) ([]entity.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, field, old_value, new_value, user_id, reason, created_at
		FROM audit_entries WHERE job_id = ? ORDER BY id`, jobID.String())
	if err != nil {
		return nil, common.WrapError(err, "listing audit entries")
	}
	defer rows.Close()

	var out []entity.AuditEntry
	for rows.Next() {
		var (
			e       entity.AuditEntry
			rawJob  string
			rawTime string
			field   string
		)
		if err := rows.Scan(&rawJob, &field, &e.OldValue, &e.NewValue, &e.UserID, &e.Reason, &rawTime); err != nil {
			return nil, common.WrapError(err, "scanning audit entry")
		}
		if parsed, err := uuid.Parse(rawJob); err == nil {
			e.JobID = parsed
		}
		if ts, err := time.Parse(time.RFC3339Nano, rawTime); err == nil {
			e.Timestamp = ts
		}
		e.Field = constants.FieldName(field)
		out = append(out, e)
	}
	return out, rows.Err()
}
