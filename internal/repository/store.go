package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sundramrai3691/ReXcan/internal/common"
)

// Store owns the SQLite handle shared by the repositories.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS extracts (
	job_id              TEXT PRIMARY KEY,
	invoice_id          TEXT,
	vendor_name         TEXT,
	vendor_id           TEXT,
	invoice_date        TEXT,
	due_date            TEXT,
	total_amount        REAL,
	amount_subtotal     REAL,
	amount_tax          REAL,
	currency            TEXT,
	dedupe_hash         TEXT,
	is_duplicate        INTEGER NOT NULL DEFAULT 0,
	is_near_duplicate   INTEGER NOT NULL DEFAULT 0,
	arithmetic_mismatch INTEGER NOT NULL DEFAULT 0,
	needs_human_review  INTEGER NOT NULL DEFAULT 0,
	is_invalid          INTEGER NOT NULL DEFAULT 0,
	llm_used            INTEGER NOT NULL DEFAULT 0,
	payload             TEXT NOT NULL,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extracts_hash ON extracts(dedupe_hash);
CREATE INDEX IF NOT EXISTS idx_extracts_created ON extracts(created_at);

CREATE TABLE IF NOT EXISTS audit_entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT NOT NULL,
	field      TEXT NOT NULL,
	old_value  TEXT,
	new_value  TEXT,
	user_id    TEXT,
	reason     TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_job ON audit_entries(job_id);

CREATE TABLE IF NOT EXISTS vendors (
	canonical_id TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	aliases      TEXT,
	tax_id       TEXT
);
`

// Open opens (or creates) the database and applies the schema.
func Open(ctx context.Context, path string, busyTimeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("db.open", "path", path)

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.WrapError(err, "opening database")
	}
	// modernc sqlite is single-writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "applying schema")
	}

	logger.Info("db.ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the handle.
func (s *Store) Close() error {
	s.logger.Info("db.close")
	return s.db.Close()
}

// HealthCheck pings the database with a bounded timeout.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}
