package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/Sundramrai3691/ReXcan/internal/canonicalize"
	"github.com/Sundramrai3691/ReXcan/internal/common"
)

// VendorRepository stores the canonical vendor vocabulary. The CSV file
// seeds the canonicalizer at startup; vendors discovered at runtime are
// upserted here so they survive restarts.
type VendorRepository interface {
	Upsert(ctx context.Context, v canonicalize.Vendor) error
	List(ctx context.Context) ([]canonicalize.Vendor, error)
}

type vendorRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewVendorRepository(store *Store, logger *slog.Logger) VendorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &vendorRepo{db: store.db, log: logger}
}

func (r *vendorRepo) Upsert(ctx context.Context, v canonicalize.Vendor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vendors (canonical_id, name, aliases, tax_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(canonical_id) DO UPDATE SET
			name=excluded.name, aliases=excluded.aliases, tax_id=excluded.tax_id`,
		v.CanonicalID, v.Name, strings.Join(v.Aliases, "|"), v.TaxID)
	if err != nil {
		r.log.Error("db.vendor_upsert_failed", "canonical_id", v.CanonicalID, "error", err)
		return common.WrapError(err, "upserting vendor")
	}
	return nil
}

func (r *vendorRepo) List(ctx context.Context) ([]canonicalize.Vendor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT canonical_id, name, COALESCE(aliases, ''), COALESCE(tax_id, '') FROM vendors ORDER BY canonical_id`)
	if err != nil {
		return nil, common.WrapError(err, "listing vendors")
	}
	defer rows.Close()

	var out []canonicalize.Vendor
	for rows.Next() {
		var (
			v       canonicalize.Vendor
			aliases string
		)
		if err := rows.Scan(&v.CanonicalID, &v.Name, &aliases, &v.TaxID); err != nil {
			return nil, common.WrapError(err, "scanning vendor")
		}
		if aliases != "" {
			v.Aliases = strings.Split(aliases, "|")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
