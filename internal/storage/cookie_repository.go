package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"tubegrab/internal/models"
)

// CookieRepository persists encrypted per-user cookie records. One record per
// owner; uploads replace the prior record wholesale.
type CookieRepository struct {
	db *DB
}

// NewCookieRepository creates a new CookieRepository.
func NewCookieRepository(db *DB) *CookieRepository {
	return &CookieRepository{db: db}
}

// Upsert stores the record, replacing any existing record for the owner.
func (r *CookieRepository) Upsert(ctx context.Context, rec *models.CookieRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cookies (owner_id, ciphertext, source_label, uploaded_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			source_label = excluded.source_label,
			uploaded_at = excluded.uploaded_at,
			expires_at = excluded.expires_at
	`, rec.OwnerID, rec.Ciphertext, rec.SourceLabel, rec.UploadedAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		return errors.Wrap(err, "failed to store cookie record")
	}
	return nil
}

// Get returns the owner's record, or (nil, nil) when absent. Expiry is the
// caller's concern: the vault applies models.CookieRecord.Expired so the lazy
// read and the sweep share one predicate.
func (r *CookieRepository) Get(ctx context.Context, ownerID string) (*models.CookieRecord, error) {
	var rec models.CookieRecord
	var sourceLabel sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT owner_id, ciphertext, source_label, uploaded_at, expires_at FROM cookies WHERE owner_id = ?
	`, ownerID).Scan(&rec.OwnerID, &rec.Ciphertext, &sourceLabel, &rec.UploadedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cookie record")
	}
	rec.SourceLabel = sourceLabel.String
	return &rec, nil
}

// Delete removes the owner's record. Deleting a missing record is not an error.
func (r *CookieRepository) Delete(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cookies WHERE owner_id = ?`, ownerID)
	if err != nil {
		return errors.Wrap(err, "failed to delete cookie record")
	}
	return nil
}

// DeleteExpired physically removes records that Expired(now) would report as
// absent, and returns how many were swept.
func (r *CookieRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cookies WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep expired cookie records")
	}
	return res.RowsAffected()
}
