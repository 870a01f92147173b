package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/pkg/database"
)

// verificationRepository implements VerificationRepository interface
type verificationRepository struct {
	db *database.Postgres
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *database.Postgres) VerificationRepository {
	return &verificationRepository{db: db}
}

// Upsert stores a verification record, overwriting any previous record for
// the same (type, target) so at most one live code exists per pair.
func (r *verificationRepository) Upsert(ctx context.Context, v *domain.Verification) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, `
		INSERT INTO verifications (id, type, target, secret, algorithm, digits, period, charset, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (type, target) DO UPDATE SET
			secret = EXCLUDED.secret,
			algorithm = EXCLUDED.algorithm,
			digits = EXCLUDED.digits,
			period = EXCLUDED.period,
			charset = EXCLUDED.charset,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, v.ID, v.Type, v.Target, v.Secret, v.Algorithm, v.Digits, v.Period, v.Charset, v.ExpiresAt, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert verification: %w", err)
	}

	return nil
}

// Get retrieves the live verification record for a (type, target) pair
func (r *verificationRepository) Get(ctx context.Context, vType, target string) (*domain.Verification, error) {
	v := &domain.Verification{}
	var expiresAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, `
		SELECT id, type, target, secret, algorithm, digits, period, charset, expires_at, created_at
		FROM verifications
		WHERE type = $1 AND target = $2
	`, vType, target).Scan(
		&v.ID, &v.Type, &v.Target, &v.Secret, &v.Algorithm,
		&v.Digits, &v.Period, &v.Charset, &expiresAt, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}

	if expiresAt.Valid {
		v.ExpiresAt = &expiresAt.Time
	}

	return v, nil
}

// Delete consumes the record for a (type, target) pair. Deleting a record
// that is already gone is not an error.
func (r *verificationRepository) Delete(ctx context.Context, vType, target string) error {
	_, err := r.db.DB.ExecContext(ctx, `
		DELETE FROM verifications WHERE type = $1 AND target = $2
	`, vType, target)
	if err != nil {
		return fmt.Errorf("failed to delete verification: %w", err)
	}
	return nil
}
