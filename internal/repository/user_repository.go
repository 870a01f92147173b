package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/pkg/database"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

const userColumns = "id, email, username, name, created_at, updated_at"

// Create creates a user, its optional password hash and the default role
// assignment in one transaction, so a half-created account never exists.
func (r *userRepository) Create(ctx context.Context, user *domain.User, passwordHash, defaultRole string) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, username, name, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6)
	`, user.ID, user.Email, user.Username, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapUserUniqueViolation(err))
	}

	if passwordHash != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO passwords (user_id, hash) VALUES ($1, $2)
		`, user.ID, passwordHash)
		if err != nil {
			return fmt.Errorf("failed to store password: %w", err)
		}
	}

	if defaultRole != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = $2
		`, user.ID, defaultRole)
		if err != nil {
			return fmt.Errorf("failed to assign default role: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("default role %q does not exist: %w", defaultRole, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user creation: %w", err)
	}

	user.Email = strings.ToLower(user.Email)
	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email = lower($1)", email)
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "lower(username) = lower($1)", username)
}

// GetByEmailOrUsername retrieves a user by either natural key
func (r *userRepository) GetByEmailOrUsername(ctx context.Context, target string) (*domain.User, error) {
	return r.getOne(ctx, "email = lower($1) OR lower(username) = lower($1)", target)
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s", userColumns, where)

	user := &domain.User{}
	var name sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&name,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if name.Valid {
		user.Name = &name.String
	}

	return user, nil
}

// UpdateEmail updates a user's email address
func (r *userRepository) UpdateEmail(ctx context.Context, userID, email string) error {
	result, err := r.db.DB.ExecContext(ctx, `
		UPDATE users SET email = lower($2), updated_at = $3 WHERE id = $1
	`, userID, email, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update email: %w", mapUserUniqueViolation(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// GetPasswordHash returns the stored bcrypt hash for a user. Users created
// through a provider connection have no password row.
func (r *userRepository) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := r.db.DB.QueryRowContext(ctx, `
		SELECT hash FROM passwords WHERE user_id = $1
	`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no password for user: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to get password hash: %w", err)
	}
	return hash, nil
}

// SetPasswordHash creates or replaces a user's password hash
func (r *userRepository) SetPasswordHash(ctx context.Context, userID, hash string) error {
	_, err := r.db.DB.ExecContext(ctx, `
		INSERT INTO passwords (user_id, hash) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET hash = EXCLUDED.hash
	`, userID, hash)
	if err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	return nil
}

// Delete removes a user; passwords, sessions, connections and role
// assignments go with it via ON DELETE CASCADE.
func (r *userRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// mapUserUniqueViolation converts pq unique violations (23505) into typed
// sentinels keyed by the violated constraint.
func mapUserUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch {
		case strings.Contains(pqErr.Constraint, "email"):
			return ErrDuplicateEmail
		case strings.Contains(pqErr.Constraint, "username"):
			return ErrDuplicateUsername
		}
	}
	return err
}
