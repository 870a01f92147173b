package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/pkg/database"
)

// connectionRepository implements ConnectionRepository interface
type connectionRepository struct {
	db *database.Postgres
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *database.Postgres) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Create creates a new provider connection. The UNIQUE(provider_name,
// provider_id) constraint is the final arbiter under concurrent callbacks
// for the same external identity: a violation surfaces as
// ErrDuplicateConnection, never as a generic write failure.
func (r *connectionRepository) Create(ctx context.Context, conn *domain.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, `
		INSERT INTO connections (id, user_id, provider_name, provider_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, conn.ID, conn.UserID, conn.ProviderName, conn.ProviderID, conn.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("connection for %s/%s: %w", conn.ProviderName, conn.ProviderID, ErrDuplicateConnection)
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}

	return nil
}

// GetByProvider retrieves a connection by its (provider_name, provider_id)
// natural key.
func (r *connectionRepository) GetByProvider(ctx context.Context, providerName, providerID string) (*domain.Connection, error) {
	conn := &domain.Connection{}

	err := r.db.DB.QueryRowContext(ctx, `
		SELECT id, user_id, provider_name, provider_id, created_at
		FROM connections
		WHERE provider_name = $1 AND provider_id = $2
	`, providerName, providerID).Scan(&conn.ID, &conn.UserID, &conn.ProviderName, &conn.ProviderID, &conn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("connection not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return conn, nil
}

// GetByUserID retrieves all provider connections for a user
func (r *connectionRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Connection, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, user_id, provider_name, provider_id, created_at
		FROM connections
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connections by user id: %w", err)
	}
	defer rows.Close()

	var conns []*domain.Connection
	for rows.Next() {
		conn := &domain.Connection{}
		if err := rows.Scan(&conn.ID, &conn.UserID, &conn.ProviderName, &conn.ProviderID, &conn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}

	return conns, nil
}

// DeleteOwned removes one of the user's connections. The user's connection
// rows are locked for the duration of the transaction, so two concurrent
// unlinks of a passwordless two-connection account cannot both pass the
// last-login-method check.
func (r *connectionRepository) DeleteOwned(ctx context.Context, id, userID string) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM connections WHERE user_id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to lock connections: %w", err)
	}

	count := 0
	found := false
	for rows.Next() {
		var connID string
		if err := rows.Scan(&connID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan connection: %w", err)
		}
		count++
		if connID == id {
			found = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate connections: %w", err)
	}

	if !found {
		// Also covers connections that belong to someone else.
		return fmt.Errorf("connection with id %s not found: %w", id, ErrNotFound)
	}

	if count == 1 {
		var hasPassword bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM passwords WHERE user_id = $1)
		`, userID).Scan(&hasPassword)
		if err != nil {
			return fmt.Errorf("failed to check password presence: %w", err)
		}
		if !hasPassword {
			return ErrLastLoginMethod
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit connection delete: %w", err)
	}

	return nil
}
