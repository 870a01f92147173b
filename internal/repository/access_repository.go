package repository

import (
	"context"
	"fmt"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/pkg/database"
)

// accessRepository implements AccessRepository interface
type accessRepository struct {
	db *database.Postgres
}

// NewAccessRepository creates a new access repository
func NewAccessRepository(db *database.Postgres) AccessRepository {
	return &accessRepository{db: db}
}

// HasPermission reports whether the exact (action, entity[, access]) tuple
// is reachable from the user through the role graph. A positive existence
// check: only a matching row grants, absence denies.
func (r *accessRepository) HasPermission(ctx context.Context, userID string, check domain.PermissionCheck) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE ur.user_id = $1
			  AND p.action = $2
			  AND p.entity = $3
			  AND ($4 = '' OR p.access = $4)
		)
	`

	var exists bool
	err := r.db.DB.QueryRowContext(ctx, query, userID, check.Action, check.Entity, check.Access).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate permission: %w", err)
	}

	return exists, nil
}

// HasRole reports whether the user holds the named role
func (r *accessRepository) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN roles ro ON ro.id = ur.role_id
			WHERE ur.user_id = $1 AND ro.name = $2
		)
	`

	var exists bool
	err := r.db.DB.QueryRowContext(ctx, query, userID, roleName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate role: %w", err)
	}

	return exists, nil
}

// AssignRole attaches the named role to the user
func (r *accessRepository) AssignRole(ctx context.Context, userID, roleName string) error {
	result, err := r.db.DB.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING
	`, userID, roleName)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// Either the role does not exist or the assignment already did.
		has, err := r.HasRole(ctx, userID, roleName)
		if err != nil {
			return err
		}
		if !has {
			return fmt.Errorf("role %q does not exist: %w", roleName, ErrNotFound)
		}
	}

	return nil
}
