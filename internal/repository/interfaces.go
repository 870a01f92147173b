package repository

import (
	"context"
	"time"

	"github.com/quillnotes/auth-service/internal/domain"
)

// UserRepository defines methods for user and password operations.
// Passwords are zero-or-one per user and live behind this interface so no
// hash ever leaves the persistence layer attached to a User value.
type UserRepository interface {
	// Create inserts the user, an optional password hash and the default
	// role assignment in one transaction.
	Create(ctx context.Context, user *domain.User, passwordHash, defaultRole string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByEmailOrUsername resolves the reset-password target.
	GetByEmailOrUsername(ctx context.Context, target string) (*domain.User, error)
	UpdateEmail(ctx context.Context, userID, email string) error
	GetPasswordHash(ctx context.Context, userID string) (string, error)
	SetPasswordHash(ctx context.Context, userID, hash string) error
	Delete(ctx context.Context, userID string) error
}

// SessionRepository defines methods for session operations
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Delete removes a session. A missing row is not an error.
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) error
}

// ConnectionRepository defines methods for provider connection operations
type ConnectionRepository interface {
	Create(ctx context.Context, conn *domain.Connection) error
	GetByProvider(ctx context.Context, providerName, providerID string) (*domain.Connection, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Connection, error)
	// DeleteOwned removes one of the user's connections unless it is the
	// user's last login method (ErrLastLoginMethod). A connection that does
	// not exist or belongs to someone else reads as ErrNotFound.
	DeleteOwned(ctx context.Context, id, userID string) error
}

// AccessRepository evaluates the role/permission graph. Authorization is
// always resolved transitively: user -> user_roles -> role_permissions ->
// permissions.
type AccessRepository interface {
	HasPermission(ctx context.Context, userID string, check domain.PermissionCheck) (bool, error)
	HasRole(ctx context.Context, userID, roleName string) (bool, error)
	AssignRole(ctx context.Context, userID, roleName string) error
}

// VerificationRepository defines methods for one-time-code records
type VerificationRepository interface {
	// Upsert overwrites any live record for the same (type, target).
	Upsert(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, vType, target string) (*domain.Verification, error)
	Delete(ctx context.Context, vType, target string) error
}
