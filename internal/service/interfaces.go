package service

import (
	"context"

	"github.com/quillnotes/auth-service/internal/domain"
)

// SessionManager mints, resolves and destroys server-side sessions and
// translates session ids to and from signed cookie values.
type SessionManager interface {
	Create(ctx context.Context, userID string) (*domain.Session, error)
	Resolve(ctx context.Context, cookieValue string) (*domain.Session, error)
	Destroy(ctx context.Context, sessionID string) error
	Seal(sessionID string) (string, error)
	CookieTTL() int
}

// VerificationService issues and redeems one-time codes for a
// (type, target) pair. Codes are single-use; any failure reads as
// domain.ErrInvalidCode.
type VerificationService interface {
	Issue(ctx context.Context, vType, target string) (string, error)
	Verify(ctx context.Context, vType, target, code string) error
}

// AccessService answers authorization questions against the role and
// permission tables.
type AccessService interface {
	RequirePermission(ctx context.Context, userID, permission string) error
	RequireRole(ctx context.Context, userID, roleName string) error
}

// LinkingService drives the provider callback state machine and manages
// a user's connections.
type LinkingService interface {
	HandleCallback(ctx context.Context, providerName string, profile *domain.ProviderProfile, currentUserID, redirectTo string) (*LinkResult, error)
	TakeOnboarding(ctx context.Context, token string) (*OnboardingStash, error)
	ListConnections(ctx context.Context, userID string) ([]*domain.Connection, error)
	Unlink(ctx context.Context, userID, connectionID string) error
}

// AuthService covers credential login, signup, account lookup and the
// verification-driven email flows.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*domain.Session, error)
	Signup(ctx context.Context, emailAddr, username, name, password string) (*domain.Session, error)
	SignupWithConnection(ctx context.Context, stash *OnboardingStash, username, name string) (*domain.Session, error)
	Logout(ctx context.Context, sessionID string)

	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	DeleteUser(ctx context.Context, userID string) error

	RequestPasswordReset(ctx context.Context, target string) error
	ConfirmPasswordReset(ctx context.Context, target, code string) (string, error)
	ResetPassword(ctx context.Context, stashToken, newPassword string) error

	RequestEmailChange(ctx context.Context, userID, newEmail string) (string, error)
	ConfirmEmailChange(ctx context.Context, userID, stashToken, code string) error

	RequestEmailLogin(ctx context.Context, emailAddr string) error
	LoginWithEmailCode(ctx context.Context, emailAddr, code string) (*domain.Session, error)
}
