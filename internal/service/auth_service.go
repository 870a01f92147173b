package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/email"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/utils"
	"go.uber.org/zap"
)

// defaultRole is assigned to every freshly created account.
const defaultRole = "user"

// authService implements AuthService
type authService struct {
	users         repository.UserRepository
	connections   repository.ConnectionRepository
	sessions      SessionManager
	verifications VerificationService
	stash         FlowStash
	mailer        email.Mailer
	bcryptCost    int
	logger        *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users repository.UserRepository,
	connections repository.ConnectionRepository,
	sessions SessionManager,
	verifications VerificationService,
	stash FlowStash,
	mailer email.Mailer,
	bcryptCost int,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:         users,
		connections:   connections,
		sessions:      sessions,
		verifications: verifications,
		stash:         stash,
		mailer:        mailer,
		bcryptCost:    bcryptCost,
		logger:        logger,
	}
}

// Login verifies a username/password pair. Unknown usernames, accounts
// without a password and wrong passwords all return (nil, nil) with zero
// rows written; only a correct pair mints a session.
func (s *authService) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	hash, err := s.users.GetPasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get password hash: %w", err)
	}

	if !utils.CheckPasswordHash(password, hash) {
		return nil, nil
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Signup creates a user with a password, the default role and a session.
func (s *authService) Signup(ctx context.Context, emailAddr, username, name, password string) (*domain.Session, error) {
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:    utils.SanitizeEmail(emailAddr),
		Username: username,
	}
	if name != "" {
		user.Name = &name
	}

	if err := s.users.Create(ctx, user, hash, defaultRole); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// SignupWithConnection finishes onboarding for a stashed provider
// profile: user (no password), default role, connection, session.
func (s *authService) SignupWithConnection(ctx context.Context, stash *OnboardingStash, username, name string) (*domain.Session, error) {
	if username == "" {
		username = stash.Username
	}
	if name == "" {
		name = stash.Name
	}

	user := &domain.User{
		Email:    stash.Email,
		Username: username,
	}
	if name != "" {
		user.Name = &name
	}

	if err := s.users.Create(ctx, user, "", defaultRole); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	err := s.connections.Create(ctx, &domain.Connection{
		UserID:       user.ID,
		ProviderName: stash.ProviderName,
		ProviderID:   stash.ProviderID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateConnection) {
			return nil, fmt.Errorf("provider identity was claimed during onboarding: %w", domain.ErrAlreadyLinked)
		}
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Logout destroys the session. Fail-open by way of the session manager:
// never an error the caller has to act on.
func (s *authService) Logout(ctx context.Context, sessionID string) {
	_ = s.sessions.Destroy(ctx, sessionID)
}

// GetUser returns a user by id
func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername returns a user by username
func (s *authService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account and everything hanging off it
func (s *authService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset code for an email or username and
// mails it. An unknown target succeeds silently so the endpoint cannot be
// used to enumerate accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, target string) error {
	user, err := s.users.GetByEmailOrUsername(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown target")
			return nil
		}
		return fmt.Errorf("failed to look up reset target: %w", err)
	}

	code, err := s.verifications.Issue(ctx, domain.VerificationResetPassword, user.Username)
	if err != nil {
		return fmt.Errorf("failed to issue reset code: %w", err)
	}

	s.sendAsync(user.Email, "Quill Notes password reset",
		fmt.Sprintf("Here's your verification code: %s", code))
	return nil
}

// ConfirmPasswordReset verifies a reset code and returns a one-shot stash
// token carrying the username forward to the actual reset. Unknown
// targets fail exactly like wrong codes.
func (s *authService) ConfirmPasswordReset(ctx context.Context, target, code string) (string, error) {
	user, err := s.users.GetByEmailOrUsername(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrInvalidCode
		}
		return "", fmt.Errorf("failed to look up reset target: %w", err)
	}

	if err := s.verifications.Verify(ctx, domain.VerificationResetPassword, user.Username, code); err != nil {
		return "", err
	}

	token, err := s.stash.PutResetUser(ctx, user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to stash reset target: %w", err)
	}

	return token, nil
}

// ResetPassword replaces the password of the user named by a confirmed
// reset stash.
func (s *authService) ResetPassword(ctx context.Context, stashToken, newPassword string) error {
	username, err := s.stash.TakeResetUser(ctx, stashToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("failed to take reset stash: %w", err)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get reset user: %w", err)
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to store new password: %w", err)
	}

	return nil
}

// RequestEmailChange issues a change-email code to the new address and
// stashes the pending address server-side.
func (s *authService) RequestEmailChange(ctx context.Context, userID, newEmail string) (string, error) {
	newEmail = utils.SanitizeEmail(newEmail)

	if existing, err := s.users.GetByEmail(ctx, newEmail); err == nil && existing != nil {
		return "", fmt.Errorf("email already in use: %w", repository.ErrDuplicateEmail)
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to check email availability: %w", err)
	}

	code, err := s.verifications.Issue(ctx, domain.VerificationChangeEmail, userID)
	if err != nil {
		return "", fmt.Errorf("failed to issue change-email code: %w", err)
	}

	token, err := s.stash.PutEmailChange(ctx, &EmailChangeStash{UserID: userID, NewEmail: newEmail})
	if err != nil {
		return "", fmt.Errorf("failed to stash email change: %w", err)
	}

	s.sendAsync(newEmail, "Quill Notes email change",
		fmt.Sprintf("Here's your verification code: %s", code))
	return token, nil
}

// ConfirmEmailChange verifies the code, applies the stashed address and
// notifies the old one. The stash must come from the same flow that
// requested the change. The code is checked before the stash is consumed,
// so a mistyped code leaves the stash intact for another attempt.
func (s *authService) ConfirmEmailChange(ctx context.Context, userID, stashToken, code string) error {
	if err := s.verifications.Verify(ctx, domain.VerificationChangeEmail, userID, code); err != nil {
		return err
	}

	stash, err := s.stash.TakeEmailChange(ctx, stashToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("failed to take email-change stash: %w", err)
	}
	if stash.UserID != userID {
		return domain.ErrInvalidCode
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	oldEmail := user.Email

	if err := s.users.UpdateEmail(ctx, userID, stash.NewEmail); err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}

	s.sendAsync(oldEmail, "Your Quill Notes email has been changed",
		fmt.Sprintf("Your account email is now %s. If you did not request this, contact support immediately. Account ID: %s", stash.NewEmail, userID))
	return nil
}

// RequestEmailLogin issues a login code to a registered email address.
// Unknown addresses succeed silently.
func (s *authService) RequestEmailLogin(ctx context.Context, emailAddr string) error {
	emailAddr = utils.SanitizeEmail(emailAddr)

	if _, err := s.users.GetByEmail(ctx, emailAddr); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("email login requested for unknown address")
			return nil
		}
		return fmt.Errorf("failed to look up email: %w", err)
	}

	code, err := s.verifications.Issue(ctx, domain.VerificationEmailLogin, emailAddr)
	if err != nil {
		return fmt.Errorf("failed to issue login code: %w", err)
	}

	s.sendAsync(emailAddr, "Quill Notes login code",
		fmt.Sprintf("Here's your verification code: %s", code))
	return nil
}

// LoginWithEmailCode redeems an email login code for a session. Unknown
// addresses fail exactly like wrong codes.
func (s *authService) LoginWithEmailCode(ctx context.Context, emailAddr, code string) (*domain.Session, error) {
	emailAddr = utils.SanitizeEmail(emailAddr)

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	if err := s.verifications.Verify(ctx, domain.VerificationEmailLogin, emailAddr, code); err != nil {
		return nil, err
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// sendAsync delivers notice email fire-and-forget; failures are logged,
// never surfaced to the requester.
func (s *authService) sendAsync(to, subject, body string) {
	go func() {
		if err := s.mailer.Send(context.Background(), to, subject, body); err != nil {
			s.logger.Error("failed to send email", zap.String("subject", subject), zap.Error(err))
		}
	}()
}
