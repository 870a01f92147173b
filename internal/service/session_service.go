package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/utils"
	"go.uber.org/zap"
)

// sessionService implements SessionManager
type sessionService struct {
	sessions repository.SessionRepository
	signer   *utils.CookieSigner
	ttl      time.Duration
	logger   *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	sessions repository.SessionRepository,
	signer *utils.CookieSigner,
	ttl time.Duration,
	logger *zap.Logger,
) SessionManager {
	return &sessionService{
		sessions: sessions,
		signer:   signer,
		ttl:      ttl,
		logger:   logger,
	}
}

// Create inserts a session expiring at now + TTL. It has no side effects
// beyond the insert; cookies are the handlers' business.
func (s *sessionService) Create(ctx context.Context, userID string) (*domain.Session, error) {
	session := &domain.Session{
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Resolve maps a session cookie value to a live session. An absent cookie
// yields plain ErrUnauthenticated; a cookie that is present but tampered,
// dangling or expired yields an error wrapping both ErrUnauthenticated and
// ErrStaleCookie so callers schedule the cookie for destruction and can
// log the two cases apart. Both fail closed.
func (s *sessionService) Resolve(ctx context.Context, cookieValue string) (*domain.Session, error) {
	if cookieValue == "" {
		return nil, domain.ErrUnauthenticated
	}

	sessionID, err := s.signer.Open(cookieValue)
	if err != nil {
		s.logger.Warn("rejected tampered session cookie", zap.Error(err))
		return nil, staleCookie("tampered session cookie")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, staleCookie("session cookie references no session")
		}
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	if session.Expired(time.Now()) {
		return nil, staleCookie("session expired")
	}

	return session, nil
}

// Destroy deletes the session row. Fail-open: a missing row or a storage
// error never blocks logout, callers clear client state regardless.
func (s *sessionService) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to delete session, clearing cookie anyway",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	return nil
}

// Seal signs a session id into a cookie value
func (s *sessionService) Seal(sessionID string) (string, error) {
	return s.signer.Seal(sessionID)
}

// CookieTTL returns the session cookie Max-Age in seconds
func (s *sessionService) CookieTTL() int {
	return s.signer.TTL()
}

// ErrStaleCookie marks an unauthenticated result caused by a cookie that
// was present but invalid, as opposed to absent.
var ErrStaleCookie = errors.New("stale session cookie")

func staleCookie(reason string) error {
	return fmt.Errorf("%s: %w", reason, errors.Join(ErrStaleCookie, domain.ErrUnauthenticated))
}
