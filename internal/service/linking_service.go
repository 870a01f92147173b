package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/utils"
	"go.uber.org/zap"
)

// LinkOutcome identifies which branch of the callback state machine fired.
type LinkOutcome int

const (
	// OutcomeAlreadyConnectedSelf: the identity is already linked to the
	// logged-in user. No writes.
	OutcomeAlreadyConnectedSelf LinkOutcome = iota
	// OutcomeAlreadyConnectedOther: the identity belongs to a different
	// account than the logged-in one. No writes; never reassigned.
	OutcomeAlreadyConnectedOther
	// OutcomeLinkedToCurrentUser: a logged-in user linked a new provider.
	OutcomeLinkedToCurrentUser
	// OutcomeSessionFromExistingLink: login via a known connection.
	OutcomeSessionFromExistingLink
	// OutcomeLinkedAndSession: no session, unknown connection, but a user
	// with the provider-verified email exists; auto-link and log in.
	OutcomeLinkedAndSession
	// OutcomeBeginOnboarding: brand-new identity; profile stashed, user
	// sent to onboarding.
	OutcomeBeginOnboarding
)

// LinkResult is the decision of one provider-callback evaluation.
type LinkResult struct {
	Outcome LinkOutcome
	// UserID is the account the identity resolved to, empty for onboarding.
	UserID string
	// Session is set for the branches that log the user in.
	Session *domain.Session
	// StashToken and OnboardingPath are set for OutcomeBeginOnboarding.
	StashToken     string
	OnboardingPath string
}

// ErrLastLoginMethod is returned when unlinking would leave an account
// with no password and no connections.
var ErrLastLoginMethod = errors.New("cannot remove the last login method")

// linkingService implements LinkingService
type linkingService struct {
	users       repository.UserRepository
	connections repository.ConnectionRepository
	sessions    SessionManager
	stash       FlowStash
	logger      *zap.Logger
}

// NewLinkingService creates a new linking service
func NewLinkingService(
	users repository.UserRepository,
	connections repository.ConnectionRepository,
	sessions SessionManager,
	stash FlowStash,
	logger *zap.Logger,
) LinkingService {
	return &linkingService{
		users:       users,
		connections: connections,
		sessions:    sessions,
		stash:       stash,
		logger:      logger,
	}
}

// HandleCallback reconciles a freshly resolved provider profile with the
// current session state. First match wins:
//
//  1. known connection + session, same owner     -> AlreadyConnectedSelf
//  2. known connection + session, other owner    -> AlreadyConnectedOther
//  3. session, unknown connection                -> link to current user
//  4. no session, known connection               -> new session for owner
//  5. no session, unknown connection, email hit  -> link + new session
//  6. otherwise                                  -> begin onboarding
//
// currentUserID comes from the browser session, independent of the
// provider flow; redirectTo is the pending post-auth destination, consumed
// by every branch and folded into the onboarding URL by branch 6 only.
func (s *linkingService) HandleCallback(
	ctx context.Context,
	providerName string,
	profile *domain.ProviderProfile,
	currentUserID string,
	redirectTo string,
) (*LinkResult, error) {
	existing, err := s.connections.GetByProvider(ctx, providerName, profile.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up connection: %w", err)
	}
	found := existing != nil

	if found && currentUserID != "" {
		if existing.UserID == currentUserID {
			return &LinkResult{Outcome: OutcomeAlreadyConnectedSelf, UserID: currentUserID}, nil
		}
		return &LinkResult{Outcome: OutcomeAlreadyConnectedOther, UserID: currentUserID}, nil
	}

	if currentUserID != "" {
		err := s.connections.Create(ctx, &domain.Connection{
			UserID:       currentUserID,
			ProviderName: providerName,
			ProviderID:   profile.ID,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateConnection) {
				// Lost a race against a concurrent callback for the same
				// external identity. The constraint is the arbiter: re-read
				// and resolve to the already-connected branch.
				return s.resolveRace(ctx, providerName, profile.ID, currentUserID)
			}
			return nil, fmt.Errorf("failed to link connection: %w", err)
		}
		return &LinkResult{Outcome: OutcomeLinkedToCurrentUser, UserID: currentUserID}, nil
	}

	if found {
		session, err := s.sessions.Create(ctx, existing.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to create session for existing link: %w", err)
		}
		return &LinkResult{
			Outcome: OutcomeSessionFromExistingLink,
			UserID:  existing.UserID,
			Session: session,
		}, nil
	}

	// The provider is trusted to have verified the email, so a matching
	// local account gets the connection attached and a fresh login.
	user, err := s.users.GetByEmail(ctx, utils.SanitizeEmail(profile.Email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}

	if user != nil {
		err := s.connections.Create(ctx, &domain.Connection{
			UserID:       user.ID,
			ProviderName: providerName,
			ProviderID:   profile.ID,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateConnection) {
				// Race: the identity was claimed between the lookup and the
				// insert. Log in as whoever owns it now.
				return s.loginAsOwner(ctx, providerName, profile.ID)
			}
			return nil, fmt.Errorf("failed to link connection by email match: %w", err)
		}

		session, err := s.sessions.Create(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create session after email link: %w", err)
		}
		return &LinkResult{
			Outcome: OutcomeLinkedAndSession,
			UserID:  user.ID,
			Session: session,
		}, nil
	}

	return s.beginOnboarding(ctx, providerName, profile, redirectTo)
}

// resolveRace re-reads the connection after a duplicate-insert and
// downgrades to the matching already-connected outcome.
func (s *linkingService) resolveRace(ctx context.Context, providerName, providerID, currentUserID string) (*LinkResult, error) {
	existing, err := s.connections.GetByProvider(ctx, providerName, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read connection after conflict: %w", err)
	}
	if existing.UserID == currentUserID {
		return &LinkResult{Outcome: OutcomeAlreadyConnectedSelf, UserID: currentUserID}, nil
	}
	return &LinkResult{Outcome: OutcomeAlreadyConnectedOther, UserID: currentUserID}, nil
}

// loginAsOwner resolves a lost branch-5 race: the external identity
// belongs to exactly one account, so mint a session for that account.
func (s *linkingService) loginAsOwner(ctx context.Context, providerName, providerID string) (*LinkResult, error) {
	existing, err := s.connections.GetByProvider(ctx, providerName, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read connection after conflict: %w", err)
	}
	session, err := s.sessions.Create(ctx, existing.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for connection owner: %w", err)
	}
	return &LinkResult{
		Outcome: OutcomeSessionFromExistingLink,
		UserID:  existing.UserID,
		Session: session,
	}, nil
}

func (s *linkingService) beginOnboarding(ctx context.Context, providerName string, profile *domain.ProviderProfile, redirectTo string) (*LinkResult, error) {
	stash := &OnboardingStash{
		Email:        utils.SanitizeEmail(profile.Email),
		Username:     utils.SanitizeUsername(profile.Username),
		Name:         profile.Name,
		ImageURL:     profile.ImageURL,
		ProviderName: providerName,
		ProviderID:   profile.ID,
		RedirectTo:   redirectTo,
	}

	token, err := s.stash.PutOnboarding(ctx, stash)
	if err != nil {
		return nil, fmt.Errorf("failed to stash onboarding profile: %w", err)
	}

	path := "/onboarding/" + url.PathEscape(providerName)
	if redirectTo != "" {
		path += "?" + url.Values{"redirectTo": {redirectTo}}.Encode()
	}

	return &LinkResult{
		Outcome:        OutcomeBeginOnboarding,
		StashToken:     token,
		OnboardingPath: path,
	}, nil
}

// TakeOnboarding consumes a stashed onboarding profile
func (s *linkingService) TakeOnboarding(ctx context.Context, token string) (*OnboardingStash, error) {
	return s.stash.TakeOnboarding(ctx, token)
}

// ListConnections returns all provider connections of a user
func (s *linkingService) ListConnections(ctx context.Context, userID string) ([]*domain.Connection, error) {
	return s.connections.GetByUserID(ctx, userID)
}

// Unlink removes one of the user's own connections. It refuses to remove
// the last way into the account: a user without a password must keep at
// least one connection. The storage layer arbitrates that guard under
// concurrent unlinks.
func (s *linkingService) Unlink(ctx context.Context, userID, connectionID string) error {
	if err := s.connections.DeleteOwned(ctx, connectionID, userID); err != nil {
		if errors.Is(err, repository.ErrLastLoginMethod) {
			return ErrLastLoginMethod
		}
		if errors.Is(err, repository.ErrNotFound) {
			// Also covers connections that exist but belong to someone else.
			return fmt.Errorf("connection %s: %w", connectionID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	s.logger.Info("connection unlinked",
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID),
	)
	return nil
}
