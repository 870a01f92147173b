package service

import (
	"context"
	"fmt"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/repository"
)

// accessService implements AccessService
type accessService struct {
	access repository.AccessRepository
}

// NewAccessService creates a new access service
func NewAccessService(access repository.AccessRepository) AccessService {
	return &accessService{access: access}
}

// RequirePermission parses an "action:entity[:access]" requirement and
// grants iff the exact tuple is reachable through the user's role graph.
// Absence denies with a ForbiddenError echoing the required tuple.
func (s *accessService) RequirePermission(ctx context.Context, userID, permission string) error {
	check, err := domain.ParsePermission(permission)
	if err != nil {
		return fmt.Errorf("failed to parse permission requirement: %w", err)
	}

	ok, err := s.access.HasPermission(ctx, userID, check)
	if err != nil {
		return fmt.Errorf("failed to evaluate permission: %w", err)
	}
	if !ok {
		return &domain.ForbiddenError{Permission: &check}
	}

	return nil
}

// RequireRole grants iff the user holds the named role
func (s *accessService) RequireRole(ctx context.Context, userID, roleName string) error {
	ok, err := s.access.HasRole(ctx, userID, roleName)
	if err != nil {
		return fmt.Errorf("failed to evaluate role: %w", err)
	}
	if !ok {
		return &domain.ForbiddenError{Role: roleName}
	}

	return nil
}
