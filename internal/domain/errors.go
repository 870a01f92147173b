package domain

import (
	"errors"
	"fmt"
)

// Request-boundary error taxonomy. Every member is recoverable: handlers
// translate these into responses and nothing here crashes the process.
var (
	// ErrUnauthenticated means no session, an invalid session cookie, or an
	// expired session. Handlers answer with a login redirect or 401.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAuthProvider means the third-party handshake failed. Details stay
	// in server logs; users see a generic failure notice.
	ErrAuthProvider = errors.New("authentication provider failure")

	// ErrInvalidCode covers mismatch, expiry and unknown targets with one
	// shape so the reset-password path cannot be used for user enumeration.
	ErrInvalidCode = errors.New("invalid or expired verification code")

	// ErrAlreadyLinked means the external identity is attached to some
	// account already. Never resolved by reassigning the connection.
	ErrAlreadyLinked = errors.New("connection already linked to an account")

	// ErrNotFound covers missing entities, including entities that exist
	// but belong to another owner.
	ErrNotFound = errors.New("not found")
)

// ForbiddenError is returned when an authenticated user lacks a required
// permission or role. Distinct from ErrUnauthenticated.
type ForbiddenError struct {
	Permission *PermissionCheck
	Role       string
}

func (e *ForbiddenError) Error() string {
	if e.Permission != nil {
		return fmt.Sprintf("forbidden: required permission %s", e.Permission)
	}
	return fmt.Sprintf("forbidden: required role %s", e.Role)
}
