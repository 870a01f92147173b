package repository

import "errors"

// Common repository errors. Uniqueness violations get their own sentinels
// so callers can distinguish them from other write failures.
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when a user with the email already exists
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateUsername is returned when a user with the username already exists
	ErrDuplicateUsername = errors.New("user with this username already exists")

	// ErrDuplicateConnection is returned when the (provider_name, provider_id)
	// pair is already attached to some user
	ErrDuplicateConnection = errors.New("provider connection already exists")

	// ErrLastLoginMethod is returned when deleting a connection would leave
	// its owner with no password and no connections
	ErrLastLoginMethod = errors.New("connection is the last login method")
)
