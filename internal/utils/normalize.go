package utils

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var usernameStripRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateUsername checks a username against the allowed [a-zA-Z0-9_] set
func ValidateUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	return !usernameStripRegex.MatchString(username)
}

// ValidatePassword validates a password.
// Minimum 8 characters, at least one uppercase letter, one lowercase letter, one number.
func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

// SanitizeEmail lower-cases and trims an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeUsername maps an arbitrary provider username onto the allowed
// character set: disallowed runes become underscores, the rest is
// lower-cased.
func SanitizeUsername(username string) string {
	return strings.ToLower(usernameStripRegex.ReplaceAllString(username, "_"))
}
