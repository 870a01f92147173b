package domain

import "time"

// Verification types accepted by the one-time-code engine.
const (
	VerificationResetPassword = "reset-password"
	VerificationChangeEmail   = "change-email"
	VerificationEmailLogin    = "2fa-email"
)

// Verification is a one-time-code record. At most one live record exists
// per (Type, Target) pair; re-issuing overwrites the previous one.
type Verification struct {
	ID        string     `json:"id" db:"id"`
	Type      string     `json:"type" db:"type"`
	Target    string     `json:"target" db:"target"`
	Secret    string     `json:"-" db:"secret"`
	Algorithm string     `json:"algorithm" db:"algorithm"`
	Digits    int        `json:"digits" db:"digits"`
	Period    int64      `json:"period" db:"period"` // seconds
	Charset   string     `json:"charset" db:"charset"`
	ExpiresAt *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Expired reports whether the record can no longer be redeemed. Records
// without an expiration never expire on their own.
func (v *Verification) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && !v.ExpiresAt.After(now)
}
