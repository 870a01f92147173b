package domain

import "time"

// User is the identity anchor of the system. Email and username are
// globally unique; email is stored lower-cased.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	Name      *string   `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Connection links a User to one external identity-provider account.
// (ProviderName, ProviderID) is unique across all users.
type Connection struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ProviderName string    `json:"provider_name" db:"provider_name"`
	ProviderID   string    `json:"provider_id" db:"provider_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ProviderProfile is the normalized result of a completed third-party
// authentication exchange.
type ProviderProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}
