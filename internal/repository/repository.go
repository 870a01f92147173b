package repository

import (
	"github.com/quillnotes/auth-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User         UserRepository
	Session      SessionRepository
	Connection   ConnectionRepository
	Access       AccessRepository
	Verification VerificationRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Session:      NewSessionRepository(db),
		Connection:   NewConnectionRepository(db),
		Access:       NewAccessRepository(db),
		Verification: NewVerificationRepository(db),
	}
}
