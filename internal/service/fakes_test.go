package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/repository"
)

// In-memory repository fakes. They enforce the same uniqueness rules the
// real schema does so race downgrades can be exercised without Postgres.

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	passwords map[string]string
	roles     map[string][]string
	writes    int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     make(map[string]*domain.User),
		passwords: make(map[string]string),
		roles:     make(map[string][]string),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User, passwordHash, defaultRole string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
		if strings.EqualFold(u.Username, user.Username) {
			return repository.ErrDuplicateUsername
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	r.users[user.ID] = user
	if passwordHash != "" {
		r.passwords[user.ID] = passwordHash
	}
	if defaultRole != "" {
		r.roles[user.ID] = append(r.roles[user.ID], defaultRole)
	}
	r.writes++
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmailOrUsername(ctx context.Context, target string) (*domain.User, error) {
	if u, err := r.GetByEmail(ctx, target); err == nil {
		return u, nil
	}
	return r.GetByUsername(ctx, target)
}

func (r *fakeUserRepo) UpdateEmail(_ context.Context, userID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Email = email
	r.writes++
	return nil
}

func (r *fakeUserRepo) GetPasswordHash(_ context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hash, ok := r.passwords[userID]; ok {
		return hash, nil
	}
	return "", repository.ErrNotFound
}

func (r *fakeUserRepo) SetPasswordHash(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return repository.ErrNotFound
	}
	r.passwords[userID] = hash
	r.writes++
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, userID)
	delete(r.passwords, userID)
	delete(r.roles, userID)
	r.writes++
	return nil
}

func (r *fakeUserRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	deleteErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, before time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(before) {
			delete(r.sessions, id)
		}
	}
	return nil
}

type fakeConnectionRepo struct {
	mu          sync.Mutex
	connections map[string]*domain.Connection
	// raceOwner simulates losing an insert race: the next Create returns a
	// duplicate error after registering the connection for this owner.
	raceOwner string
	// hasPassword backs DeleteOwned's last-login-method guard.
	hasPassword func(userID string) bool
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{connections: make(map[string]*domain.Connection)}
}

func (r *fakeConnectionRepo) Create(_ context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.raceOwner != "" {
		stolen := &domain.Connection{
			ID:           uuid.New().String(),
			UserID:       r.raceOwner,
			ProviderName: conn.ProviderName,
			ProviderID:   conn.ProviderID,
			CreatedAt:    time.Now(),
		}
		r.connections[stolen.ID] = stolen
		r.raceOwner = ""
		return repository.ErrDuplicateConnection
	}

	for _, c := range r.connections {
		if c.ProviderName == conn.ProviderName && c.ProviderID == conn.ProviderID {
			return repository.ErrDuplicateConnection
		}
	}

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.CreatedAt = time.Now()
	copied := *conn
	r.connections[conn.ID] = &copied
	return nil
}

func (r *fakeConnectionRepo) GetByProvider(_ context.Context, providerName, providerID string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		if c.ProviderName == providerName && c.ProviderID == providerID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeConnectionRepo) GetByUserID(_ context.Context, userID string) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.connections {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) DeleteOwned(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok || conn.UserID != userID {
		return repository.ErrNotFound
	}

	count := 0
	for _, c := range r.connections {
		if c.UserID == userID {
			count++
		}
	}
	if count == 1 && (r.hasPassword == nil || !r.hasPassword(userID)) {
		return repository.ErrLastLoginMethod
	}

	delete(r.connections, id)
	return nil
}

type fakeAccessRepo struct {
	mu          sync.Mutex
	permissions map[string][]domain.PermissionCheck
	roles       map[string][]string
}

func newFakeAccessRepo() *fakeAccessRepo {
	return &fakeAccessRepo{
		permissions: make(map[string][]domain.PermissionCheck),
		roles:       make(map[string][]string),
	}
}

func (r *fakeAccessRepo) grant(userID string, check domain.PermissionCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions[userID] = append(r.permissions[userID], check)
}

func (r *fakeAccessRepo) HasPermission(_ context.Context, userID string, check domain.PermissionCheck) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.permissions[userID] {
		if p.Action == check.Action && p.Entity == check.Entity && (check.Access == "" || p.Access == check.Access) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAccessRepo) HasRole(_ context.Context, userID, roleName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.roles[userID] {
		if name == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAccessRepo) AssignRole(_ context.Context, userID, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[userID] = append(r.roles[userID], roleName)
	return nil
}

type fakeVerificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.Verification
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{records: make(map[string]*domain.Verification)}
}

func verificationKey(vType, target string) string {
	return vType + "|" + target
}

func (r *fakeVerificationRepo) Upsert(_ context.Context, v *domain.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = time.Now()
	copied := *v
	r.records[verificationKey(v.Type, v.Target)] = &copied
	return nil
}

func (r *fakeVerificationRepo) Get(_ context.Context, vType, target string) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.records[verificationKey(vType, target)]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVerificationRepo) Delete(_ context.Context, vType, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, verificationKey(vType, target))
	return nil
}

type fakeStash struct {
	mu         sync.Mutex
	onboarding map[string]*OnboardingStash
	resets     map[string]string
	changes    map[string]*EmailChangeStash
	seq        int
}

func newFakeStash() *fakeStash {
	return &fakeStash{
		onboarding: make(map[string]*OnboardingStash),
		resets:     make(map[string]string),
		changes:    make(map[string]*EmailChangeStash),
	}
}

func (s *fakeStash) nextToken() string {
	s.seq++
	return fmt.Sprintf("token-%d", s.seq)
}

func (s *fakeStash) PutOnboarding(_ context.Context, stash *OnboardingStash) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.nextToken()
	s.onboarding[token] = stash
	return token, nil
}

func (s *fakeStash) TakeOnboarding(_ context.Context, token string) (*OnboardingStash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stash, ok := s.onboarding[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.onboarding, token)
	return stash, nil
}

func (s *fakeStash) PutResetUser(_ context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.nextToken()
	s.resets[token] = username
	return token, nil
}

func (s *fakeStash) TakeResetUser(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.resets[token]
	if !ok {
		return "", domain.ErrNotFound
	}
	delete(s.resets, token)
	return username, nil
}

func (s *fakeStash) PutEmailChange(_ context.Context, stash *EmailChangeStash) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.nextToken()
	s.changes[token] = stash
	return token, nil
}

func (s *fakeStash) TakeEmailChange(_ context.Context, token string) (*EmailChangeStash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stash, ok := s.changes[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.changes, token)
	return stash, nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}
