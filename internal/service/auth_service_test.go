package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type authFixture struct {
	users       *fakeUserRepo
	connections *fakeConnectionRepo
	sessionRepo *fakeSessionRepo
	stash       *fakeStash
	mailer      *fakeMailer
	svc         AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := newFakeUserRepo()
	connections := newFakeConnectionRepo()
	sessionRepo := newFakeSessionRepo()
	stash := newFakeStash()
	mailer := &fakeMailer{}

	signer := utils.NewCookieSigner(testCookieSecret, time.Hour)
	sessions := NewSessionManager(sessionRepo, signer, time.Hour, zap.NewNop())
	verifications := NewVerificationService(newFakeVerificationRepo(), testCodeParams)

	return &authFixture{
		users:       users,
		connections: connections,
		sessionRepo: sessionRepo,
		stash:       stash,
		mailer:      mailer,
		svc: NewAuthService(
			users,
			connections,
			sessions,
			verifications,
			stash,
			mailer,
			4, // minimum bcrypt cost, tests don't need hardening
			zap.NewNop(),
		),
	}
}

func (f *authFixture) signup(t *testing.T) *domain.Session {
	t.Helper()
	session, err := f.svc.Signup(context.Background(), "kody@example.com", "kody", "Kody Koala", "S3cretPassw0rd")
	require.NoError(t, err)
	return session
}

// waitForMail blocks until the async mailer has delivered n messages.
func (f *authFixture) waitForMail(t *testing.T, n int) sentMail {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mailer.mu.Lock()
		defer f.mailer.mu.Unlock()
		return len(f.mailer.sent) >= n
	}, 2*time.Second, 10*time.Millisecond)

	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	return f.mailer.sent[n-1]
}

func codeFromMail(t *testing.T, mail sentMail) string {
	t.Helper()
	idx := strings.LastIndex(mail.Body, ": ")
	require.Greater(t, idx, 0, "mail body %q carries no code", mail.Body)
	return mail.Body[idx+2:]
}

func TestSignupCreatesSessionAndRole(t *testing.T) {
	f := newAuthFixture(t)

	session := f.signup(t)
	require.NotNil(t, session)

	user, err := f.users.GetByUsername(context.Background(), "kody")
	require.NoError(t, err)
	assert.Equal(t, "kody@example.com", user.Email)
	assert.Equal(t, []string{"user"}, f.users.roles[user.ID])
	assert.Equal(t, user.ID, session.UserID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)

	_, err := f.svc.Signup(context.Background(), "KODY@example.com", "other", "", "S3cretPassw0rd")
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)

	session, err := f.svc.Login(context.Background(), "kody", "S3cretPassw0rd")
	require.NoError(t, err)
	require.NotNil(t, session)

	stored, err := f.sessionRepo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, stored.UserID)
}

func TestLoginWrongPasswordWritesNothing(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)
	writes := f.users.writeCount()
	sessionRows := len(f.sessionRepo.sessions)

	session, err := f.svc.Login(context.Background(), "kody", "wrong-password")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, writes, f.users.writeCount())
	assert.Len(t, f.sessionRepo.sessions, sessionRows, "no session row for a failed login")
}

func TestLoginUnknownUser(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.svc.Login(context.Background(), "nobody", "whatever")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestLoginPasswordlessAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := &domain.User{Email: "oauth@example.com", Username: "oauthonly"}
	require.NoError(t, f.users.Create(context.Background(), user, "", "user"))

	session, err := f.svc.Login(context.Background(), "oauthonly", "anything")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSignupWithConnection(t *testing.T) {
	f := newAuthFixture(t)

	stash := &OnboardingStash{
		Email:        "kody@example.com",
		Username:     "kody",
		Name:         "Kody Koala",
		ProviderName: "github",
		ProviderID:   "gh-123",
	}

	session, err := f.svc.SignupWithConnection(context.Background(), stash, "koala", "")
	require.NoError(t, err)
	require.NotNil(t, session)

	user, err := f.users.GetByUsername(context.Background(), "koala")
	require.NoError(t, err)
	assert.Equal(t, "Kody Koala", *user.Name)

	// Passwordless account, linked to the provider identity.
	_, err = f.users.GetPasswordHash(context.Background(), user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	conn, err := f.connections.GetByProvider(context.Background(), "github", "gh-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, conn.UserID)
}

func TestSignupWithConnectionIdentityClaimed(t *testing.T) {
	f := newAuthFixture(t)
	other := f.signup(t)
	require.NoError(t, f.connections.Create(context.Background(), &domain.Connection{
		UserID: other.UserID, ProviderName: "github", ProviderID: "gh-123",
	}))

	stash := &OnboardingStash{
		Email:        "new@example.com",
		Username:     "newperson",
		ProviderName: "github",
		ProviderID:   "gh-123",
	}

	_, err := f.svc.SignupWithConnection(context.Background(), stash, "", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyLinked)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "kody@example.com"))
	code := codeFromMail(t, f.waitForMail(t, 1))

	token, err := f.svc.ConfirmPasswordReset(context.Background(), "kody@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.ResetPassword(context.Background(), token, "BrandNewPassw0rd"))

	session, err := f.svc.Login(context.Background(), "kody", "BrandNewPassw0rd")
	require.NoError(t, err)
	assert.NotNil(t, session)

	old, err := f.svc.Login(context.Background(), "kody", "S3cretPassw0rd")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestPasswordResetByUsername(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "kody"))
	mail := f.waitForMail(t, 1)
	assert.Equal(t, "kody@example.com", mail.To)
}

func TestPasswordResetUnknownTargetStaysSilent(t *testing.T) {
	f := newAuthFixture(t)

	assert.NoError(t, f.svc.RequestPasswordReset(context.Background(), "nobody@example.com"))

	time.Sleep(50 * time.Millisecond)
	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	assert.Empty(t, f.mailer.sent)
}

func TestConfirmPasswordResetUnknownTarget(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.ConfirmPasswordReset(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestResetPasswordBadToken(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.ResetPassword(context.Background(), "bogus-token", "BrandNewPassw0rd")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestResetTokenIsOneShot(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "kody"))
	code := codeFromMail(t, f.waitForMail(t, 1))

	token, err := f.svc.ConfirmPasswordReset(context.Background(), "kody", code)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPassword(context.Background(), token, "BrandNewPassw0rd"))
	err = f.svc.ResetPassword(context.Background(), token, "AnotherPassw0rd")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestEmailChangeFlow(t *testing.T) {
	f := newAuthFixture(t)
	session := f.signup(t)

	token, err := f.svc.RequestEmailChange(context.Background(), session.UserID, "New@Example.com")
	require.NoError(t, err)

	mail := f.waitForMail(t, 1)
	assert.Equal(t, "new@example.com", mail.To, "code goes to the new address")
	code := codeFromMail(t, mail)

	require.NoError(t, f.svc.ConfirmEmailChange(context.Background(), session.UserID, token, code))

	user, err := f.users.GetByID(context.Background(), session.UserID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)

	// The old address gets a notice.
	notice := f.waitForMail(t, 2)
	assert.Equal(t, "kody@example.com", notice.To)
}

func TestRequestEmailChangeTakenAddress(t *testing.T) {
	f := newAuthFixture(t)
	session := f.signup(t)

	other := &domain.User{Email: "taken@example.com", Username: "other"}
	require.NoError(t, f.users.Create(context.Background(), other, "", "user"))

	_, err := f.svc.RequestEmailChange(context.Background(), session.UserID, "taken@example.com")
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestConfirmEmailChangeWrongCodeKeepsStash(t *testing.T) {
	f := newAuthFixture(t)
	session := f.signup(t)

	token, err := f.svc.RequestEmailChange(context.Background(), session.UserID, "new@example.com")
	require.NoError(t, err)
	code := codeFromMail(t, f.waitForMail(t, 1))

	// A mistyped code must not burn the pending change.
	err = f.svc.ConfirmEmailChange(context.Background(), session.UserID, token, "000000")
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	require.NoError(t, f.svc.ConfirmEmailChange(context.Background(), session.UserID, token, code))

	user, err := f.users.GetByID(context.Background(), session.UserID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
}

func TestConfirmEmailChangeForeignStash(t *testing.T) {
	f := newAuthFixture(t)
	session := f.signup(t)

	token, err := f.svc.RequestEmailChange(context.Background(), session.UserID, "new@example.com")
	require.NoError(t, err)
	code := codeFromMail(t, f.waitForMail(t, 1))

	// A different user cannot redeem someone else's pending change.
	err = f.svc.ConfirmEmailChange(context.Background(), "someone-else", token, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestEmailLoginFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t)

	require.NoError(t, f.svc.RequestEmailLogin(context.Background(), "kody@example.com"))
	code := codeFromMail(t, f.waitForMail(t, 1))

	session, err := f.svc.LoginWithEmailCode(context.Background(), "kody@example.com", code)
	require.NoError(t, err)
	require.NotNil(t, session)

	// Replay fails.
	_, err = f.svc.LoginWithEmailCode(context.Background(), "kody@example.com", code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestEmailLoginUnknownAddress(t *testing.T) {
	f := newAuthFixture(t)

	assert.NoError(t, f.svc.RequestEmailLogin(context.Background(), "nobody@example.com"))

	_, err := f.svc.LoginWithEmailCode(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	session := f.signup(t)

	f.svc.Logout(context.Background(), session.ID)
	assert.Empty(t, f.sessionRepo.sessions)

	// Logging out twice is fine.
	f.svc.Logout(context.Background(), session.ID)
}
