package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/dto"
	"github.com/quillnotes/auth-service/internal/provider"
	"github.com/quillnotes/auth-service/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles authentication and account-linking requests
type AuthHandler struct {
	authService service.AuthService
	linking     service.LinkingService
	sessions    service.SessionManager
	providers   *provider.Registry
	states      *provider.StateStore
	cookies     *Cookies
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService service.AuthService,
	linking service.LinkingService,
	sessions service.SessionManager,
	providers *provider.Registry,
	states *provider.StateStore,
	cookies *Cookies,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		linking:     linking,
		sessions:    sessions,
		providers:   providers,
		states:      states,
		cookies:     cookies,
		logger:      logger,
	}
}

// Signup handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup request"
// @Success 201 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	session, err := h.authService.Signup(c.Request.Context(), req.Email, req.Username, req.Name, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, session.ID)
	c.JSON(http.StatusCreated, dto.SuccessResponse{Message: "Account created"})
}

// Login handles username/password login
// @Summary Login with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if session == nil {
		// Same response for unknown user and wrong password.
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Invalid username or password",
		})
		return
	}

	h.setSessionCookie(c, session.ID)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Logged in"})
}

// Logout destroys the current session
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID, exists := c.Get("session_id"); exists {
		h.authService.Logout(c.Request.Context(), sessionID.(string))
	}

	h.cookies.ClearSession(c)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// GetMe returns the current user's profile
// @Summary Get current user
// @Tags auth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// GetUser returns a user by username
// @Summary Get a user by username
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} dto.UserResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /users/{username} [get]
func (h *AuthHandler) GetUser(c *gin.Context) {
	user, err := h.authService.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// DeleteUser removes a user account
// @Summary Delete a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} dto.SuccessResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /users/{username} [delete]
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	user, err := h.authService.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.authService.DeleteUser(c.Request.Context(), user.ID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

// BeginProvider starts the OAuth flow by redirecting to the provider
// @Summary Start provider authentication
// @Tags auth
// @Param provider path string true "Provider name"
// @Param redirectTo query string false "Post-login destination"
// @Success 302
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/{provider} [get]
func (h *AuthHandler) BeginProvider(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: "Unknown provider",
		})
		return
	}

	state, err := h.states.Issue(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	authURL, err := p.BeginAuth(c.Request.Context(), state)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.cookies.SetRedirect(c, safeRedirect(c.Query("redirectTo")))
	c.Redirect(http.StatusFound, authURL)
}

// ProviderCallback finishes the OAuth flow. Provider failures never
// surface as errors here: the browser goes back to /login with a
// generic notice.
// @Summary Provider callback
// @Tags auth
// @Param provider path string true "Provider name"
// @Success 302
// @Router /auth/{provider}/callback [get]
func (h *AuthHandler) ProviderCallback(c *gin.Context) {
	providerName := c.Param("provider")
	redirectTo := safeRedirect(h.cookies.TakeRedirect(c))

	profile, err := h.completeProviderAuth(c, providerName)
	if err != nil {
		h.logger.Warn("provider callback failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, "/login?error=auth-failed")
		return
	}

	result, err := h.linking.HandleCallback(c.Request.Context(), providerName, profile, currentUserID(c), redirectTo)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeAlreadyConnectedSelf:
		c.Redirect(http.StatusFound, "/settings/connections?notice=already-connected")

	case service.OutcomeAlreadyConnectedOther:
		c.Redirect(http.StatusFound, "/settings/connections?error=already-linked")

	case service.OutcomeLinkedToCurrentUser:
		c.Redirect(http.StatusFound, "/settings/connections?notice=connected")

	case service.OutcomeSessionFromExistingLink, service.OutcomeLinkedAndSession:
		h.setSessionCookie(c, result.Session.ID)
		if redirectTo == "" {
			redirectTo = "/"
		}
		c.Redirect(http.StatusFound, redirectTo)

	case service.OutcomeBeginOnboarding:
		c.Redirect(http.StatusFound, result.OnboardingPath)

	default:
		writeError(c, h.logger, errors.New("unknown linking outcome"))
	}
}

func (h *AuthHandler) completeProviderAuth(c *gin.Context, providerName string) (*domain.ProviderProfile, error) {
	p, err := h.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	if err := h.states.Redeem(c.Request.Context(), c.Query("state")); err != nil {
		return nil, err
	}

	code := c.Query("code")
	if code == "" {
		return nil, domain.ErrAuthProvider
	}

	return p.CompleteAuth(c.Request.Context(), code)
}

// Onboarding finishes signup for a provider identity
// @Summary Complete onboarding
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.OnboardingRequest true "Onboarding request"
// @Success 201 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /onboarding [post]
func (h *AuthHandler) Onboarding(c *gin.Context) {
	var req dto.OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	stash, err := h.linking.TakeOnboarding(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad request",
				Message: "Onboarding session has expired, please sign in again",
			})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	session, err := h.authService.SignupWithConnection(c.Request.Context(), stash, req.Username, req.Name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, session.ID)
	c.JSON(http.StatusCreated, dto.SuccessResponse{Message: "Account created"})
}

// ForgotPassword requests a password reset code
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Forgot password request"
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Target); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "If that account exists, a code has been sent"})
}

// VerifyReset confirms a reset code and returns a reset token
// @Summary Confirm a password reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.VerifyRequest true "Verify request"
// @Success 200 {object} dto.TokenResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/forgot-password/verify [post]
func (h *AuthHandler) VerifyReset(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	token, err := h.authService.ConfirmPasswordReset(c.Request.Context(), req.Target, req.Code)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
}

// ResetPassword sets a new password using a confirmed reset token
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset password request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Password updated"})
}

// ChangeEmail starts an email change for the current user
// @Summary Request email change
// @Tags settings
// @Accept json
// @Produce json
// @Param request body dto.ChangeEmailRequest true "Change email request"
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /settings/email [post]
func (h *AuthHandler) ChangeEmail(c *gin.Context) {
	var req dto.ChangeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	token, err := h.authService.RequestEmailChange(c.Request.Context(), currentUserID(c), req.Email)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
}

// ConfirmEmailChange applies a pending email change
// @Summary Confirm email change
// @Tags settings
// @Accept json
// @Produce json
// @Param request body dto.ConfirmEmailChangeRequest true "Confirm email change request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /settings/email/verify [post]
func (h *AuthHandler) ConfirmEmailChange(c *gin.Context) {
	var req dto.ConfirmEmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	if err := h.authService.ConfirmEmailChange(c.Request.Context(), currentUserID(c), req.Token, req.Code); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Email updated"})
}

// EmailLogin requests a login code by email
// @Summary Request email login code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.EmailLoginRequest true "Email login request"
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/email-login [post]
func (h *AuthHandler) EmailLogin(c *gin.Context) {
	var req dto.EmailLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	if err := h.authService.RequestEmailLogin(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "If that account exists, a code has been sent"})
}

// VerifyEmailLogin redeems an email login code for a session
// @Summary Login with email code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.EmailLoginVerifyRequest true "Email login verify request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/email-login/verify [post]
func (h *AuthHandler) VerifyEmailLogin(c *gin.Context) {
	var req dto.EmailLoginVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	session, err := h.authService.LoginWithEmailCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, session.ID)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Logged in"})
}

// ListConnections lists the current user's provider connections
// @Summary List connections
// @Tags settings
// @Produce json
// @Success 200 {array} dto.ConnectionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /settings/connections [get]
func (h *AuthHandler) ListConnections(c *gin.Context) {
	connections, err := h.linking.ListConnections(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]dto.ConnectionResponse, 0, len(connections))
	for _, conn := range connections {
		out = append(out, dto.NewConnectionResponse(conn))
	}

	c.JSON(http.StatusOK, out)
}

// DeleteConnection unlinks a provider connection
// @Summary Remove a connection
// @Tags settings
// @Produce json
// @Param id path string true "Connection ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /settings/connections/{id} [delete]
func (h *AuthHandler) DeleteConnection(c *gin.Context) {
	if err := h.linking.Unlink(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Connection removed"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, sessionID string) {
	sealed, err := h.sessions.Seal(sessionID)
	if err != nil {
		h.logger.Error("failed to seal session cookie", zap.Error(err))
		return
	}
	h.cookies.SetSession(c, sealed, h.sessions.CookieTTL())
}

// safeRedirect keeps redirect targets on-site. Anything that is not a
// plain absolute path is dropped.
func safeRedirect(redirectTo string) string {
	if redirectTo == "" {
		return ""
	}
	u, err := url.Parse(redirectTo)
	if err != nil || u.IsAbs() || u.Host != "" || !startsWithSlash(redirectTo) {
		return ""
	}
	return redirectTo
}

func startsWithSlash(s string) bool {
	return len(s) > 0 && s[0] == '/' && (len(s) == 1 || s[1] != '/')
}
