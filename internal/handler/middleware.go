package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/service"
	"go.uber.org/zap"
)

// Middleware carries the session-resolving and authorization guards.
type Middleware struct {
	sessions service.SessionManager
	access   service.AccessService
	cookies  *Cookies
	logger   *zap.Logger
}

// NewMiddleware creates the middleware set
func NewMiddleware(sessions service.SessionManager, access service.AccessService, cookies *Cookies, logger *zap.Logger) *Middleware {
	return &Middleware{
		sessions: sessions,
		access:   access,
		cookies:  cookies,
		logger:   logger,
	}
}

// ResolveUser resolves the session cookie if one is present and stores
// user_id/session_id in the request context. It never rejects: routes
// that must have a user stack RequireUser on top. A cookie that is
// present but stale gets cleared here so the browser stops sending it.
func (m *Middleware) ResolveUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		value := m.cookies.Session(c)
		if value == "" {
			c.Next()
			return
		}

		session, err := m.sessions.Resolve(c.Request.Context(), value)
		if err != nil {
			if errors.Is(err, service.ErrStaleCookie) {
				m.cookies.ClearSession(c)
			} else if !errors.Is(err, domain.ErrUnauthenticated) {
				m.logger.Error("failed to resolve session", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set("user_id", session.UserID)
		c.Set("session_id", session.ID)
		c.Next()
	}
}

// RequireUser rejects requests that did not resolve to a user
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("user_id"); !exists {
			writeError(c, m.logger, domain.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePermission rejects users lacking the given permission
func (m *Middleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			writeError(c, m.logger, domain.ErrUnauthenticated)
			c.Abort()
			return
		}

		if err := m.access.RequirePermission(c.Request.Context(), userID.(string), permission); err != nil {
			writeError(c, m.logger, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole rejects users lacking the given role
func (m *Middleware) RequireRole(roleName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			writeError(c, m.logger, domain.ErrUnauthenticated)
			c.Abort()
			return
		}

		if err := m.access.RequireRole(c.Request.Context(), userID.(string), roleName); err != nil {
			writeError(c, m.logger, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentUserID returns the resolved user id, or "" for anonymous requests
func currentUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		return userID.(string)
	}
	return ""
}
