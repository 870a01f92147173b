package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const redirectCookieName = "qn_redirect_to"

// Cookies writes and clears the cookies the auth flows use.
type Cookies struct {
	sessionName string
	secure      bool
}

// NewCookies creates a cookie helper
func NewCookies(sessionName string, secure bool) *Cookies {
	return &Cookies{sessionName: sessionName, secure: secure}
}

// SetSession writes the signed session cookie
func (ck *Cookies) SetSession(c *gin.Context, sealed string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.sessionName, sealed, maxAge, "/", "", ck.secure, true)
}

// ClearSession removes the session cookie
func (ck *Cookies) ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.sessionName, "", -1, "/", "", ck.secure, true)
}

// Session returns the raw session cookie value, or "" when absent
func (ck *Cookies) Session(c *gin.Context) string {
	value, err := c.Cookie(ck.sessionName)
	if err != nil {
		return ""
	}
	return value
}

// SetRedirect stashes a post-login destination across the provider
// round trip. Ten minutes matches the state TTL.
func (ck *Cookies) SetRedirect(c *gin.Context, redirectTo string) {
	if redirectTo == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(redirectCookieName, redirectTo, 600, "/", "", ck.secure, true)
}

// TakeRedirect reads and clears the stashed destination
func (ck *Cookies) TakeRedirect(c *gin.Context) string {
	value, err := c.Cookie(redirectCookieName)
	if err != nil || value == "" {
		return ""
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(redirectCookieName, "", -1, "/", "", ck.secure, true)
	return value
}
