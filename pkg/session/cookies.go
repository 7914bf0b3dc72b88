package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieConfig describes how token cookies are written.
type CookieConfig struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// CookieManager writes issued tokens to the response as HttpOnly cookies.
type CookieManager struct {
	domain     string
	secure     bool
	accessAge  int
	refreshAge int
}

// NewCookieManager builds a manager whose Max-Age values follow the token lifetimes.
func NewCookieManager(cfg CookieConfig) *CookieManager {
	return &CookieManager{
		domain:     cfg.Domain,
		secure:     cfg.Secure,
		accessAge:  int(cfg.AccessTTL / time.Second),
		refreshAge: int(cfg.RefreshTTL / time.Second),
	}
}

// Attach sets both token cookies.
func (m *CookieManager) Attach(c *gin.Context, accessToken, refreshToken string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookieName, accessToken, m.accessAge, "/", m.domain, m.secure, true)
	c.SetCookie(RefreshCookieName, refreshToken, m.refreshAge, "/", m.domain, m.secure, true)
}

// Clear expires both token cookies. gin maps a negative age to "Max-Age=0".
func (m *CookieManager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookieName, "", -1, "/", m.domain, m.secure, true)
	c.SetCookie(RefreshCookieName, "", -1, "/", m.domain, m.secure, true)
}

// AccessToken returns the access token cookie value, if any.
func AccessToken(c *gin.Context) string {
	value, err := c.Cookie(AccessCookieName)
	if err != nil {
		return ""
	}
	return value
}

// RefreshToken returns the refresh token cookie value, if any.
func RefreshToken(c *gin.Context) string {
	value, err := c.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return value
}
