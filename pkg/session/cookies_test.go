package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	res := rec.Result()
	defer res.Body.Close()
	out := make(map[string]*http.Cookie)
	for _, cookie := range res.Cookies() {
		out[cookie.Name] = cookie
	}
	return out
}

func TestAttachSetsHardenedCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewCookieManager(CookieConfig{AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)

	manager.Attach(c, "access-value", "refresh-value")

	cookies := cookiesByName(rec)
	access := cookies[AccessCookieName]
	refresh := cookies[RefreshCookieName]
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	assert.Equal(t, "access-value", access.Value)
	assert.Equal(t, 900, access.MaxAge)
	assert.Equal(t, 604800, refresh.MaxAge)
	for _, cookie := range []*http.Cookie{access, refresh} {
		assert.True(t, cookie.HttpOnly)
		assert.False(t, cookie.Secure)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	}
}

func TestAttachSecureInProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewCookieManager(CookieConfig{Secure: true, AccessTTL: time.Minute, RefreshTTL: time.Hour})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)

	manager.Attach(c, "a", "r")

	for _, cookie := range cookiesByName(rec) {
		assert.True(t, cookie.Secure, cookie.Name)
	}
}

func TestClearExpiresCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewCookieManager(CookieConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)

	manager.Clear(c)

	header := rec.Header().Values("Set-Cookie")
	require.Len(t, header, 2)
	for _, line := range header {
		assert.Contains(t, line, "Max-Age=0")
		assert.Contains(t, line, "HttpOnly")
	}
}

func TestReadTokensFromCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	c.Request.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "a"})

	assert.Equal(t, "a", AccessToken(c))
	assert.Equal(t, "", RefreshToken(c))
}
