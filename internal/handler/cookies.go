package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Cookie names shared with the web client. Both are httpOnly; script
// code never sees token values.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

func (h *AuthHandler) setAccessCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies expires both token cookies. Used by the revoke
// endpoints, which clear cookies even when no token was found.
func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
