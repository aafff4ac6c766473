package middleware // middleware contains reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/marcx-ai/marcx-backend/internal/utils"
)

// Context keys under which the authenticated principal is stored.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// AccessCookieName is the cookie carrying the access token for web
// clients. API clients use the Authorization header instead.
const AccessCookieName = "accessToken"

// AccessValidator checks a raw access token and returns the request
// principal. The auth service's ValidateAccess satisfies it (parse +
// live-user check).
type AccessValidator func(ctx context.Context, raw string) (utils.Claims, error)

// AccessTokenFrom resolves the access token of a request: cookie
// first, then the Authorization bearer header. The cookie wins when
// both are present so web sessions are not shadowed by stale headers.
// Returns "" when neither channel carries a token.
func AccessTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// JWTAuth returns an Echo middleware that resolves and validates an
// access token and injects the principal into the request context.
// Handlers behind it read the identity via c.Get(CtxUserID),
// c.Get(CtxEmail) and c.Get(CtxRole).
func JWTAuth(validate AccessValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := AccessTokenFrom(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing access token"})
			}
			cl, err := validate(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set(CtxUserID, cl.UserID)
			c.Set(CtxEmail, cl.Email)
			c.Set(CtxRole, cl.Role)
			return next(c)
		}
	}
}
