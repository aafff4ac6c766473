package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/marcx-ai/marcx-backend/internal/handler"
	"github.com/marcx-ai/marcx-backend/internal/middleware"
	"github.com/marcx-ai/marcx-backend/internal/model"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check, used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and their
// middleware. Public OTP/token endpoints live under /auth; revoke
// endpoints require a valid access token (resolved cookie-first, then
// bearer header) and so does /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, validate middleware.AccessValidator, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if limiter != nil {
		// OTP sends cost an outbound email each; cap bursts per caller.
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/otp/send", a.SendOTP)
	g.POST("/register/verify", a.VerifyRegistration)
	g.POST("/login/verify", a.VerifyLogin)
	// Refresh is public: its credential is the refresh token itself.
	g.POST("/refresh", a.Refresh)

	// Revocation requires an authenticated principal; the refresh
	// token names the session, the access token proves the caller.
	priv := g.Group("")
	priv.Use(middleware.JWTAuth(validate))
	priv.POST("/revoke", a.Revoke)
	priv.POST("/revoke-all", a.RevokeAll)

	authed := e.Group("/v1")
	authed.Use(middleware.JWTAuth(validate))
	authed.GET("/me", a.Me)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(validate), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/users/:id/revoke-all", a.AdminRevokeAll)
}
