package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marcx-ai/marcx-backend/internal/auth"
	"github.com/marcx-ai/marcx-backend/internal/middleware"
	"github.com/marcx-ai/marcx-backend/internal/model"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc        *auth.Service
	RefreshTTL time.Duration // refresh cookie lifetime
	Secure     bool          // Secure attribute on auth cookies (prod)
}

func NewAuthHandler(svc *auth.Service, refreshTTL time.Duration, secure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, RefreshTTL: refreshTTL, Secure: secure}
}

// ----- DTOs -----

type registerReq struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
type emailReq struct {
	Email string `json:"email"`
}
type verifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type userPart struct {
	ID            uint64  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	EmailVerified bool    `json:"emailVerified"`
	CompanyID     *uint64 `json:"companyId"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CompanyID:     u.CompanyID,
	}
}

type verifyResp struct {
	AccessToken          string   `json:"accessToken"`
	RefreshToken         string   `json:"refreshToken"`
	ExpiresIn            int      `json:"expiresIn"`
	User                 userPart `json:"user"`
	Message              string   `json:"message"`
	RequiresCompanySetup bool     `json:"requiresCompanySetup"`
}

// errNoRefreshToken distinguishes "no token anywhere in the request"
// from an invalid one; the revoke handler treats it as non-fatal.
var errNoRefreshToken = errors.New("no refresh token provided")

// refreshTokenFrom resolves the refresh token of a request in the
// fixed order body field, Authorization bearer header, cookie. The
// body wins so API clients can act on behalf of a specific session
// even when a browser cookie is also present.
func refreshTokenFrom(c echo.Context) (string, error) {
	var req refreshReq
	if err := c.Bind(&req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
		return strings.TrimSpace(req.RefreshToken), nil
	}
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok, nil
		}
	}
	if ck, err := c.Cookie(RefreshCookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	return "", errNoRefreshToken
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// authErrJSON maps engine errors onto the HTTP taxonomy. Unknown
// errors stay opaque 500s.
func authErrJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrEmailNotVerified),
		errors.Is(err, auth.ErrOTPInvalidOrExpired),
		errors.Is(err, auth.ErrOTPAlreadyUsed),
		errors.Is(err, auth.ErrOTPExpired),
		errors.Is(err, auth.ErrOTPInvalidCode),
		errors.Is(err, auth.ErrRefreshInvalidOrExpired),
		errors.Is(err, auth.ErrRefreshInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// Register: create user + credential and send the verification OTP.
// The caller is not logged in until the code is verified.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.Register(ctx, req.Email, strings.TrimSpace(req.Name))
	if err != nil {
		return authErrJSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user":    toUserPart(user),
		"message": "Registration successful. Please verify your email with the OTP sent.",
	})
}

// Login: issue a login OTP for a verified account.
func (h *AuthHandler) Login(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.Login(ctx, strings.TrimSpace(req.Email)); err != nil {
		return authErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "OTP sent to your email. Please verify to complete login.",
	})
}

// SendOTP: re-send a login code.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.SendOTP(ctx, strings.TrimSpace(req.Email)); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		return authErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent successfully"})
}

// VerifyRegistration: check the registration code, mark the email
// verified and log the user in. Tokens are returned in the body and
// set as httpOnly cookies for web clients.
func (h *AuthHandler) VerifyRegistration(c echo.Context) error {
	return h.verify(c, h.Svc.VerifyRegistration,
		"Email verified successfully. You are now logged in.")
}

// VerifyLogin: check the login code and mint a fresh token pair.
func (h *AuthHandler) VerifyLogin(c echo.Context) error {
	return h.verify(c, h.Svc.VerifyLogin, "Login successful")
}

func (h *AuthHandler) verify(c echo.Context, fn func(context.Context, string, string) (model.User, auth.TokenPair, error), msg string) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, pair, err := fn(ctx, req.Email, req.Code)
	if err != nil {
		return authErrJSON(c, err)
	}

	h.setAccessCookie(c, pair.AccessToken, pair.ExpiresIn)
	h.setRefreshCookie(c, pair.RefreshToken)

	return c.JSON(http.StatusOK, verifyResp{
		AccessToken:          pair.AccessToken,
		RefreshToken:         pair.RefreshToken,
		ExpiresIn:            pair.ExpiresIn,
		User:                 toUserPart(user),
		Message:              msg,
		RequiresCompanySetup: user.RequiresCompanySetup(),
	})
}

// Refresh: exchange a refresh token (body, header or cookie) for a
// new access token. The refresh token itself is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing refresh token"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	access, expiresIn, err := h.Svc.Refresh(ctx, token)
	if err != nil {
		return authErrJSON(c, err)
	}

	h.setAccessCookie(c, access, expiresIn)
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": access,
		"expiresIn":   expiresIn,
		"message":     "Token refreshed successfully",
	})
}

// Revoke: invalidate the presented refresh token. Cookies are cleared
// regardless of whether a token was found; a request without any
// token is a best-effort logout, not an error.
func (h *AuthHandler) Revoke(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	token, err := refreshTokenFrom(c)
	if errors.Is(err, errNoRefreshToken) {
		h.clearAuthCookies(c)
		return c.JSON(http.StatusOK, echo.Map{"message": "Token revoked successfully"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.Revoke(ctx, token, uid); err != nil {
		h.clearAuthCookies(c)
		return authErrJSON(c, err)
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Token revoked successfully"})
}

// RevokeAll: invalidate every live session of the authenticated user.
func (h *AuthHandler) RevokeAll(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.RevokeAll(ctx, uid); err != nil {
		return authErrJSON(c, err)
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "All tokens revoked successfully"})
}

// AdminRevokeAll: force-logout every session of an arbitrary user.
// Routed behind the ADMIN role for incident response (compromised
// account, offboarding).
func (h *AuthHandler) AdminRevokeAll(c echo.Context) error {
	uid, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || uid == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.RevokeAll(ctx, uid); err != nil {
		return authErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "All tokens revoked successfully"})
}

// Me: return the request principal. Simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":    c.Get(middleware.CtxUserID),
			"email": c.Get(middleware.CtxEmail),
			"role":  c.Get(middleware.CtxRole),
		},
	})
}
