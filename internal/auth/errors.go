// Package auth implements the OTP issuance/verification engine and
// the token pair issuer. Handlers translate the sentinel errors
// defined here into the HTTP error taxonomy (401/403/404/409).
package auth

import "errors"

var (
	// ErrUserExists signals a duplicate registration. HTTP 409.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound covers unknown emails and users deleted while a
	// token referencing them was still live. HTTP 401/404.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailNotVerified blocks login before the registration OTP has
	// been confirmed. HTTP 401.
	ErrEmailNotVerified = errors.New("please verify your email first")

	// OTP verification failures, in check order.
	ErrOTPInvalidOrExpired = errors.New("invalid or expired OTP")
	ErrOTPAlreadyUsed      = errors.New("OTP already used")
	ErrOTPExpired          = errors.New("OTP expired")
	ErrOTPInvalidCode      = errors.New("invalid OTP")

	// Refresh token failures. InvalidOrExpired covers both TTL expiry
	// and prior revocation (the cache can not tell them apart);
	// Invalid means the presented value did not match the stored hash
	// or was already revoked on a second revoke attempt.
	ErrRefreshInvalidOrExpired = errors.New("invalid or expired refresh token")
	ErrRefreshInvalid          = errors.New("invalid refresh token")
)
