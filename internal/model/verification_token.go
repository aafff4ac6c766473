package model

import "time"

// OTP purposes stored in verification_tokens.purpose. PASSWORD_RESET
// is part of the schema; no reset flow uses it yet.
const (
	PurposeEmailVerification = "EMAIL_VERIFICATION"
	PurposeLogin             = "LOGIN"
	PurposePasswordReset     = "PASSWORD_RESET"
)

// VerificationToken models a row in the `verification_tokens` table.
// Only a one-way hash of the 6-digit code is stored. Rows are never
// deleted; used tokens stay behind as an audit trail.
//
// Fields:
//  ID           – primary key identifier.
//  CredentialID – owning credential.
//  Purpose      – what the code proves (see constants above).
//  TokenHash    – bcrypt hash of the 6-digit code.
//  ExpiresAt    – hard expiry, issuance time + OTP TTL.
//  Used         – flips true exactly once on successful verification.
//  Attempts     – failed comparison count; capped by the verifier.
//  CreatedAt    – issuance timestamp; newest row wins on lookup.
type VerificationToken struct {
	ID           uint64    // verification_tokens.id
	CredentialID uint64    // verification_tokens.credential_id
	Purpose      string    // verification_tokens.purpose
	TokenHash    string    // verification_tokens.token_hash
	ExpiresAt    time.Time // verification_tokens.expires_at
	Used         bool      // verification_tokens.used
	Attempts     int       // verification_tokens.attempts
	CreatedAt    time.Time // verification_tokens.created_at
}
