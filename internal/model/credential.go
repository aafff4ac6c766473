package model

import "time"

// Credential types stored in credentials.type. OAUTH exists in the
// schema for future social login; the OTP flow only creates EMAIL
// credentials.
const (
	CredentialTypeEmail = "EMAIL"
	CredentialTypeOAuth = "OAUTH"
)

// Credential links a user to a login identifier. For EMAIL
// credentials the identifier is the email address and Secret stays
// nil (no password is stored in the OTP-only flow).
type Credential struct {
	ID         uint64    // credentials.id
	UserID     uint64    // credentials.user_id
	Type       string    // credentials.type
	Identifier string    // credentials.identifier
	Secret     *string   // credentials.secret (nullable, unused)
	CreatedAt  time.Time // credentials.created_at
}
