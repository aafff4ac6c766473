package model

import "time"

// Role names stored in users.role and embedded in access-token claims.
const (
	RoleAdmin        = "ADMIN"
	RoleCompanyOwner = "COMPANY_OWNER"
	RoleCompanyUser  = "COMPANY_USER"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique email address.
//  Name          – display name supplied at registration.
//  Role          – role name (ADMIN, COMPANY_OWNER or COMPANY_USER).
//  EmailVerified – flips true after the registration OTP is verified.
//  CompanyID     – set once during company setup; nil until then.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64    // users.id
	Email         string    // users.email
	Name          string    // users.name
	Role          string    // users.role
	EmailVerified bool      // users.email_verified
	CompanyID     *uint64   // users.company_id (nullable)
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// RequiresCompanySetup reports whether the user still has to go
// through company onboarding. Verify responses expose this so the
// web client can route new owners to the company form.
func (u User) RequiresCompanySetup() bool { return u.CompanyID == nil }
