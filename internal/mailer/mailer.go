// Package mailer defines the narrow outbound-email capability the
// auth flow depends on. Actual delivery (SMTP, Resend, ...) is an
// external collaborator behind this interface.
package mailer

import (
	"context"
	"log"
)

// Mailer delivers a one-time code to an email address. purpose is one
// of the verification_tokens purposes and selects the email copy on
// the delivery side.
type Mailer interface {
	SendOTPEmail(ctx context.Context, to, name, code, purpose string) error
}

// LogMailer writes codes to the process log instead of sending email.
// Used in dev and tests.
type LogMailer struct{}

func (LogMailer) SendOTPEmail(_ context.Context, to, _, code, purpose string) error {
	log.Printf("otp-mailer: %s OTP for %s: %s", purpose, to, code)
	return nil
}
