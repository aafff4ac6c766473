// Package queue defines message payloads exchanged over the message broker.
package queue

// OTPEmailQueue is the durable queue carrying outbound OTP emails.
const OTPEmailQueue = "auth.otp.email"

// OTPEmailEvent is published whenever an OTP is issued. It contains
// everything the delivery worker needs to render and send the email
// without querying the primary database. The plain code rides in the
// event; the broker is inside the trust boundary, the database only
// ever sees the hash.
type OTPEmailEvent struct {
	ID          string `json:"id"` // message id for delivery audit
	Email       string `json:"email"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Purpose     string `json:"purpose"`
	RequestedAt string `json:"requested_at"`
}
