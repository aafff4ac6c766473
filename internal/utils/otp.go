package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// NewOTPCode returns a random 6-digit numeric code in [100000,999999].
// Codes are always exactly six ASCII digits with no whitespace.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashOTPCode returns a bcrypt hash of the code using the given cost.
// Only the hash is stored; the plain code goes out by email.
func HashOTPCode(code string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyOTPCode compares a submitted code against the stored bcrypt
// hash. bcrypt's comparison is safe against timing inspection.
func VerifyOTPCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
